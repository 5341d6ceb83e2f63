package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/helper-matcher/internal/logger"
	"github.com/spigell/helper-matcher/internal/matching"
)

var matchCmd = &cobra.Command{
	Use:   "match JOB_ID",
	Short: "Rank active helpers for a job and print one page of matches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApplication(cmd, func(ctx context.Context, a *application) error {
			req, err := matchRequest(cmd, args[0])
			if err != nil {
				return err
			}

			res, err := a.matcher.FindMatches(ctx, req)
			if err != nil {
				return err
			}

			a.logger.Info("matches found",
				zap.String(logger.FieldJobID, res.JobID),
				zap.Int("total", res.TotalMatches),
				zap.Int("page", len(res.Matches)),
				zap.Bool("has_more", res.HasMore),
			)
			return printJSON(res)
		})
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	addPageFlags(matchCmd)
}

func addPageFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("limit", "l", 10, "page size, at most 50")
	cmd.Flags().IntP("offset", "o", 0, "number of ranked matches to skip")
	cmd.Flags().Bool("static-rules", false, "score with the configured weights only, ignoring the user's decision history")
}

func matchRequest(cmd *cobra.Command, jobID string) (matching.Request, error) {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return matching.Request{}, err
	}
	offset, err := cmd.Flags().GetInt("offset")
	if err != nil {
		return matching.Request{}, err
	}

	req := matching.Request{JobID: jobID, Limit: limit, Offset: offset}

	if cmd.Flags().Changed("static-rules") {
		static, err := cmd.Flags().GetBool("static-rules")
		if err != nil {
			return matching.Request{}, err
		}
		dynamic := !static
		req.DynamicRules = &dynamic
	}
	return req, nil
}
