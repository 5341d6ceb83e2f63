package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spigell/helper-matcher/internal/decisions"
	"github.com/spigell/helper-matcher/internal/records"
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Record and inspect hiring decisions",
}

var decisionsTrackCmd = &cobra.Command{
	Use:   "track",
	Short: "Append a decision to the log and report whether retraining is due",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithApplication(cmd, func(ctx context.Context, a *application) error {
			userID, _ := cmd.Flags().GetString("user")
			helperID, _ := cmd.Flags().GetString("helper")
			jobID, _ := cmd.Flags().GetString("job")
			action, _ := cmd.Flags().GetString("action")

			d := records.Decision{
				ActingUserID: userID,
				HelperID:     helperID,
				JobID:        jobID,
				Action:       records.Action(action),
				Timestamp:    time.Now(),
			}

			// The snapshot is best-effort; validation of ids happens in the tracker.
			if job, err := a.backend.GetJob(ctx, jobID); err == nil {
				if helper, err := a.backend.GetHelper(ctx, helperID); err == nil {
					d.Snapshot = decisions.Snapshot(job, helper, d.Timestamp)
				}
			}

			res, err := a.tracker.TrackDecision(ctx, d)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

var decisionsListCmd = &cobra.Command{
	Use:   "list USER_ID",
	Short: "Print the most recent decisions of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApplication(cmd, func(ctx context.Context, a *application) error {
			limit, _ := cmd.Flags().GetInt("limit")
			if limit <= 0 {
				return fmt.Errorf("limit must be positive, got %d", limit)
			}

			recent, err := a.backend.RecentByUser(ctx, args[0], limit)
			if err != nil {
				return err
			}
			return printJSON(recent)
		})
	},
}

func init() {
	rootCmd.AddCommand(decisionsCmd)
	decisionsCmd.AddCommand(decisionsTrackCmd, decisionsListCmd)

	decisionsTrackCmd.Flags().StringP("user", "u", "", "acting user id")
	decisionsTrackCmd.Flags().String("helper", "", "helper id")
	decisionsTrackCmd.Flags().String("job", "", "job id")
	decisionsTrackCmd.Flags().StringP("action", "a", "", "one of viewed, shortlisted, rejected, hired")

	decisionsListCmd.Flags().IntP("limit", "l", 50, "number of decisions to print")
}
