package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/helper-matcher/internal/logger"
	"github.com/spigell/helper-matcher/internal/pipeline"
	"github.com/spigell/helper-matcher/internal/records"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Maintain cached helper feature vectors",
}

var featuresComputeCmd = &cobra.Command{
	Use:   "compute [HELPER_ID...]",
	Short: "Compute and store feature vectors of the given helpers or of every active helper",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApplication(cmd, func(ctx context.Context, a *application) error {
			helpers, err := selectHelpers(ctx, a, args)
			if err != nil {
				return err
			}

			opts := a.pipeline.Options()
			opts.ForceRecompute, _ = cmd.Flags().GetBool("force")
			opts.OnProgress = func(p pipeline.Progress) {
				a.logger.Debug("features computed",
					zap.Int("completed", p.Completed),
					zap.Int("total", p.Total),
					zap.String(logger.FieldHelperID, p.Current),
				)
			}

			res, err := a.pipeline.BatchComputeFeatures(ctx, helpers, opts)
			if res != nil {
				if printErr := printJSON(res); printErr != nil {
					return printErr
				}
			}
			if err != nil {
				return err
			}
			if res.Partial() {
				a.logger.Warn("some feature vectors were not computed",
					zap.Int("failed", res.Summary.Failed),
					zap.Int("total", res.Summary.Total),
				)
			}
			return nil
		})
	},
}

var featuresAuditCmd = &cobra.Command{
	Use:   "audit [HELPER_ID...]",
	Short: "Check stored feature vectors of the given helpers or of every active helper",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApplication(cmd, func(ctx context.Context, a *application) error {
			helpers, err := selectHelpers(ctx, a, args)
			if err != nil {
				return err
			}

			report, err := a.pipeline.Audit(ctx, helpers)
			if err != nil {
				return err
			}
			return printJSON(report)
		})
	},
}

func init() {
	rootCmd.AddCommand(featuresCmd)
	featuresCmd.AddCommand(featuresComputeCmd, featuresAuditCmd)

	featuresComputeCmd.Flags().BoolP("force", "f", false, "recompute even when the stored vector is current")
}

// selectHelpers resolves explicit ids or, without ids, the active candidate pool.
func selectHelpers(ctx context.Context, a *application, ids []string) ([]records.HelperRecord, error) {
	if len(ids) == 0 {
		helpers, err := a.backend.QueryActiveRegisteredHelpers(ctx, a.config.Matching.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("listing active helpers: %w", err)
		}
		a.logger.Info("selected active helpers", zap.Int("count", len(helpers)))
		return helpers, nil
	}

	helpers := make([]records.HelperRecord, 0, len(ids))
	for _, id := range ids {
		helper, err := a.backend.GetHelper(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading helper %q: %w", id, err)
		}
		helpers = append(helpers, helper)
	}
	return helpers, nil
}
