package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/helper-matcher/internal/decisions"
	"github.com/spigell/helper-matcher/internal/records"
	"github.com/spigell/helper-matcher/internal/scheduler"
)

var retrainCmd = &cobra.Command{
	Use:   "retrain",
	Short: "Manage per-user retraining requests",
}

var retrainRequestCmd = &cobra.Command{
	Use:   "request USER_ID",
	Short: "Request retraining for a user and stage their decisions when there are enough",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApplication(cmd, func(ctx context.Context, a *application) error {
			kind := records.RetrainingManual
			if scheduled, _ := cmd.Flags().GetBool("scheduled"); scheduled {
				kind = records.RetrainingScheduled
			}

			req, err := a.tracker.RequestRetraining(ctx, args[0], kind)
			if err != nil {
				var insufficient *decisions.InsufficientDataError
				if errors.As(err, &insufficient) {
					a.logger.Warn("retraining stays pending",
						zap.Int("actual", insufficient.Actual),
						zap.Int("required", insufficient.Required),
					)
				}
				return err
			}
			return printJSON(req)
		})
	},
}

var retrainCompleteCmd = &cobra.Command{
	Use:   "complete USER_ID",
	Short: "Mark a prepared retraining request as completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApplication(cmd, func(ctx context.Context, a *application) error {
			req, err := a.tracker.MarkCompleted(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(req)
		})
	},
}

var retrainSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Request retraining for every user with recent decisions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithApplication(cmd, func(ctx context.Context, a *application) error {
			days, _ := cmd.Flags().GetInt("window-days")
			report := scheduler.Sweep(ctx, a.tracker, days, a.logger)
			return printJSON(report)
		})
	},
}

var retrainScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the retraining sweep and the feature refresh periodically until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithApplication(cmd, func(ctx context.Context, a *application) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := a.config.Retraining
			s := scheduler.New(a.logger,
				scheduler.SweepJob(cfg.SweepSchedule, a.tracker, cfg.SweepWindowDays, a.logger),
				scheduler.RefreshJob(cfg.RefreshSchedule, a.backend, a.pipeline, a.config.Matching.PoolSize),
			)
			if err := s.Start(ctx); err != nil {
				return err
			}
			a.logger.Info("waiting for a signal to stop",
				zap.String("sweep", cfg.SweepSchedule),
				zap.String("refresh", cfg.RefreshSchedule),
			)

			<-ctx.Done()
			a.logger.Info("stopping scheduler")
			s.Stop()
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(retrainCmd)
	retrainCmd.AddCommand(retrainRequestCmd, retrainCompleteCmd, retrainSweepCmd, retrainScheduleCmd)

	retrainRequestCmd.Flags().Bool("scheduled", false, "record the request as scheduled instead of manual")
	retrainSweepCmd.Flags().Int("window-days", 0, "look back this many days for active users (default is retraining.sweep-window-days)")
}
