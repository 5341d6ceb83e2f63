package scheduler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"github.com/spigell/helper-matcher/internal/apperr"
	"github.com/spigell/helper-matcher/internal/logger"
	"github.com/spigell/helper-matcher/internal/records"
)

// Retrainer is the part of the decision tracker used by the sweep.
type Retrainer interface {
	UsersNeedingRetraining(ctx context.Context, windowDays int) []string
	RequestRetraining(ctx context.Context, userID string, kind records.RetrainingType) (*records.RetrainingRequest, error)
}

// SweepReport counts sweep outcomes per user.
type SweepReport struct {
	Users        int      `json:"users"`
	Prepared     []string `json:"prepared"`
	Insufficient []string `json:"insufficient"`
	Failed       []string `json:"failed"`
}

// Sweep files a scheduled retraining request for every user active in the
// trailing window. Per-user failures never stop the sweep.
func Sweep(ctx context.Context, r Retrainer, windowDays int, log *zap.Logger) SweepReport {
	log = logger.WithFields(log, zap.String("job", "retraining-sweep"))

	users := r.UsersNeedingRetraining(ctx, windowDays)
	report := SweepReport{Users: len(users), Prepared: []string{}, Insufficient: []string{}, Failed: []string{}}

	for _, user := range users {
		if ctx.Err() != nil {
			break
		}

		_, err := r.RequestRetraining(ctx, user, records.RetrainingScheduled)
		switch {
		case err == nil:
			report.Prepared = append(report.Prepared, user)
		case apperr.Is(err, codes.FailedPrecondition):
			log.Info("skipping user", zap.String(logger.FieldUserID, user), zap.Error(err))
			report.Insufficient = append(report.Insufficient, user)
		default:
			log.Warn("retraining request failed", zap.String(logger.FieldUserID, user), zap.Error(err))
			report.Failed = append(report.Failed, user)
		}
	}

	log.Info("sweep finished",
		zap.Int("users", report.Users),
		zap.Int("prepared", len(report.Prepared)),
		zap.Int("insufficient", len(report.Insufficient)),
		zap.Int("failed", len(report.Failed)),
	)
	return report
}

// SweepJob wraps Sweep into a scheduled job.
func SweepJob(spec string, r Retrainer, windowDays int, log *zap.Logger) Job {
	return Job{
		Name: "retraining-sweep",
		Spec: spec,
		Run: func(ctx context.Context) error {
			Sweep(ctx, r, windowDays, log)
			return ctx.Err()
		},
	}
}
