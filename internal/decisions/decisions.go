// Package decisions records hiring decisions and drives retraining requests.
package decisions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/spigell/helper-matcher/internal/apperr"
	"github.com/spigell/helper-matcher/internal/logger"
	"github.com/spigell/helper-matcher/internal/records"
	"github.com/spigell/helper-matcher/internal/store"
)

// EventDataPrepared is published when a request reaches data_prepared.
const EventDataPrepared = "retraining.data_prepared"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config of the tracker.
type Config struct {
	// Window is the trailing number of decisions that triggers retraining when full.
	Window int `mapstructure:"window"`
	// MinTrainingDecisions is required before a request can reach data_prepared.
	MinTrainingDecisions int `mapstructure:"min-training-decisions"`
	// TrainingLimit caps how many decisions are staged for one request.
	TrainingLimit int `mapstructure:"training-limit"`
	// SweepWindowDays is used when a sweep passes no window.
	SweepWindowDays int `mapstructure:"sweep-window-days"`
}

// DefaultConfig returns the tracker defaults.
func DefaultConfig() Config {
	return Config{
		Window:               50,
		MinTrainingDecisions: 10,
		TrainingLimit:        1000,
		SweepWindowDays:      7,
	}
}

// Event notifies downstream trainers about retraining progress.
type Event struct {
	Type              string                 `json:"type"`
	UserID            string                 `json:"user-id"`
	RequestType       records.RetrainingType `json:"request-type"`
	TrainingDataCount int                    `json:"training-data-count"`
	OccurredAt        time.Time              `json:"occurred-at"`
}

// Publisher delivers events. Delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// InsufficientDataError is returned when a user lacks training decisions.
type InsufficientDataError struct {
	UserID   string
	Actual   int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("user %q has %d training decisions, %d required", e.UserID, e.Actual, e.Required)
}

// GRPCStatus classifies the error as FailedPrecondition.
func (e *InsufficientDataError) GRPCStatus() *status.Status {
	return status.New(codes.FailedPrecondition, e.Error())
}

// Deps aggregates the collaborators of the tracker. Publisher is optional.
type Deps struct {
	Decisions  store.DecisionStore
	Retraining store.RetrainingStore
	Publisher  Publisher
	Logger     *zap.Logger
	Now        func() time.Time
	NewID      func() string
}

// Tracker appends decisions and manages retraining requests.
type Tracker struct {
	deps Deps
	cfg  Config
}

// New creates a tracker.
func New(deps Deps, cfg Config) *Tracker {
	deps.Logger = logger.WithFields(deps.Logger, zap.String("component", "decisions"))
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return &Tracker{deps: deps, cfg: cfg}
}

// TrackResult is the outcome of TrackDecision.
type TrackResult struct {
	Stored        records.Decision `json:"stored"`
	ShouldRetrain bool             `json:"should-retrain"`
}

// TrackDecision appends a decision and reports whether the user's trailing
// window of decisions is full.
func (t *Tracker) TrackDecision(ctx context.Context, d records.Decision) (*TrackResult, error) {
	if err := validate.Struct(d); err != nil {
		return nil, apperr.InvalidArgument("invalid decision: %v", err)
	}

	if d.ID == "" {
		d.ID = t.deps.NewID()
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = t.deps.Now()
	}

	if err := t.deps.Decisions.AppendDecision(ctx, d); err != nil {
		return nil, apperr.Unavailable(err, "appending decision")
	}

	recent, err := t.deps.Decisions.RecentByUser(ctx, d.ActingUserID, t.cfg.Window)
	if err != nil {
		return nil, apperr.Unavailable(err, "counting recent decisions of user %q", d.ActingUserID)
	}

	res := &TrackResult{Stored: d, ShouldRetrain: len(recent) >= t.cfg.Window}

	t.deps.Logger.Info("decision tracked",
		zap.String(logger.FieldUserID, d.ActingUserID),
		zap.String(logger.FieldHelperID, d.HelperID),
		zap.String(logger.FieldJobID, d.JobID),
		zap.String("action", string(d.Action)),
		zap.Bool("should_retrain", res.ShouldRetrain),
	)

	return res, nil
}

// RequestRetraining supersedes the user's request with a pending one and moves
// it to data_prepared when enough decisions exist. With too few decisions the
// request stays pending and an *InsufficientDataError is returned.
func (t *Tracker) RequestRetraining(ctx context.Context, userID string, kind records.RetrainingType) (*records.RetrainingRequest, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperr.InvalidArgument("user id is required")
	}
	if kind == "" {
		kind = records.RetrainingManual
	}

	current, err := t.current(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := t.deps.Now()
	req := records.RetrainingRequest{
		UserID:      userID,
		Status:      current.Status,
		RequestType: kind,
		RequestedAt: now,
	}
	if err := t.transition(ctx, &req, records.RetrainingPending); err != nil {
		return nil, err
	}

	decisions, err := t.deps.Decisions.RecentByUser(ctx, userID, t.cfg.TrainingLimit)
	if err != nil {
		return nil, apperr.Unavailable(err, "loading training decisions of user %q", userID)
	}

	if len(decisions) < t.cfg.MinTrainingDecisions {
		t.deps.Logger.Info("not enough training data",
			zap.String(logger.FieldUserID, userID),
			zap.Int("actual", len(decisions)),
			zap.Int("required", t.cfg.MinTrainingDecisions),
		)
		return nil, &InsufficientDataError{UserID: userID, Actual: len(decisions), Required: t.cfg.MinTrainingDecisions}
	}

	req.TrainingDataCount = len(decisions)
	if err := t.transition(ctx, &req, records.RetrainingDataPrepared); err != nil {
		return nil, err
	}

	t.publish(ctx, Event{
		Type:              EventDataPrepared,
		UserID:            userID,
		RequestType:       kind,
		TrainingDataCount: req.TrainingDataCount,
		OccurredAt:        req.UpdatedAt,
	})

	return &req, nil
}

// MarkCompleted closes a data_prepared request once the external trainer is done.
func (t *Tracker) MarkCompleted(ctx context.Context, userID string) (*records.RetrainingRequest, error) {
	req, err := t.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Status == "" {
		return nil, apperr.NotFound("user %q has no retraining request", userID)
	}
	if err := t.transition(ctx, &req, records.RetrainingCompleted); err != nil {
		return nil, err
	}
	return &req, nil
}

// UsersNeedingRetraining returns the sorted users with a decision in the last
// windowDays days. It is best-effort: store failures yield an empty set.
func (t *Tracker) UsersNeedingRetraining(ctx context.Context, windowDays int) []string {
	if windowDays <= 0 {
		windowDays = t.cfg.SweepWindowDays
	}
	since := t.deps.Now().Add(-time.Duration(windowDays) * 24 * time.Hour)

	users, err := t.deps.Decisions.DistinctUsersSince(ctx, since)
	if err != nil {
		t.deps.Logger.Warn("listing users for retraining failed", zap.Time("since", since), zap.Error(err))
		return []string{}
	}
	if users == nil {
		return []string{}
	}
	return users
}

func (t *Tracker) current(ctx context.Context, userID string) (records.RetrainingRequest, error) {
	req, err := t.deps.Retraining.GetRetraining(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return records.RetrainingRequest{UserID: userID}, nil
	}
	if err != nil {
		return records.RetrainingRequest{}, apperr.Unavailable(err, "loading retraining request of user %q", userID)
	}
	return req, nil
}

// transition validates and persists a status change.
func (t *Tracker) transition(ctx context.Context, req *records.RetrainingRequest, to records.RetrainingStatus) error {
	if !IsTransitionAllowed(req.Status, to) {
		return apperr.FailedPrecondition("retraining request of user %q cannot move from %q to %q", req.UserID, req.Status, to)
	}
	if to == records.RetrainingDataPrepared && req.TrainingDataCount < t.cfg.MinTrainingDecisions {
		return apperr.FailedPrecondition("retraining request of user %q has %d training decisions, %d required",
			req.UserID, req.TrainingDataCount, t.cfg.MinTrainingDecisions)
	}

	from := req.Status
	req.Status = to
	req.UpdatedAt = t.deps.Now()
	if err := t.deps.Retraining.UpsertRetraining(ctx, *req); err != nil {
		return apperr.Unavailable(err, "saving retraining request of user %q", req.UserID)
	}

	t.deps.Logger.Info("retraining status changed",
		zap.String(logger.FieldUserID, req.UserID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return nil
}

func (t *Tracker) publish(ctx context.Context, e Event) {
	if t.deps.Publisher == nil {
		return
	}
	if err := t.deps.Publisher.Publish(ctx, e); err != nil {
		t.deps.Logger.Warn("publishing retraining event failed",
			zap.String("type", e.Type),
			zap.String(logger.FieldUserID, e.UserID),
			zap.Error(err),
		)
	}
}
