// Package store declares the persistence collaborators the engine depends on.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/spigell/helper-matcher/internal/features"
	"github.com/spigell/helper-matcher/internal/records"
)

// ErrNotFound is returned by getters when the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// JobStore resolves jobs.
type JobStore interface {
	GetJob(ctx context.Context, jobID string) (records.JobRecord, error)
}

// HelperStore resolves helpers.
type HelperStore interface {
	// QueryActiveRegisteredHelpers returns up to limit helpers that are active and
	// have completed registration, ordered by id.
	QueryActiveRegisteredHelpers(ctx context.Context, limit int) ([]records.HelperRecord, error)
	GetHelper(ctx context.Context, helperID string) (records.HelperRecord, error)
}

// FeatureStore persists helper feature vectors.
type FeatureStore interface {
	GetFeatures(ctx context.Context, helperID string) (*features.Vector, error)
	PutFeatures(ctx context.Context, helperID string, v *features.Vector) error
	CountFeatures(ctx context.Context) (int, error)
}

// DecisionStore is the append-only decision log.
type DecisionStore interface {
	AppendDecision(ctx context.Context, d records.Decision) error
	// RecentByUser returns up to limit decisions of a user, newest first.
	RecentByUser(ctx context.Context, userID string, limit int) ([]records.Decision, error)
	// DistinctUsersSince returns the sorted ids of users with a decision at or after since.
	DistinctUsersSince(ctx context.Context, since time.Time) ([]string, error)
}

// RetrainingStore keeps one retraining request per user.
type RetrainingStore interface {
	GetRetraining(ctx context.Context, userID string) (records.RetrainingRequest, error)
	// UpsertRetraining replaces the user's request or creates it when missing.
	UpsertRetraining(ctx context.Context, req records.RetrainingRequest) error
}
