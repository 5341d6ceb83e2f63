// Package pipeline computes, caches and refreshes helper feature vectors.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/helper-matcher/internal/apperr"
	"github.com/spigell/helper-matcher/internal/features"
	"github.com/spigell/helper-matcher/internal/logger"
	"github.com/spigell/helper-matcher/internal/records"
	"github.com/spigell/helper-matcher/internal/store"
)

// Enricher may rewrite a helper record before extraction. Failures are not fatal.
type Enricher interface {
	Enrich(ctx context.Context, helper records.HelperRecord) (records.HelperRecord, error)
}

// Config of the pipeline.
type Config struct {
	BatchSize   int           `mapstructure:"batch-size"`
	Delay       time.Duration `mapstructure:"delay"`
	Concurrency int           `mapstructure:"concurrency"`
	// VerifySourceHash treats a cached vector as stale once the helper record changed.
	VerifySourceHash bool `mapstructure:"verify-source-hash"`
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:        10,
		Delay:            time.Second,
		Concurrency:      5,
		VerifySourceHash: true,
	}
}

// Deps aggregates the collaborators of the pipeline. Enricher is optional.
type Deps struct {
	Features store.FeatureStore
	Enricher Enricher
	Logger   *zap.Logger
	// Now stamps vectors and anchors age computation. Defaults to time.Now.
	Now func() time.Time
}

// Pipeline computes vectors and keeps the feature store current.
type Pipeline struct {
	deps Deps
	cfg  Config
}

// New creates a pipeline.
func New(deps Deps, cfg Config) *Pipeline {
	deps.Logger = logger.WithFields(deps.Logger, zap.String("component", "pipeline"))
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Pipeline{deps: deps, cfg: cfg}
}

// ComputeAndStoreFeatures returns the cached vector when it is still valid,
// unless force is set. Otherwise it extracts, stores and returns a new one.
// Concurrent calls for the same helper may both recompute; the last write wins.
func (p *Pipeline) ComputeAndStoreFeatures(ctx context.Context, helper records.HelperRecord, force bool) (*features.Vector, error) {
	if err := helper.Validate(); err != nil {
		return nil, apperr.InvalidArgument("invalid helper record: %v", err)
	}

	log := logger.WithFields(p.deps.Logger, zap.String(logger.FieldHelperID, helper.ID))

	hash, err := features.SourceHash(helper)
	if err != nil {
		return nil, apperr.InvalidArgument("fingerprinting helper: %v", err)
	}

	if !force {
		cached, err := p.deps.Features.GetFeatures(ctx, helper.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return nil, apperr.Unavailable(err, "loading cached features of helper %q", helper.ID)
		case p.cacheHit(cached, hash):
			log.Debug("features served from cache")
			return cached, nil
		default:
			log.Debug("cached features are stale or incomplete", zap.Strings("problems", features.Problems(cached)))
		}
	}

	source := helper
	if p.deps.Enricher != nil {
		enriched, err := p.deps.Enricher.Enrich(ctx, helper)
		if err != nil {
			log.Warn("enrichment failed, using the raw record", zap.Error(err))
		} else {
			source = enriched
		}
	}

	now := p.deps.Now()
	extracted := features.ExtractHelperFeatures(source, now)
	if len(extracted.Missing) > 0 {
		log.Debug("neutral defaults applied", zap.Strings("missing", extracted.Missing))
	}

	v := features.NewVector(extracted, hash, now)
	if problems := features.Problems(v); len(problems) > 0 {
		return nil, fmt.Errorf("computed features of helper %q are invalid: %v", helper.ID, problems)
	}

	if err := p.deps.Features.PutFeatures(ctx, helper.ID, v); err != nil {
		return nil, apperr.Unavailable(err, "storing features of helper %q", helper.ID)
	}

	log.Debug("features computed", zap.Float64("quality", v.Composite.OverallQualityScore))
	return v, nil
}

func (p *Pipeline) cacheHit(cached *features.Vector, hash string) bool {
	if !features.Valid(cached) {
		return false
	}
	if !p.cfg.VerifySourceHash || cached.Meta.SourceHash == "" {
		return true
	}
	return cached.Meta.SourceHash == hash
}
