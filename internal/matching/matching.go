// Package matching ranks candidate helpers for a job.
package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spigell/helper-matcher/internal/apperr"
	"github.com/spigell/helper-matcher/internal/features"
	"github.com/spigell/helper-matcher/internal/flexibility"
	"github.com/spigell/helper-matcher/internal/logger"
	"github.com/spigell/helper-matcher/internal/records"
	"github.com/spigell/helper-matcher/internal/rules"
	"github.com/spigell/helper-matcher/internal/scoring"
	"github.com/spigell/helper-matcher/internal/store"
)

// MaxLimit is the largest page a single request may ask for.
const MaxLimit = 50

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config of the orchestrator.
type Config struct {
	// PoolSize bounds the candidate pool fetched when the request carries none.
	PoolSize     int  `mapstructure:"pool-size"`
	DynamicRules bool `mapstructure:"dynamic-rules"`
	// VerifySourceHash rejects cached vectors of changed helpers. It follows
	// features.verify-source-hash so the pipeline and the orchestrator agree.
	VerifySourceHash bool `mapstructure:"-"`
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{PoolSize: 500, DynamicRules: true, VerifySourceHash: true}
}

// Request asks for one page of ranked helpers.
type Request struct {
	JobID string `validate:"required"`
	// Candidates overrides the pool fetched from the helper store.
	Candidates []records.HelperRecord
	Limit      int `validate:"min=1,max=50"`
	Offset     int `validate:"min=0"`
	// DynamicRules overrides Config.DynamicRules when set.
	DynamicRules *bool
}

// Result is one page of ranked helpers.
type Result struct {
	JobID        string               `json:"job-id"`
	Matches      []scoring.Match      `json:"matches"`
	TotalMatches int                  `json:"total-matches"`
	HasMore      bool                 `json:"has-more"`
	Rules        *scoring.RuleSet     `json:"rules,omitempty"`
	Profile      *flexibility.Profile `json:"profile,omitempty"`
}

// Deps aggregates the collaborators of the orchestrator.
// Features and Rules are optional.
type Deps struct {
	Jobs     store.JobStore
	Helpers  store.HelperStore
	Features store.FeatureStore
	Scorer   *scoring.Scorer
	Rules    *rules.Generator
	Logger   *zap.Logger
	// Now is the reference instant for age and activity. Defaults to time.Now.
	Now func() time.Time
}

// Orchestrator resolves a job, scores its candidate pool and paginates.
type Orchestrator struct {
	deps    Deps
	cfg     Config
	filters []Filter
}

// New creates an orchestrator.
func New(deps Deps, cfg Config) *Orchestrator {
	deps.Logger = logger.WithFields(deps.Logger, zap.String("component", "matching"))
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Scorer == nil {
		deps.Scorer = scoring.New(scoring.DefaultConfig())
	}
	return &Orchestrator{deps: deps, cfg: cfg, filters: DefaultFilters()}
}

// FindMatches returns the requested page of helpers ranked for the job.
func (o *Orchestrator) FindMatches(ctx context.Context, req Request) (*Result, error) {
	if err := validate.Struct(req); err != nil {
		return nil, invalidRequest(err)
	}

	job, err := o.deps.Jobs.GetJob(ctx, req.JobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("job %q not found", req.JobID)
	}
	if err != nil {
		return nil, apperr.Unavailable(err, "loading job %q", req.JobID)
	}

	pool := req.Candidates
	if pool == nil {
		pool, err = o.deps.Helpers.QueryActiveRegisteredHelpers(ctx, o.cfg.PoolSize)
		if err != nil {
			return nil, apperr.Unavailable(err, "querying candidate pool")
		}
	}
	log := logger.WithFields(o.deps.Logger, logger.MatchFields(job.ID, "")...)
	pool = RunFilters(ctx, log, o.filters, pool)

	result := &Result{JobID: job.ID}

	dynamic := o.cfg.DynamicRules
	if req.DynamicRules != nil {
		dynamic = *req.DynamicRules
	}
	if dynamic && o.deps.Rules != nil && job.EmployerID != "" {
		ruleSet, profile, err := o.deps.Rules.GenerateRules(ctx, job, job.EmployerID)
		if err != nil {
			return nil, err
		}
		result.Rules = ruleSet
		result.Profile = &profile
	}

	ref := o.deps.Now()
	jobFeatures := features.ExtractJobFeatures(job)
	params := o.deps.Scorer.Config().Resolve(jobFeatures, result.Rules)

	matches := make([]scoring.Match, 0, len(pool))
	for _, helper := range pool {
		hf, err := o.helperFeatures(ctx, helper, ref)
		if err != nil {
			return nil, err
		}

		scored := scoring.ScoreWith(params, jobFeatures, hf)
		matches = append(matches, scoring.Match{
			HelperID:            helper.ID,
			Similarity:          scored.Similarity,
			ProfileCompleteness: hf.Composite.ProfileCompleteness,
			Reasons:             scored.Reasons,
		})
	}
	scoring.Rank(matches)

	result.TotalMatches = len(matches)
	result.HasMore = req.Offset+req.Limit < result.TotalMatches
	result.Matches = page(matches, req.Offset, req.Limit)

	log.Info("matched job",
		zap.Int("candidates", len(pool)),
		zap.Int("returned", len(result.Matches)),
		zap.Bool("dynamic_rules", result.Rules != nil),
	)

	return result, nil
}

// helperFeatures serves a valid, current cached vector or extracts on the fly.
// The orchestrator never writes to the feature store.
func (o *Orchestrator) helperFeatures(ctx context.Context, helper records.HelperRecord, ref time.Time) (features.HelperFeatures, error) {
	if o.deps.Features != nil {
		v, err := o.deps.Features.GetFeatures(ctx, helper.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return features.HelperFeatures{}, apperr.Unavailable(err, "loading features of helper %q", helper.ID)
		case features.Valid(v) && o.current(helper, v):
			return v.HelperFeatures, nil
		}
	}
	return features.ExtractHelperFeatures(helper, ref), nil
}

func (o *Orchestrator) current(helper records.HelperRecord, v *features.Vector) bool {
	if !o.cfg.VerifySourceHash || v.Meta.SourceHash == "" {
		return true
	}
	hash, err := features.SourceHash(helper)
	if err != nil {
		return false
	}
	return hash == v.Meta.SourceHash
}

func page(matches []scoring.Match, offset, limit int) []scoring.Match {
	if offset >= len(matches) {
		return []scoring.Match{}
	}
	end := min(offset+limit, len(matches))
	return matches[offset:end]
}

func invalidRequest(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.InvalidArgument("invalid match request: %v", err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			problems = append(problems, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		case "max":
			problems = append(problems, fmt.Sprintf("%s %v exceeds the maximum of %s", strings.ToLower(fe.Field()), fe.Value(), fe.Param()))
		default:
			problems = append(problems, fmt.Sprintf("%s %v must be %s %s", strings.ToLower(fe.Field()), fe.Value(), fe.Tag(), fe.Param()))
		}
	}
	return apperr.InvalidArgument("invalid match request: %s", strings.Join(problems, "; "))
}
