package matching

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/helper-matcher/internal/records"
)

// Filter is a single step applied to the candidate pool before scoring.
type Filter interface {
	Name() string
	Apply(ctx context.Context, pool []records.HelperRecord) ([]records.HelperRecord, Step)
}

// Step describes the result of executing a filter.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// DefaultFilters returns the steps every pool goes through.
func DefaultFilters() []Filter {
	return []Filter{eligibilityFilter{}, dedupeFilter{}}
}

// RunFilters applies the steps in order, logging the statistics of each one.
func RunFilters(ctx context.Context, log *zap.Logger, steps []Filter, pool []records.HelperRecord) []records.HelperRecord {
	for _, step := range steps {
		next, info := step.Apply(ctx, pool)
		log.Debug("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)
		pool = next
	}
	return pool
}

// eligibilityFilter keeps active helpers with completed registration.
type eligibilityFilter struct{}

func (eligibilityFilter) Name() string { return "eligibility" }

func (eligibilityFilter) Apply(_ context.Context, pool []records.HelperRecord) ([]records.HelperRecord, Step) {
	kept := make([]records.HelperRecord, 0, len(pool))
	for _, helper := range pool {
		if helper.Eligible() {
			kept = append(kept, helper)
		}
	}
	return kept, Step{Initial: len(pool), Dropped: len(pool) - len(kept), Left: len(kept)}
}

// dedupeFilter drops repeated helper ids, keeping the first occurrence.
type dedupeFilter struct{}

func (dedupeFilter) Name() string { return "dedupe" }

func (dedupeFilter) Apply(_ context.Context, pool []records.HelperRecord) ([]records.HelperRecord, Step) {
	seen := make(map[string]struct{}, len(pool))
	kept := make([]records.HelperRecord, 0, len(pool))
	for _, helper := range pool {
		if _, ok := seen[helper.ID]; ok {
			continue
		}
		seen[helper.ID] = struct{}{}
		kept = append(kept, helper)
	}
	return kept, Step{Initial: len(pool), Dropped: len(pool) - len(kept), Left: len(kept)}
}
