package pipeline

import (
	"context"
	"errors"

	"github.com/spigell/helper-matcher/internal/apperr"
	"github.com/spigell/helper-matcher/internal/features"
	"github.com/spigell/helper-matcher/internal/records"
	"github.com/spigell/helper-matcher/internal/store"
)

// AuditReport summarizes stored vector quality for a set of helpers.
type AuditReport struct {
	Checked  int                 `json:"checked"`
	Valid    int                 `json:"valid"`
	Invalid  int                 `json:"invalid"`
	Missing  int                 `json:"missing"`
	Stored   int                 `json:"stored"`
	Problems map[string][]string `json:"problems,omitempty"`
}

// Audit applies the validation predicate to the stored vectors of helpers.
func (p *Pipeline) Audit(ctx context.Context, helpers []records.HelperRecord) (*AuditReport, error) {
	report := &AuditReport{Problems: make(map[string][]string)}

	for _, helper := range helpers {
		report.Checked++

		v, err := p.deps.Features.GetFeatures(ctx, helper.ID)
		if errors.Is(err, store.ErrNotFound) {
			report.Missing++
			continue
		}
		if err != nil {
			return nil, apperr.Unavailable(err, "loading features of helper %q", helper.ID)
		}

		if problems := features.Problems(v); len(problems) > 0 {
			report.Invalid++
			report.Problems[helper.ID] = problems
			continue
		}
		report.Valid++
	}

	stored, err := p.deps.Features.CountFeatures(ctx)
	if err != nil {
		return nil, apperr.Unavailable(err, "counting stored features")
	}
	report.Stored = stored

	return report, nil
}
