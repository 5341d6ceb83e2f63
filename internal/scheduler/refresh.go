package scheduler

import (
	"context"
	"fmt"

	"github.com/spigell/helper-matcher/internal/pipeline"
	"github.com/spigell/helper-matcher/internal/store"
)

// RefreshJob recomputes stale or missing vectors of eligible helpers.
// Up-to-date vectors are cache hits and cost nothing.
func RefreshJob(spec string, helpers store.HelperStore, p *pipeline.Pipeline, limit int) Job {
	return Job{
		Name: "feature-refresh",
		Spec: spec,
		Run: func(ctx context.Context) error {
			pool, err := helpers.QueryActiveRegisteredHelpers(ctx, limit)
			if err != nil {
				return fmt.Errorf("loading helpers: %w", err)
			}
			_, err = p.BatchComputeFeatures(ctx, pool, p.Options())
			return err
		},
	}
}
