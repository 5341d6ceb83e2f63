package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/helper-matcher/internal/logger"
	"github.com/spigell/helper-matcher/internal/records"
	"github.com/spigell/helper-matcher/internal/utils"
)

// MaxReportedErrors bounds BatchResult.Errors. Summary.Failed stays exact.
const MaxReportedErrors = 100

// Progress is reported after every finished item.
type Progress struct {
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Current   string `json:"current"`
}

// BatchOptions control a batch run.
type BatchOptions struct {
	BatchSize      int
	Delay          time.Duration
	Concurrency    int
	ForceRecompute bool
	// OnProgress is invoked serially with a strictly increasing Completed.
	OnProgress func(Progress)
}

// Options returns batch options built from the pipeline configuration.
func (p *Pipeline) Options() BatchOptions {
	return BatchOptions{
		BatchSize:   p.cfg.BatchSize,
		Delay:       p.cfg.Delay,
		Concurrency: p.cfg.Concurrency,
	}
}

// Summary counts batch outcomes.
type Summary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// ItemError records why a single helper failed.
type ItemError struct {
	Index    int    `json:"index"`
	HelperID string `json:"helper-id"`
	Err      error  `json:"-"`
}

func (e ItemError) MarshalJSON() ([]byte, error) {
	type view struct {
		Index    int    `json:"index"`
		HelperID string `json:"helper-id"`
		Error    string `json:"error"`
	}
	return json.Marshal(view{Index: e.Index, HelperID: e.HelperID, Error: e.Err.Error()})
}

// BatchResult is the outcome of a batch run.
type BatchResult struct {
	Summary Summary     `json:"summary"`
	Errors  []ItemError `json:"errors"`
}

// Partial reports whether some items failed.
func (r *BatchResult) Partial() bool {
	return r.Summary.Failed > 0
}

// BatchComputeFeatures computes vectors group by group. Items of a group run
// concurrently up to opts.Concurrency, groups are separated by opts.Delay and
// item failures never abort the batch. Cancellation of ctx is honoured only at
// group boundaries; the partial result is returned together with ctx.Err().
func (p *Pipeline) BatchComputeFeatures(ctx context.Context, helpers []records.HelperRecord, opts BatchOptions) (*BatchResult, error) {
	total := len(helpers)
	result := &BatchResult{Summary: Summary{Total: total}, Errors: []ItemError{}}

	size := opts.BatchSize
	if size <= 0 {
		size = max(total, 1)
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = size
	}

	// In-flight groups always finish.
	work := context.WithoutCancel(ctx)

	var mu sync.Mutex
	completed := 0

	for start := 0; start < total; start += size {
		if start > 0 {
			if err := utils.WaitFor(ctx, opts.Delay); err != nil {
				return result, err
			}
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		end := min(start+size, total)
		g := new(errgroup.Group)
		g.SetLimit(concurrency)

		for i := start; i < end; i++ {
			helper := helpers[i]
			g.Go(func() error {
				_, err := p.ComputeAndStoreFeatures(work, helper, opts.ForceRecompute)

				mu.Lock()
				defer mu.Unlock()

				completed++
				if err != nil {
					result.Summary.Failed++
					if len(result.Errors) < MaxReportedErrors {
						result.Errors = append(result.Errors, ItemError{Index: i, HelperID: helper.ID, Err: err})
					}
					p.deps.Logger.Warn("computing features failed", zap.Int("index", i), zap.String(logger.FieldHelperID, helper.ID), zap.Error(err))
				} else {
					result.Summary.Successful++
				}

				if opts.OnProgress != nil {
					opts.OnProgress(Progress{Completed: completed, Total: total, Current: helper.ID})
				}
				return nil
			})
		}

		// Items never return errors, they are collected above.
		_ = g.Wait()

		p.deps.Logger.Debug("group finished",
			zap.Int("from", start),
			zap.Int("to", end),
			zap.Int("completed", completed),
		)
	}

	p.deps.Logger.Info("batch finished",
		zap.Int("total", result.Summary.Total),
		zap.Int("successful", result.Summary.Successful),
		zap.Int("failed", result.Summary.Failed),
	)

	return result, nil
}
