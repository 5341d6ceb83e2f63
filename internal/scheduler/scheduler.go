// Package scheduler runs periodic maintenance jobs such as the retraining
// sweep and the feature refresh.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spigell/helper-matcher/internal/logger"
)

// Job is a unit of periodic work. Errors are logged, never fatal.
type Job struct {
	Name string
	// Spec is a cron expression or descriptor such as "@every 6h".
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler wraps robfig/cron.
type Scheduler struct {
	cron  *cron.Cron
	chain cron.Chain
	jobs  []Job
	log   *zap.Logger

	wg sync.WaitGroup
}

// New creates a scheduler for jobs.
func New(log *zap.Logger, jobs ...Job) *Scheduler {
	log = logger.WithFields(log, zap.String("component", "scheduler"))
	cl := cronLogger{log.Sugar()}
	return &Scheduler{
		cron:  cron.New(cron.WithLogger(cl)),
		chain: cron.NewChain(cron.SkipIfStillRunning(cl)),
		jobs:  jobs,
		log:   log,
	}
}

// Start registers every job, starts the cron loop and runs each job once
// immediately without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	// The initial run and the ticks share one wrapper, so a tick that fires
	// while the initial run is still going is skipped.
	wrapped := make([]cron.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		w := s.chain.Then(cron.FuncJob(func() { s.run(ctx, job) }))
		if _, err := s.cron.AddJob(job.Spec, w); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", job.Name, job.Spec, err)
		}
		wrapped = append(wrapped, w)
	}

	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.jobs)))

	for _, w := range wrapped {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			w.Run()
		}()
	}

	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}

	log := s.log.With(zap.String("job", job.Name))
	log.Debug("job started")
	if err := job.Run(ctx); err != nil {
		log.Error("job failed", zap.Error(err))
		return
	}
	log.Debug("job finished")
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
