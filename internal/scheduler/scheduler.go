// Package scheduler drives the pipeline on a fixed interval.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Runner is the unit of work executed on every tick.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler triggers pipeline runs every interval. Runs are singleton: a
// tick that fires while the previous run is still in flight is skipped, so
// slow runs stretch the cadence instead of stacking.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a Scheduler over the given runner.
func New(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the job and begins ticking. The first run fires
// immediately rather than waiting out the first interval.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).SingletonMode().StartImmediately().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.interval)
		defer cancel()

		s.logger.Info("pipeline run starting")
		if err := s.runner.Run(ctx); err != nil {
			s.logger.Error("pipeline run failed", "error", err)
			return
		}
		s.logger.Info("pipeline run complete")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop halts future ticks. A run already in flight is left to finish.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
