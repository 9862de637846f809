package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/notifications-delivery/internal/metrics"
)

// Runner is one unit of scheduled work.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler runs a cycle immediately and then on every tick. Cycles never
// overlap: a tick that fires while a cycle is still running is dropped.
type Scheduler struct {
	Cycle    Runner
	Interval time.Duration
	Log      *zap.Logger
}

func NewScheduler(cycle Runner, interval time.Duration, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{Cycle: cycle, Interval: interval, Log: log}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Log.Info("delivery scheduler started", zap.Duration("interval", s.Interval))

	t := time.NewTicker(s.Interval)
	defer t.Stop()

	for {
		s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			s.Log.Info("delivery scheduler stopped")
			return nil
		case <-t.C:
		}
	}
}

// RunOnce executes a single cycle and never panics.
func (s *Scheduler) RunOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			metrics.CyclesTotal.WithLabelValues("panic").Inc()
			s.Log.Error("delivery cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	if err := s.Cycle.Run(ctx); err != nil {
		s.Log.Error("delivery cycle failed", zap.Error(err))
	}
}
