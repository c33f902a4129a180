package ingestion

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs cycles at a fixed interval until the context is
// cancelled. A cycle's failure never affects the next one; outcomes are
// logged from the stats record.
type Scheduler struct {
	orchestrator *Orchestrator
	interval     time.Duration
	logger       *zap.Logger
}

func NewScheduler(o *Orchestrator, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{orchestrator: o, interval: interval, logger: logger}
}

// Run executes one cycle immediately, then one per interval. Returns
// when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, opts Options) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx, opts)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx, opts)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, opts Options) {
	cycleCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	stats, err := s.orchestrator.RunCycle(cycleCtx, opts)
	if err != nil && ctx.Err() == nil {
		s.logger.Warn("cycle ended early", zap.Error(err))
	}
	if stats != nil && len(stats.Errors) > 0 {
		s.logger.Warn("cycle completed with diagnostics",
			zap.String("cycle_id", stats.CycleID.String()),
			zap.Strings("errors", stats.Errors))
	}
}
