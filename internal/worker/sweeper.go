package worker

import (
	"context"
	"time"

	"github.com/medtrack/adherence-api/internal/service/scheduler"
	"github.com/medtrack/adherence-api/pkg/logger"
	"github.com/medtrack/adherence-api/pkg/metrics"
)

// Sweeper periodically force-resolves reminders that sat pending past the
// grace window. The engine does the actual transition; the sweeper only
// drives the loop.
type Sweeper struct {
	engine    *scheduler.Service
	interval  time.Duration
	batchSize int
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

func NewSweeper(engine *scheduler.Service, opts Options, m *metrics.Metrics, logger *logger.Logger) *Sweeper {
	return &Sweeper{
		engine:    engine,
		interval:  opts.SweepInterval,
		batchSize: opts.SweepBatchSize,
		metrics:   m,
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled. One sweep runs immediately on start.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("starting overdue sweeper",
		"interval", s.interval.String(),
		"batch_size", s.batchSize)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("overdue sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	start := time.Now()

	swept, err := s.engine.SweepOverdue(ctx, s.batchSize)
	if err != nil {
		s.logger.Error(err, "sweep failed")
		return
	}

	s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	s.metrics.SweepBatchSize.Set(float64(swept))

	if swept > 0 {
		s.logger.Info("swept overdue reminders", "count", swept)
	}
}
