package worker

import (
	"context"
	"time"

	"github.com/medtrack/adherence-api/internal/service/scheduler"
	"github.com/medtrack/adherence-api/pkg/logger"
)

// Generator materializes reminder rows from medicine schedules. Generation
// is idempotent at the store, so the loop covers today and tomorrow every
// pass without creating duplicates.
type Generator struct {
	engine   *scheduler.Service
	interval time.Duration
	logger   *logger.Logger
}

func NewGenerator(engine *scheduler.Service, opts Options, logger *logger.Logger) *Generator {
	return &Generator{
		engine:   engine,
		interval: opts.GenerateInterval,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled. One generation pass runs immediately
// on start.
func (g *Generator) Run(ctx context.Context) {
	g.logger.Info("starting reminder generator", "interval", g.interval.String())

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	g.generate(ctx)

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("reminder generator stopped")
			return
		case <-ticker.C:
			g.generate(ctx)
		}
	}
}

func (g *Generator) generate(ctx context.Context) {
	now := time.Now()
	total := 0

	for _, day := range []time.Time{now, now.AddDate(0, 0, 1)} {
		created, err := g.engine.GenerateForDay(ctx, day)
		if err != nil {
			g.logger.Error(err, "reminder generation failed",
				"day", day.Format("2006-01-02"))
			continue
		}
		total += created
	}

	if total > 0 {
		g.logger.Info("generated reminders", "count", total)
	}
}
