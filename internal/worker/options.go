package worker

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/medtrack/adherence-api/internal/config"
)

// Options control the background loops. Values come from the worker config
// section and can be overridden per-deployment through WORKER_* environment
// variables.
type Options struct {
	SweepInterval    time.Duration `envconfig:"SWEEP_INTERVAL"`
	SweepBatchSize   int           `envconfig:"SWEEP_BATCH_SIZE"`
	GenerateInterval time.Duration `envconfig:"GENERATE_INTERVAL"`
	HealthPort       int           `envconfig:"HEALTH_PORT"`
}

// LoadOptions merges the config file values with environment overrides.
func LoadOptions(cfg config.WorkerConfig) (Options, error) {
	opts := Options{
		SweepInterval:    cfg.SweepInterval,
		SweepBatchSize:   cfg.SweepBatchSize,
		GenerateInterval: cfg.GenerateInterval,
		HealthPort:       cfg.HealthPort,
	}

	if err := envconfig.Process("worker", &opts); err != nil {
		return opts, fmt.Errorf("failed to process worker env overrides: %w", err)
	}

	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 2 * time.Minute
	}
	if opts.SweepBatchSize <= 0 {
		opts.SweepBatchSize = 200
	}
	if opts.GenerateInterval <= 0 {
		opts.GenerateInterval = time.Hour
	}
	return opts, nil
}
