package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/medtrack/adherence-api/internal/config"
	"github.com/medtrack/adherence-api/internal/email"
	"github.com/medtrack/adherence-api/internal/repository/postgres"
	"github.com/medtrack/adherence-api/internal/service/notification"
	"github.com/medtrack/adherence-api/internal/service/predictor"
	"github.com/medtrack/adherence-api/internal/service/scheduler"
	"github.com/medtrack/adherence-api/internal/worker"
	"github.com/medtrack/adherence-api/pkg/logger"
	"github.com/medtrack/adherence-api/pkg/messaging/redis"
	"github.com/medtrack/adherence-api/pkg/metrics"
)

func setupHealthCheck(port int, appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			appLogger.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	appLogger := logger.NewLogger(nil)

	opts, err := worker.LoadOptions(cfg.Worker)
	if err != nil {
		appLogger.Fatal(err, "failed to load worker options")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &appLogger.ZL)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to Redis")
	}
	defer broker.Close()

	patientRepo := postgres.NewPatientRepository(db)
	medicineRepo := postgres.NewMedicineRepository(db)
	reminderRepo := postgres.NewReminderRepository(db)
	adherenceRepo := postgres.NewAdherenceRepository(db)

	engineMetrics := metrics.New("adherence_worker")

	riskClient := predictor.NewClient(predictor.Config{
		URL:      cfg.Predictor.URL,
		Timeout:  cfg.Predictor.Timeout,
		CacheTTL: cfg.Predictor.CacheTTL,
	})

	emailSvc := email.NewNoopService()
	if cfg.SMTP.Enabled {
		emailSvc = email.NewSMTPService(cfg.SMTP)
	}

	dispatcher := notification.NewService(broker, emailSvc, patientRepo, appLogger, engineMetrics)

	engine := scheduler.NewService(
		reminderRepo,
		medicineRepo,
		adherenceRepo,
		riskClient,
		dispatcher,
		scheduler.PolicyFromConfig(cfg.Scheduler, cfg.Predictor.Timeout),
		appLogger,
		engineMetrics,
	)

	setupHealthCheck(opts.HealthPort, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := worker.NewSweeper(engine, opts, engineMetrics, appLogger)
	generator := worker.NewGenerator(engine, opts, appLogger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		generator.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down worker...")

	cancel()
	wg.Wait()
	appLogger.Info("worker stopped")
}
