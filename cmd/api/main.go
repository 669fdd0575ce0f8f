package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/zap"

	"github.com/medtrack/adherence-api/internal/config"
	"github.com/medtrack/adherence-api/internal/email"
	"github.com/medtrack/adherence-api/internal/handler"
	authHandler "github.com/medtrack/adherence-api/internal/handler/auth"
	medicineHandler "github.com/medtrack/adherence-api/internal/handler/medicine"
	reminderHandler "github.com/medtrack/adherence-api/internal/handler/reminder"
	"github.com/medtrack/adherence-api/internal/middleware"
	"github.com/medtrack/adherence-api/internal/repository/postgres"
	"github.com/medtrack/adherence-api/internal/router"
	authService "github.com/medtrack/adherence-api/internal/service/auth"
	medicineService "github.com/medtrack/adherence-api/internal/service/medicine"
	"github.com/medtrack/adherence-api/internal/service/notification"
	"github.com/medtrack/adherence-api/internal/service/predictor"
	"github.com/medtrack/adherence-api/internal/service/scheduler"
	"github.com/medtrack/adherence-api/pkg/auth"
	"github.com/medtrack/adherence-api/pkg/logger"
	"github.com/medtrack/adherence-api/pkg/messaging/redis"
	"github.com/medtrack/adherence-api/pkg/metrics"
	"github.com/medtrack/adherence-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	accessLog, err := zap.NewProduction()
	if err != nil {
		appLogger.Fatal(err, "failed to initialize access logger")
	}
	defer accessLog.Sync()

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

	// Repositories
	patientRepo := postgres.NewPatientRepository(db)
	medicineRepo := postgres.NewMedicineRepository(db)
	reminderRepo := postgres.NewReminderRepository(db)
	adherenceRepo := postgres.NewAdherenceRepository(db)

	engineMetrics := metrics.New("adherence")

	// Outbound integrations
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

	// Services
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

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	hasher := security.NewBcryptHasher(0)
	authSvc := authService.NewService(patientRepo, hasher, jwtSvc, appLogger)
	medicineSvc := medicineService.NewService(medicineRepo, reminderRepo, adherenceRepo, appLogger)

	// Handlers
	healthH := handler.NewHealthHandler(db, broker)
	authH := authHandler.NewHandler(authSvc)
	medicineH := medicineHandler.NewHandler(medicineSvc)
	reminderH := reminderHandler.NewHandler(engine, reminderRepo)

	authMiddleware := middleware.NewAuthMiddleware(jwtSvc)

	r := router.NewRouter(
		authMiddleware,
		authH,
		medicineH,
		reminderH,
		healthH,
		accessLog,
		router.Config{
			RateLimitRPS:  float64(cfg.Server.RateLimitRPS),
			RateBurst:     cfg.Server.RateLimitBurst,
			CORSConfig:    middleware.DefaultCORSConfig(),
			MetricsPrefix: "adherence_api",
			Timeout:       time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		appLogger.Info("starting API server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error(err, "forced shutdown")
	}
	appLogger.Info("server stopped")
}
