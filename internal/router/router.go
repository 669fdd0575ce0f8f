package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/medtrack/adherence-api/internal/handler"
	"github.com/medtrack/adherence-api/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine    *gin.Engine
	auth      *middleware.AuthMiddleware
	authH     Handler
	medicineH Handler
	reminderH Handler
	healthH   *handler.HealthHandler
	metrics   *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

type Config struct {
	RateLimitRPS  float64
	RateBurst     int
	CORSConfig    middleware.CORSConfig
	MetricsPrefix string
	Timeout       time.Duration
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	authH Handler,
	medicineH Handler,
	reminderH Handler,
	healthH *handler.HealthHandler,
	accessLog *zap.Logger,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	r := &Router{
		engine:    engine,
		auth:      auth,
		authH:     authH,
		medicineH: medicineH,
		reminderH: reminderH,
		healthH:   healthH,
		metrics:   initRouterMetrics(config.MetricsPrefix),
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = middleware.DefaultTimeoutConfig().Duration
	}

	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(accessLog),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: timeout}),
	)

	engine.Use(middleware.CORS(config.CORSConfig))

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RPS:   config.RateLimitRPS,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.setupHealthCheck(api)

	// Public routes
	r.authH.RegisterRoutes(api)

	// Protected routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.medicineH.RegisterRoutes(protected)
	r.reminderH.RegisterRoutes(protected)
}

func (r *Router) setupHealthCheck(rg *gin.RouterGroup) {
	health := rg.Group("/health")
	{
		health.GET("/live", r.healthH.LivenessCheck)
		health.GET("/ready", r.healthH.ReadinessCheck)
		health.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string) *routerMetrics {
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()

		c.Next()

		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= 400 {
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "http").Inc()
		}
	}
}
