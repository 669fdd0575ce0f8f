package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/medtrack/adherence-api/pkg/messaging"
)

type HealthHandler struct {
	db     *sqlx.DB
	broker messaging.Broker
}

func NewHealthHandler(db *sqlx.DB, broker messaging.Broker) *HealthHandler {
	return &HealthHandler{db: db, broker: broker}
}

func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"status": "healthy",
		},
	})
}

// ReadinessCheck pings the backing stores; the broker is best-effort and
// does not fail readiness since notifications are fire-and-forget anyway.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx := c.Request.Context()

	checks := gin.H{"database": "ok", "broker": "ok"}
	status := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.broker.Ping(ctx); err != nil {
		checks["broker"] = "degraded: " + err.Error()
	}

	c.JSON(status, gin.H{
		"status": "success",
		"data": gin.H{
			"checks": checks,
			"time":   time.Now().UTC(),
		},
	})
}
