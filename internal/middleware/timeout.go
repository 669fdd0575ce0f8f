package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type TimeoutConfig struct {
	Duration time.Duration
}

// DefaultTimeoutConfig allows enough headroom for the slowest legitimate
// request, a miss marking that waits out the predictor timeout.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{Duration: 30 * time.Second}
}

// Timeout caps request handling. Handlers observe the deadline through the
// request context; when none of them responds in time the client gets a 504
// while the handler goroutine is left to unwind on its cancelled context.
func Timeout(config TimeoutConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), config.Duration)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		go func() {
			defer close(done)
			c.Next()
		}()

		select {
		case <-done:
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				c.AbortWithStatusJSON(http.StatusGatewayTimeout, ErrorResponse{
					Code:    http.StatusGatewayTimeout,
					Message: "request timed out",
					TraceID: c.GetString(ContextRequestID),
				})
			}
		}
	}
}
