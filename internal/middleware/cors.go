package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig covers the API surface: JSON requests with a bearer
// token, request ids and the API version echoed back.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			HeaderXRequestID,
		},
		ExposeHeaders: []string{
			"Content-Length",
			HeaderXRequestID,
			"X-API-Version",
		},
		AllowCredentials: true,
		MaxAge:           43200,
	}
}

// matchOrigin returns the Access-Control-Allow-Origin value for the given
// request origin, or "" when the origin is not allowed.
func (c CORSConfig) matchOrigin(origin string) string {
	for _, o := range c.AllowOrigins {
		if o == origin {
			return origin
		}
		if o == "*" {
			// Credentialed responses may not use the wildcard.
			if c.AllowCredentials && origin != "" {
				return origin
			}
			return "*"
		}
	}
	return ""
}

func CORS(config CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if allowed := config.matchOrigin(c.GetHeader("Origin")); allowed != "" {
			c.Header("Access-Control-Allow-Origin", allowed)
			c.Header("Access-Control-Allow-Methods", strings.Join(config.AllowMethods, ", "))
			c.Header("Access-Control-Allow-Headers", strings.Join(config.AllowHeaders, ", "))
			c.Header("Access-Control-Expose-Headers", strings.Join(config.ExposeHeaders, ", "))
			c.Header("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
			if config.AllowCredentials {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
