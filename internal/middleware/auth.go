package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medtrack/adherence-api/internal/handler"
	"github.com/medtrack/adherence-api/pkg/auth"
)

type AuthMiddleware struct {
	jwt auth.JWTService
}

func NewAuthMiddleware(jwt auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// Authenticate verifies the bearer token and sets the patient identity in
// the request context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid authorization format"))
			c.Abort()
			return
		}

		claims, err := m.jwt.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid token"))
			c.Abort()
			return
		}

		c.Set(handler.ContextPatientID, claims.PatientID)
		c.Set("patientEmail", claims.Email)
		c.Next()
	}
}
