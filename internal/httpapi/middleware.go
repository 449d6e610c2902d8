package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/S-Corkum/external-adapter/pkg/observability"
)

// requestLogger logs every request through the adapter's own Logger,
// adapted from the teacher's log.Printf-based RequestLogger to route
// through pkg/observability instead.
func requestLogger(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("http request", map[string]interface{}{
			"client_ip":   c.ClientIP(),
			"status_code": c.Writer.Status(),
			"latency_ms":  time.Since(start).Milliseconds(),
			"method":      c.Request.Method,
			"path":        path,
		})

		if len(c.Errors) > 0 {
			logger.Warn("http request errors", map[string]interface{}{"errors": c.Errors.String()})
		}
	}
}

// jwtAuth validates a Bearer token against secret using HS256, rejecting
// with 401 on any parse, signature, or expiry failure.
func jwtAuth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		raw := strings.TrimPrefix(header, prefix)

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errUnexpectedSigningMethod
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Next()
	}
}

var errUnexpectedSigningMethod = jwt.NewValidationError("unexpected signing method", jwt.ValidationErrorSignatureInvalid)
