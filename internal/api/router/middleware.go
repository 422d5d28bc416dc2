package router

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Moudathirou/meetscribe/internal/api/handler"
	"github.com/Moudathirou/meetscribe/internal/user"
)

// UserDirectory resolves the authenticated caller, provisioning unknown
// emails on first contact.
type UserDirectory interface {
	GetOrCreateByEmail(ctx context.Context, email string) (*user.User, error)
}

// AuthMiddleware checks the static service key and resolves the caller's
// user record into the request context. Key and email travel in headers,
// with query fallbacks for simple clients.
func AuthMiddleware(staticKey string, users UserDirectory, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if key == "" {
			key = c.Query("key")
		}

		email := c.GetHeader("X-User-Email")
		if email == "" {
			email = c.Query("email")
		}

		if key == "" || email == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "email and key required",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(staticKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid key",
			})
			return
		}

		u, err := users.GetOrCreateByEmail(c.Request.Context(), email)
		if err != nil {
			logger.Error("Failed to resolve user",
				slog.String("email", email),
				slog.String("error", err.Error()),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "failed to resolve user",
			})
			return
		}

		c.Set(handler.UserContextKey, u)
		c.Next()
	}
}

// LoggerMiddleware logs HTTP requests with slog
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info("HTTP Request",
			slog.Int("status", c.Writer.Status()),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.String("ip", c.ClientIP()),
			slog.Duration("latency", latency),
			slog.Int("body_size", c.Writer.Size()),
		)

		if len(c.Errors) > 0 {
			for _, e := range c.Errors {
				logger.Error("Request error",
					slog.String("error", e.Error()),
					slog.Uint64("type", uint64(e.Type)),
				)
			}
		}
	}
}

// CORSMiddleware handles Cross-Origin Resource Sharing
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-API-Key, X-User-Email")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
