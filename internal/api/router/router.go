package router

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Moudathirou/meetscribe/internal/api/handler"
)

// HealthChecker reports whether a backing dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config holds router wiring
type Config struct {
	Logger    *slog.Logger
	StaticKey string
	Users     UserDirectory
	Handler   *handler.Handler
	Database  HealthChecker
}

// Setup configures and returns the Gin router with all routes
func Setup(cfg *Config) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(cfg.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if cfg.Database != nil {
			if err := cfg.Database.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "degraded",
					"service": "meetscribe-api",
					"error":   err.Error(),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "meetscribe-api",
		})
	})

	// API v1 routes, all behind static-key auth
	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg.StaticKey, cfg.Users, cfg.Logger))
	{
		transcriptions := v1.Group("/transcriptions")
		{
			// POST /api/v1/transcriptions - Submit an upload for transcription
			transcriptions.POST("", cfg.Handler.SubmitTranscription)

			// GET /api/v1/transcriptions/status - Poll the transcription slot
			transcriptions.GET("/status", cfg.Handler.PollTranscription)
		}

		summaries := v1.Group("/summaries")
		{
			// POST /api/v1/summaries - Submit a transcript for summarization
			summaries.POST("", cfg.Handler.SubmitSummary)

			// GET /api/v1/summaries/status - Poll the summary slot
			summaries.GET("/status", cfg.Handler.PollSummary)
		}

		// POST /api/v1/emails - Deliver a composed follow-up email
		v1.POST("/emails", cfg.Handler.SendEmail)
	}

	return r
}
