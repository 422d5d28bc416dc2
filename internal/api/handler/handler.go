package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Moudathirou/meetscribe/internal/mailer"
	"github.com/Moudathirou/meetscribe/internal/orchestrator"
	"github.com/Moudathirou/meetscribe/internal/user"
)

// UserContextKey is where the auth middleware stores the resolved user
const UserContextKey = "current_user"

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Orchestrator *orchestrator.Orchestrator
	Mailer       *mailer.Mailer
}

// Handler handles the transcription, summary and mail HTTP requests
type Handler struct {
	logger       *slog.Logger
	orchestrator *orchestrator.Orchestrator
	mailer       *mailer.Mailer
}

// New creates a new Handler instance
func New(deps *Dependencies) *Handler {
	return &Handler{
		logger:       deps.Logger,
		orchestrator: deps.Orchestrator,
		mailer:       deps.Mailer,
	}
}

// currentUser pulls the authenticated user installed by the auth middleware.
// Routes are registered behind it, so a missing user is a wiring bug.
func (h *Handler) currentUser(c *gin.Context) (*user.User, bool) {
	value, ok := c.Get(UserContextKey)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return nil, false
	}

	u, ok := value.(*user.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return nil, false
	}

	return u, true
}

// submitStatusCode maps a submit outcome to its HTTP status
func submitStatusCode(status orchestrator.SubmitStatus) int {
	switch status {
	case orchestrator.SubmitProcessing:
		return http.StatusAccepted
	case orchestrator.SubmitQuotaExceeded:
		return http.StatusTooManyRequests
	case orchestrator.SubmitConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
