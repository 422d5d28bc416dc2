package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Moudathirou/meetscribe/internal/api/dto"
	"github.com/Moudathirou/meetscribe/internal/orchestrator"
)

// SubmitSummary handles POST /api/v1/summaries
// Queues the summarize-then-draft job for the supplied transcript.
func (h *Handler) SubmitSummary(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req dto.SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid summarize request body",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, dto.SubmitResponse{
			Status: string(orchestrator.SubmitRejected),
			Error:  "no transcription text provided",
		})
		return
	}

	outcome := h.orchestrator.SubmitSummary(c.Request.Context(), u.ID, req.TranscriptionText)

	c.JSON(submitStatusCode(outcome.Status), dto.SubmitResponse{
		Status:            string(outcome.Status),
		RemainingRequests: outcome.Remaining,
		Error:             outcome.Reason,
	})
}

// PollSummary handles GET /api/v1/summaries/status
func (h *Handler) PollSummary(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}

	poll := h.orchestrator.PollSummary(c.Request.Context(), u.ID)

	switch poll.Status {
	case orchestrator.PollNotFound:
		c.JSON(http.StatusNotFound, dto.SummaryStatusResponse{
			Status: string(poll.Status),
		})
	default:
		c.JSON(http.StatusOK, dto.SummaryStatusResponse{
			Status:     string(poll.Status),
			Summary:    poll.Summary,
			KeyPoints:  poll.KeyPoints,
			EmailDraft: poll.EmailDraft,
			Error:      poll.Err,
		})
	}
}
