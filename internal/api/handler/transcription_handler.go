package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Moudathirou/meetscribe/internal/api/dto"
	"github.com/Moudathirou/meetscribe/internal/orchestrator"
)

// SubmitTranscription handles POST /api/v1/transcriptions
// Accepts a multipart upload and queues the transcription job.
func (h *Handler) SubmitTranscription(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}

	var (
		fileName string
		data     []byte
	)

	// A missing file still goes through the orchestrator so the
	// charge-then-refund path stays in one place.
	fileHeader, err := c.FormFile("audio_file")
	if err == nil {
		fileName = fileHeader.Filename

		file, openErr := fileHeader.Open()
		if openErr != nil {
			h.logger.Error("Failed to open uploaded file",
				slog.String("user_id", u.ID),
				slog.String("error", openErr.Error()),
			)
			c.JSON(http.StatusBadRequest, dto.SubmitResponse{
				Status: string(orchestrator.SubmitRejected),
				Error:  "could not read uploaded file",
			})
			return
		}
		defer file.Close()

		data, err = io.ReadAll(file)
		if err != nil {
			h.logger.Error("Failed to read uploaded file",
				slog.String("user_id", u.ID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusBadRequest, dto.SubmitResponse{
				Status: string(orchestrator.SubmitRejected),
				Error:  "could not read uploaded file",
			})
			return
		}
	}

	outcome := h.orchestrator.SubmitTranscription(c.Request.Context(), u.ID, fileName, data)

	c.JSON(submitStatusCode(outcome.Status), dto.SubmitResponse{
		Status:            string(outcome.Status),
		RemainingRequests: outcome.Remaining,
		Error:             outcome.Reason,
	})
}

// PollTranscription handles GET /api/v1/transcriptions/status
// Reports the state of the caller's transcription slot; a terminal result
// is consumed by the poll that observes it.
func (h *Handler) PollTranscription(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}

	poll := h.orchestrator.PollTranscription(c.Request.Context(), u.ID)

	switch poll.Status {
	case orchestrator.PollNotFound:
		c.JSON(http.StatusNotFound, dto.TranscriptionStatusResponse{
			Status: string(poll.Status),
		})
	default:
		c.JSON(http.StatusOK, dto.TranscriptionStatusResponse{
			Status:        string(poll.Status),
			Transcription: poll.Transcript,
			Error:         poll.Err,
		})
	}
}
