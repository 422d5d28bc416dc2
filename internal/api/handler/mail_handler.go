package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Moudathirou/meetscribe/internal/api/dto"
	"github.com/Moudathirou/meetscribe/internal/mailer"
)

// SendEmail handles POST /api/v1/emails
// Delivers a composed follow-up email to the listed recipients.
func (h *Handler) SendEmail(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req dto.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "missing email data",
		})
		return
	}

	err := h.mailer.Send(c.Request.Context(), mailer.Message{
		ReplyTo:    req.SenderEmail,
		Recipients: req.Recipients,
		Subject:    req.Subject,
		Body:       req.Content,
	})
	if err != nil {
		if errors.Is(err, mailer.ErrInvalidAddress) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}

		h.logger.Error("Failed to send email",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to send email",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "email sent successfully",
	})
}
