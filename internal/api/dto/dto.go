package dto

// SubmitResponse is returned by both submit endpoints
type SubmitResponse struct {
	Status            string `json:"status"`
	RemainingRequests int    `json:"remaining_requests"`
	Error             string `json:"error,omitempty"`
}

// TranscriptionStatusResponse is returned by the transcription poll endpoint
type TranscriptionStatusResponse struct {
	Status        string `json:"status"`
	Transcription string `json:"transcription,omitempty"`
	Error         string `json:"error,omitempty"`
}

// SummarizeRequest carries the transcript to summarize
type SummarizeRequest struct {
	TranscriptionText string `json:"transcription_text" binding:"required"`
}

// SummaryStatusResponse is returned by the summary poll endpoint
type SummaryStatusResponse struct {
	Status     string `json:"status"`
	Summary    string `json:"summary,omitempty"`
	KeyPoints  string `json:"key_points,omitempty"`
	EmailDraft string `json:"email_draft,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SendEmailRequest carries a composed follow-up email for delivery
type SendEmailRequest struct {
	SenderEmail string   `json:"sender_email" binding:"required"`
	Recipients  []string `json:"recipients" binding:"required"`
	Subject     string   `json:"subject" binding:"required"`
	Content     string   `json:"content" binding:"required"`
}
