package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/Moudathirou/meetscribe/internal/provider"
)

const defaultModel = "gemini-2.0-flash"

const keyPointsMarker = "Key points:"

const summaryPrompt = `You are an assistant specialized in analyzing and summarizing meeting transcriptions.
Provide a concise summary followed by a list of key points.

Response format:
[One-paragraph summary]

Key points:
- Key point 1
- Key point 2
[etc.]

Analyze and summarize the following transcription:

%s`

const emailPrompt = `You are an assistant that drafts professional follow-up emails for client appointments.

Based on the summary and key points below, write a follow-up email for the client.
The email must be polite, clear, and suited to the context. Return only the email body.

Summary:
%s

Key points:
%s`

// Config holds Gemini summarizer configuration
type Config struct {
	APIKey string
	Model  string
	Logger *slog.Logger
}

// Summarizer implements provider.Summarizer on Google's Gemini API.
type Summarizer struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewSummarizer creates a Gemini-backed summarizer
func NewSummarizer(ctx context.Context, cfg *Config) (*Summarizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Summarizer{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

// Summarize produces a one-paragraph summary and a key-point list from the
// transcript.
func (s *Summarizer) Summarize(ctx context.Context, text string) (provider.Summary, error) {
	raw, err := s.generate(ctx, fmt.Sprintf(summaryPrompt, text))
	if err != nil {
		return provider.Summary{}, err
	}

	summary, keyPoints := splitSummary(raw)
	return provider.Summary{Summary: summary, KeyPoints: keyPoints}, nil
}

// DraftEmail writes the follow-up email body from a summary and its key points
func (s *Summarizer) DraftEmail(ctx context.Context, summary, keyPoints string) (string, error) {
	draft, err := s.generate(ctx, fmt.Sprintf(emailPrompt, summary, keyPoints))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(draft), nil
}

func (s *Summarizer) generate(ctx context.Context, prompt string) (string, error) {
	result, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), nil)
	if err != nil {
		return "", provider.NewError("gemini", fmt.Errorf("generate content: %w", err))
	}

	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", provider.NewError("gemini", errors.New("empty response"))
	}

	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
	}

	if text.Len() == 0 {
		return "", provider.NewError("gemini", errors.New("response contained no text"))
	}

	return text.String(), nil
}

// splitSummary separates the summary paragraph from the key-point list the
// prompt asks for. When the marker is missing the whole response is the
// summary.
func splitSummary(raw string) (summary, keyPoints string) {
	raw = strings.TrimSpace(raw)

	idx := strings.Index(raw, keyPointsMarker)
	if idx < 0 {
		return raw, ""
	}

	summary = strings.TrimSpace(raw[:idx])
	keyPoints = strings.TrimSpace(raw[idx+len(keyPointsMarker):])
	return summary, keyPoints
}
