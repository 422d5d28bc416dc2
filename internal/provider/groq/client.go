package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Moudathirou/meetscribe/internal/provider"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	defaultModel   = "whisper-large-v3"
	defaultTimeout = 5 * time.Minute
)

// Config holds Groq client configuration
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client transcribes audio through Groq's whisper endpoint. Groq exposes an
// OpenAI-compatible REST API, so the call is a single multipart POST.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Groq transcription client
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("groq API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

type transcriptionResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe uploads the audio and returns the ordered transcript segments
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) ([]provider.Segment, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, provider.NewError("groq", fmt.Errorf("failed to build request body: %w", err))
	}
	if _, err := part.Write(audio); err != nil {
		return nil, provider.NewError("groq", fmt.Errorf("failed to build request body: %w", err))
	}

	fields := map[string]string{
		"model":           c.model,
		"response_format": "verbose_json",
		"temperature":     "0",
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, provider.NewError("groq", fmt.Errorf("failed to build request body: %w", err))
		}
	}

	if err := writer.Close(); err != nil {
		return nil, provider.NewError("groq", fmt.Errorf("failed to build request body: %w", err))
	}

	url := c.baseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, provider.NewError("groq", fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.Debug("Sending transcription request",
		slog.String("model", c.model),
		slog.String("file", filename),
		slog.Int("audio_bytes", len(audio)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.NewError("groq", fmt.Errorf("transcription request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.NewError("groq", fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, provider.NewError("groq", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(respBody)))
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, provider.NewError("groq", fmt.Errorf("failed to decode response: %w", err))
	}

	segments := make([]provider.Segment, 0, len(parsed.Segments))
	for _, seg := range parsed.Segments {
		segments = append(segments, provider.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}

	// Some short clips come back without segment timestamps
	if len(segments) == 0 && parsed.Text != "" {
		segments = append(segments, provider.Segment{Text: parsed.Text})
	}

	return segments, nil
}
