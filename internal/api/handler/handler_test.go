package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Moudathirou/meetscribe/internal/executor"
	"github.com/Moudathirou/meetscribe/internal/mailer"
	"github.com/Moudathirou/meetscribe/internal/media"
	"github.com/Moudathirou/meetscribe/internal/orchestrator"
	"github.com/Moudathirou/meetscribe/internal/provider"
	"github.com/Moudathirou/meetscribe/internal/quota"
	"github.com/Moudathirou/meetscribe/internal/registry"
	"github.com/Moudathirou/meetscribe/internal/user"
)

type stubTranscriber struct {
	segments []provider.Segment
	err      error
}

func (s *stubTranscriber) Transcribe(context.Context, []byte, string) ([]provider.Segment, error) {
	return s.segments, s.err
}

type stubSummarizer struct {
	summary provider.Summary
	draft   string
	err     error
}

func (s *stubSummarizer) Summarize(context.Context, string) (provider.Summary, error) {
	return s.summary, s.err
}

func (s *stubSummarizer) DraftEmail(context.Context, string, string) (string, error) {
	return s.draft, s.err
}

// testEngine mounts the handler's routes behind a middleware that installs a
// fixed user, standing in for the auth layer.
func testEngine(t *testing.T, quotaLimit int, transcriber provider.Transcriber, summarizer provider.Summarizer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	intake, err := media.NewStore(&media.Config{Dir: t.TempDir()})
	require.NoError(t, err)

	pool := executor.NewPool(&executor.Config{Workers: 1})
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	orch := orchestrator.New(&orchestrator.Config{
		Ledger:      quota.NewLedger(&quota.Config{Limit: quotaLimit}),
		Registry:    registry.New(),
		Pool:        pool,
		Transcriber: transcriber,
		Summarizer:  summarizer,
		Intake:      intake,
		Extractor:   media.NewExtractor("", nil),
	})

	h := New(&Dependencies{
		Logger:       slog.Default(),
		Orchestrator: orch,
		Mailer:       mailer.New(&mailer.Config{Host: "localhost", Port: 465, Sender: "no-reply@meetscribe.dev"}),
	})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(UserContextKey, &user.User{ID: "user-1", Email: "alice@example.com"})
		c.Next()
	})

	r.POST("/transcriptions", h.SubmitTranscription)
	r.GET("/transcriptions/status", h.PollTranscription)
	r.POST("/summaries", h.SubmitSummary)
	r.GET("/summaries/status", h.PollSummary)
	r.POST("/emails", h.SendEmail)

	return r
}

func multipartUpload(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

// pollUntilTerminal polls a status route until it stops answering processing
func pollUntilTerminal(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		if !strings.Contains(w.Body.String(), `"status":"processing"`) {
			return w
		}
		select {
		case <-deadline:
			t.Fatal("job never reached a terminal state")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHandler_SubmitTranscription(t *testing.T) {
	t.Run("accepted upload returns 202 with the remaining budget", func(t *testing.T) {
		r := testEngine(t, 5, &stubTranscriber{segments: []provider.Segment{{End: 1, Text: "hello"}}}, nil)

		body, contentType := multipartUpload(t, "audio_file", "meeting.mp3", []byte("audio"))
		req := httptest.NewRequest(http.MethodPost, "/transcriptions", body)
		req.Header.Set("Content-Type", contentType)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "processing", resp["status"])
		assert.Equal(t, float64(4), resp["remaining_requests"])
	})

	t.Run("missing file returns 400 rejected without spending quota", func(t *testing.T) {
		r := testEngine(t, 5, &stubTranscriber{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/transcriptions", nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "rejected", resp["status"])
		assert.Equal(t, float64(5), resp["remaining_requests"])
	})

	t.Run("exhausted quota returns 429", func(t *testing.T) {
		r := testEngine(t, 1, &stubTranscriber{segments: []provider.Segment{{Text: "ok"}}}, nil)

		body, contentType := multipartUpload(t, "audio_file", "meeting.mp3", []byte("audio"))
		req := httptest.NewRequest(http.MethodPost, "/transcriptions", body)
		req.Header.Set("Content-Type", contentType)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusAccepted, w.Code)

		pollUntilTerminal(t, r, "/transcriptions/status")

		body, contentType = multipartUpload(t, "audio_file", "meeting.mp3", []byte("audio"))
		req = httptest.NewRequest(http.MethodPost, "/transcriptions", body)
		req.Header.Set("Content-Type", contentType)

		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})
}

func TestHandler_PollTranscription(t *testing.T) {
	t.Run("empty slot returns 404", func(t *testing.T) {
		r := testEngine(t, 5, &stubTranscriber{}, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transcriptions/status", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "not_found")
	})

	t.Run("completed job returns the transcript once", func(t *testing.T) {
		r := testEngine(t, 5, &stubTranscriber{segments: []provider.Segment{{End: 2, Text: "hello"}}}, nil)

		body, contentType := multipartUpload(t, "audio_file", "meeting.mp3", []byte("audio"))
		req := httptest.NewRequest(http.MethodPost, "/transcriptions", body)
		req.Header.Set("Content-Type", contentType)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusAccepted, w.Code)

		terminal := pollUntilTerminal(t, r, "/transcriptions/status")
		assert.Equal(t, http.StatusOK, terminal.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(terminal.Body.Bytes(), &resp))
		assert.Equal(t, "completed", resp["status"])
		assert.Equal(t, "[0.00 - 2.00] hello", resp["transcription"])

		// The result was drained by the previous poll.
		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transcriptions/status", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("failed job returns the error detail", func(t *testing.T) {
		r := testEngine(t, 5, &stubTranscriber{err: assert.AnError}, nil)

		body, contentType := multipartUpload(t, "audio_file", "meeting.mp3", []byte("audio"))
		req := httptest.NewRequest(http.MethodPost, "/transcriptions", body)
		req.Header.Set("Content-Type", contentType)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusAccepted, w.Code)

		terminal := pollUntilTerminal(t, r, "/transcriptions/status")
		assert.Equal(t, http.StatusOK, terminal.Code)
		assert.Contains(t, terminal.Body.String(), `"status":"error"`)
	})
}

func TestHandler_SubmitSummary(t *testing.T) {
	t.Run("accepted transcript returns 202 and completes", func(t *testing.T) {
		summarizer := &stubSummarizer{
			summary: provider.Summary{Summary: "The meeting went well.", KeyPoints: "- all good"},
			draft:   "Dear client,",
		}
		r := testEngine(t, 5, nil, summarizer)

		payload := `{"transcription_text": "[0.00 - 5.00] full transcript"}`
		req := httptest.NewRequest(http.MethodPost, "/summaries", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusAccepted, w.Code)

		terminal := pollUntilTerminal(t, r, "/summaries/status")
		assert.Equal(t, http.StatusOK, terminal.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(terminal.Body.Bytes(), &resp))
		assert.Equal(t, "completed", resp["status"])
		assert.Equal(t, "The meeting went well.", resp["summary"])
		assert.Equal(t, "- all good", resp["key_points"])
		assert.Equal(t, "Dear client,", resp["email_draft"])
	})

	t.Run("missing transcript returns 400 rejected", func(t *testing.T) {
		r := testEngine(t, 5, nil, &stubSummarizer{})

		req := httptest.NewRequest(http.MethodPost, "/summaries", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "rejected")
	})

	t.Run("empty summary slot returns 404", func(t *testing.T) {
		r := testEngine(t, 5, nil, &stubSummarizer{})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/summaries/status", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandler_SendEmail(t *testing.T) {
	t.Run("missing fields return 400", func(t *testing.T) {
		r := testEngine(t, 5, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/emails", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "missing email data")
	})

	t.Run("invalid recipient returns 400", func(t *testing.T) {
		r := testEngine(t, 5, nil, nil)

		payload := `{
			"sender_email": "alice@example.com",
			"recipients": ["not-an-address"],
			"subject": "Follow-up",
			"content": "Hello"
		}`
		req := httptest.NewRequest(http.MethodPost, "/emails", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid email address")
	})
}
