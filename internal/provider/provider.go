package provider

import (
	"context"
	"fmt"
)

// Segment is one portion of transcribed audio, ordered by start time.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Summary is the result of analyzing a transcript.
type Summary struct {
	Summary   string
	KeyPoints string
}

// Transcriber converts raw audio into ordered transcript segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) ([]Segment, error)
}

// Summarizer produces a summary with key points from a transcript and
// drafts a follow-up email from them.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (Summary, error)
	DraftEmail(ctx context.Context, summary, keyPoints string) (string, error)
}

// Error wraps an upstream provider failure so callers can tell which
// collaborator failed without depending on its client package.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s provider: %s", e.Provider, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a provider error
func NewError(name string, err error) error {
	return &Error{Provider: name, Err: err}
}
