package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Moudathirou/meetscribe/internal/events"
	"github.com/Moudathirou/meetscribe/internal/executor"
	"github.com/Moudathirou/meetscribe/internal/media"
	"github.com/Moudathirou/meetscribe/internal/provider"
	"github.com/Moudathirou/meetscribe/internal/quota"
	"github.com/Moudathirou/meetscribe/internal/registry"
)

// SubmitStatus is the outcome of a submit call
type SubmitStatus string

const (
	SubmitProcessing    SubmitStatus = "processing"
	SubmitQuotaExceeded SubmitStatus = "quota_exceeded"
	SubmitConflict      SubmitStatus = "conflict"
	SubmitRejected      SubmitStatus = "rejected"
)

// PollStatus is the outcome of a poll call
type PollStatus string

const (
	PollProcessing PollStatus = "processing"
	PollCompleted  PollStatus = "completed"
	PollError      PollStatus = "error"
	PollNotFound   PollStatus = "not_found"
)

// SubmitOutcome is returned by SubmitTranscription and SubmitSummary
type SubmitOutcome struct {
	Status    SubmitStatus
	Remaining int
	Reason    string
}

// TranscriptionResult is the payload of a completed transcription job
type TranscriptionResult struct {
	Transcript string
}

// SummaryResult is the payload of a completed summary job
type SummaryResult struct {
	Summary    string
	KeyPoints  string
	EmailDraft string
}

// TranscriptionPoll is returned by PollTranscription
type TranscriptionPoll struct {
	Status     PollStatus
	Transcript string
	Err        string
}

// SummaryPoll is returned by PollSummary
type SummaryPoll struct {
	Status     PollStatus
	Summary    string
	KeyPoints  string
	EmailDraft string
	Err        string
}

// Config holds orchestrator dependencies
type Config struct {
	Ledger      *quota.Ledger
	Registry    *registry.Registry
	Pool        *executor.Pool
	Transcriber provider.Transcriber
	Summarizer  provider.Summarizer
	Intake      *media.Store
	Extractor   *media.Extractor
	Events      events.Publisher
	Logger      *slog.Logger
}

// Orchestrator ties the quota ledger, job registry and executor pool into
// the submit/poll state machine. Per (user, kind): Idle -> Admitted ->
// Running -> Completed|Failed -> Idle again after the result is drained.
type Orchestrator struct {
	ledger      *quota.Ledger
	registry    *registry.Registry
	pool        *executor.Pool
	transcriber provider.Transcriber
	summarizer  provider.Summarizer
	intake      *media.Store
	extractor   *media.Extractor
	events      events.Publisher
	logger      *slog.Logger
}

// New creates a new orchestrator
func New(cfg *Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		ledger:      cfg.Ledger,
		registry:    cfg.Registry,
		pool:        cfg.Pool,
		transcriber: cfg.Transcriber,
		summarizer:  cfg.Summarizer,
		intake:      cfg.Intake,
		extractor:   cfg.Extractor,
		events:      cfg.Events,
		logger:      logger,
	}
}

// SubmitTranscription charges the quota, validates and stores the upload,
// and queues the transcription job. It returns immediately; completion is
// observed through PollTranscription.
func (o *Orchestrator) SubmitTranscription(ctx context.Context, userID, fileName string, data []byte) SubmitOutcome {
	if !o.ledger.CheckAndReserve(ctx, userID) {
		return SubmitOutcome{
			Status:    SubmitQuotaExceeded,
			Remaining: o.ledger.Remaining(ctx, userID),
			Reason:    "daily request limit reached",
		}
	}

	if len(data) == 0 {
		return o.reject(ctx, userID, "no file provided")
	}

	inputPath, err := o.intake.Save(userID, fileName, data)
	if err != nil {
		return o.reject(ctx, userID, err.Error())
	}

	// Claim the slot before the pool sees the body, so a duplicate submit
	// is refused here and never queues a job.
	key := registry.Key{UserID: userID, Kind: registry.KindTranscription}
	if err := o.registry.Reserve(key); err != nil {
		o.intake.Cleanup(inputPath)
		o.ledger.Release(ctx, userID)
		return SubmitOutcome{
			Status:    SubmitConflict,
			Remaining: o.ledger.Remaining(ctx, userID),
			Reason:    "a transcription is already in progress",
		}
	}

	body := o.transcriptionBody(userID, inputPath, fileName)

	handle, err := o.pool.Submit("transcription:"+userID, o.withLifecycleEvents(userID, registry.KindTranscription, body))
	if err != nil {
		o.registry.Drop(key)
		o.intake.Cleanup(inputPath)
		return o.reject(ctx, userID, "service is shutting down")
	}

	o.registry.Bind(key, handle)

	o.publish(userID, registry.KindTranscription, events.StatusSubmitted, "")

	o.logger.Info("Transcription job admitted",
		slog.String("user_id", userID),
		slog.String("file", fileName),
	)

	return SubmitOutcome{
		Status:    SubmitProcessing,
		Remaining: o.ledger.Remaining(ctx, userID),
	}
}

// PollTranscription reports the state of the user's transcription slot.
// The first poll that observes a terminal state drains it; a failed job does
// not refund the quota charge.
func (o *Orchestrator) PollTranscription(ctx context.Context, userID string) TranscriptionPoll {
	res := o.registry.Peek(registry.Key{UserID: userID, Kind: registry.KindTranscription})

	switch res.State {
	case registry.StatePending:
		return TranscriptionPoll{Status: PollProcessing}
	case registry.StateCompleted:
		result, ok := res.Payload.(TranscriptionResult)
		if !ok {
			return TranscriptionPoll{Status: PollError, Err: "unexpected job payload"}
		}
		return TranscriptionPoll{Status: PollCompleted, Transcript: result.Transcript}
	case registry.StateFailed:
		return TranscriptionPoll{Status: PollError, Err: res.Err.Error()}
	default:
		return TranscriptionPoll{Status: PollNotFound}
	}
}

// SubmitSummary charges the quota and queues the summarize-then-draft job
// for the given transcript. Same admission shape as SubmitTranscription,
// on the user's independent summary slot.
func (o *Orchestrator) SubmitSummary(ctx context.Context, userID, transcript string) SubmitOutcome {
	if !o.ledger.CheckAndReserve(ctx, userID) {
		return SubmitOutcome{
			Status:    SubmitQuotaExceeded,
			Remaining: o.ledger.Remaining(ctx, userID),
			Reason:    "daily request limit reached",
		}
	}

	if strings.TrimSpace(transcript) == "" {
		return o.reject(ctx, userID, "no transcript text provided")
	}

	key := registry.Key{UserID: userID, Kind: registry.KindSummary}
	if err := o.registry.Reserve(key); err != nil {
		o.ledger.Release(ctx, userID)
		return SubmitOutcome{
			Status:    SubmitConflict,
			Remaining: o.ledger.Remaining(ctx, userID),
			Reason:    "a summary is already in progress",
		}
	}

	body := o.summaryBody(transcript)

	handle, err := o.pool.Submit("summary:"+userID, o.withLifecycleEvents(userID, registry.KindSummary, body))
	if err != nil {
		o.registry.Drop(key)
		return o.reject(ctx, userID, "service is shutting down")
	}

	o.registry.Bind(key, handle)

	o.publish(userID, registry.KindSummary, events.StatusSubmitted, "")

	o.logger.Info("Summary job admitted",
		slog.String("user_id", userID),
		slog.Int("transcript_length", len(transcript)),
	)

	return SubmitOutcome{
		Status:    SubmitProcessing,
		Remaining: o.ledger.Remaining(ctx, userID),
	}
}

// PollSummary reports the state of the user's summary slot, draining a
// terminal result exactly once.
func (o *Orchestrator) PollSummary(ctx context.Context, userID string) SummaryPoll {
	res := o.registry.Peek(registry.Key{UserID: userID, Kind: registry.KindSummary})

	switch res.State {
	case registry.StatePending:
		return SummaryPoll{Status: PollProcessing}
	case registry.StateCompleted:
		result, ok := res.Payload.(SummaryResult)
		if !ok {
			return SummaryPoll{Status: PollError, Err: "unexpected job payload"}
		}
		return SummaryPoll{
			Status:     PollCompleted,
			Summary:    result.Summary,
			KeyPoints:  result.KeyPoints,
			EmailDraft: result.EmailDraft,
		}
	case registry.StateFailed:
		return SummaryPoll{Status: PollError, Err: res.Err.Error()}
	default:
		return SummaryPoll{Status: PollNotFound}
	}
}

// transcriptionBody builds the job body: extract the audio track when the
// upload is a video container, transcribe it, and format the segments.
// Scratch files are removed whatever the outcome.
func (o *Orchestrator) transcriptionBody(userID, inputPath, fileName string) executor.Body {
	return func(ctx context.Context) (any, error) {
		audioPath := inputPath
		defer func() {
			o.intake.Cleanup(inputPath)
			if audioPath != inputPath {
				o.intake.Cleanup(audioPath)
			}
		}()

		if media.IsVideo(fileName) {
			extracted, err := o.extractor.ExtractAudio(ctx, inputPath)
			if err != nil {
				return nil, fmt.Errorf("audio extraction: %w", err)
			}
			audioPath = extracted
		}

		audio, err := os.ReadFile(audioPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read audio file: %w", err)
		}

		segments, err := o.transcriber.Transcribe(ctx, audio, filepath.Base(audioPath))
		if err != nil {
			return nil, err
		}

		return TranscriptionResult{Transcript: FormatSegments(segments)}, nil
	}
}

// summaryBody builds the job body: summarize, then draft the follow-up
// email. Either failure fails the whole job; no partial summary surfaces.
func (o *Orchestrator) summaryBody(transcript string) executor.Body {
	return func(ctx context.Context) (any, error) {
		summary, err := o.summarizer.Summarize(ctx, transcript)
		if err != nil {
			return nil, err
		}

		draft, err := o.summarizer.DraftEmail(ctx, summary.Summary, summary.KeyPoints)
		if err != nil {
			return nil, err
		}

		return SummaryResult{
			Summary:    summary.Summary,
			KeyPoints:  summary.KeyPoints,
			EmailDraft: draft,
		}, nil
	}
}

// withLifecycleEvents wraps a body so its terminal transition is published
// to the event stream.
func (o *Orchestrator) withLifecycleEvents(userID string, kind registry.Kind, body executor.Body) executor.Body {
	if o.events == nil {
		return body
	}

	return func(ctx context.Context) (any, error) {
		payload, err := body(ctx)
		if err != nil {
			o.publish(userID, kind, events.StatusFailed, err.Error())
		} else {
			o.publish(userID, kind, events.StatusCompleted, "")
		}
		return payload, err
	}
}

// reject refunds the reservation taken for this submit and reports Rejected.
func (o *Orchestrator) reject(ctx context.Context, userID, reason string) SubmitOutcome {
	o.ledger.Release(ctx, userID)

	o.logger.Warn("Submit rejected",
		slog.String("user_id", userID),
		slog.String("reason", reason),
	)

	return SubmitOutcome{
		Status:    SubmitRejected,
		Remaining: o.ledger.Remaining(ctx, userID),
		Reason:    reason,
	}
}

func (o *Orchestrator) publish(userID string, kind registry.Kind, status, errDetail string) {
	if o.events == nil {
		return
	}

	o.events.Publish(context.Background(), events.Event{
		UserID:     userID,
		JobKind:    string(kind),
		Status:     status,
		Error:      errDetail,
		OccurredAt: time.Now().UTC(),
	})
}

// FormatSegments renders ordered transcript segments as one line per
// segment: "[start - end] text" with second timestamps.
func FormatSegments(segments []provider.Segment) string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		lines = append(lines, fmt.Sprintf("[%.2f - %.2f] %s", seg.Start, seg.End, strings.TrimSpace(seg.Text)))
	}
	return strings.Join(lines, "\n")
}
