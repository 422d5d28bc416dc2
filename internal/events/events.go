package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Moudathirou/meetscribe/shared/rabbitmq"
)

// Job lifecycle event statuses
const (
	StatusSubmitted = "submitted"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Event describes one job lifecycle transition for downstream consumers
// (usage auditing, alerting).
type Event struct {
	UserID     string    `json:"user_id"`
	JobKind    string    `json:"job_kind"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers lifecycle events fire-and-forget. Implementations must
// never fail the job path.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// AMQPPublisher publishes events to RabbitMQ
type AMQPPublisher struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

// NewAMQPPublisher creates a publisher on top of an established RabbitMQ client
func NewAMQPPublisher(client *rabbitmq.Client, logger *slog.Logger) *AMQPPublisher {
	return &AMQPPublisher{
		client: client,
		logger: logger,
	}
}

// Publish marshals the event and hands it to RabbitMQ. Failures are logged
// and swallowed: event delivery must never affect job processing.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal lifecycle event",
			slog.Any("error", err),
		)
		return
	}

	if err := p.client.PublishWithRetry(ctx, body, "application/json"); err != nil {
		p.logger.Error("Failed to publish lifecycle event",
			slog.String("user_id", event.UserID),
			slog.String("job_kind", event.JobKind),
			slog.String("status", event.Status),
			slog.Any("error", err),
		)
	}
}
