package webhook

import (
	"time"

	"github.com/sparkify/datalake-etl/internal/domain"
)

// Event type constants
const (
	// EventTypeRunCompleted is fired when every table of a run has been written
	EventTypeRunCompleted = "etl.run.completed"

	// EventTypeRunFailed is fired when a run aborts
	EventTypeRunFailed = "etl.run.failed"
)

// Headers set on every delivery
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderEventID   = "X-Webhook-Event-ID"
	HeaderEventType = "X-Webhook-Event-Type"
)

// Event represents a webhook event delivered to subscribers
type Event struct {
	// EventID is the run id (ULID for time-sortable uniqueness)
	EventID string `json:"event_id"`
	// EventType is the type of event (e.g., "etl.run.completed")
	EventType string `json:"event_type"`
	// Timestamp is when the event was generated
	Timestamp time.Time `json:"timestamp"`
	// Data is the run summary
	Data *domain.RunSummary `json:"data"`
}

// EventTypeFor returns the event type matching a run's final status
func EventTypeFor(summary *domain.RunSummary) string {
	if summary.Status == domain.RunStatusFailed {
		return EventTypeRunFailed
	}
	return EventTypeRunCompleted
}
