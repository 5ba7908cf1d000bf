package history

import (
	"context"
	"time"
)

// EventType classifies a lifecycle event.
type EventType string

const (
	EventStart EventType = "start"
	EventStop  EventType = "stop"
	EventCrash EventType = "crash"
)

// Event is one lifecycle occurrence for an analysis.
type Event struct {
	Type       EventType `json:"type"`
	AnalysisID string    `json:"analysis_id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
	ExitCode   int       `json:"exit_code"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink receives lifecycle events. Implementations must be safe for
// concurrent use; delivery is best-effort and never blocks supervision.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
