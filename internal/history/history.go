package history

import (
	"context"
	"time"

	"github.com/Copycord/console/internal/status"
)

// EventType defines the kind of observed status transition.
type EventType string

const (
	EventStarted EventType = "started"
	EventStopped EventType = "stopped"
)

// Event records one running-state transition observed by the coordinator.
type Event struct {
	Type       EventType   `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Role       status.Role `json:"role"`
	UptimeSec  float64     `json:"uptime_sec"`
	StatusText string      `json:"status"`
	Error      string      `json:"error,omitempty"`
}

// Sink is a destination for transition events (audit/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
