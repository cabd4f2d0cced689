package queue

import (
	"fmt"
	"strings"
	"time"
)

// EventType identifies a batch lifecycle transition.
type EventType string

const (
	EventBatchPublished EventType = "review.published"
	EventBatchCompleted EventType = "review.completed"
	EventBatchTimedOut  EventType = "review.timed_out"
)

func (t EventType) String() string { return string(t) }

func (t EventType) IsValid() bool {
	switch t {
	case EventBatchPublished, EventBatchCompleted, EventBatchTimedOut:
		return true
	}
	return false
}

// BatchEvent is the broker payload describing one batch lifecycle transition.
// Counts are only populated on completion events.
type BatchEvent struct {
	EventID       string    `json:"eventId"`
	Type          EventType `json:"type"`
	BatchID       string    `json:"batchId"`
	ItemCount     int       `json:"itemCount,omitempty"`
	ApprovedCount int       `json:"approvedCount,omitempty"`
	RejectedCount int       `json:"rejectedCount,omitempty"`
	DeletedCount  int       `json:"deletedCount,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func (e BatchEvent) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return fmt.Errorf("eventId is required")
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("invalid event type %q", e.Type)
	}
	if strings.TrimSpace(e.BatchID) == "" {
		return fmt.Errorf("batchId is required")
	}
	return nil
}

// RoutingKey is the exchange routing key for the event, e.g. review.completed.
func (e BatchEvent) RoutingKey() string {
	return e.Type.String()
}
