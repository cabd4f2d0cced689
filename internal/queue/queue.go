package queue

import "context"

// EventsExchange is the durable exchange batch lifecycle events are
// published to; reporting consumers bind their own queues.
const EventsExchange = "review.events"

// EventPublisher publishes batch lifecycle events for downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event BatchEvent) error
	Close() error
}
