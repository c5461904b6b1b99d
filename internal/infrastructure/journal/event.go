// Package journal records domain events emitted by the cart, order and
// identity services and forwards them to the message broker.
package journal

import (
	"context"
	"encoding/json"
	"time"
)

// Event is one journaled domain event.
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
}

// Journal appends domain events. Append is called after the state change it
// describes has been committed, so callers treat its failure as non-fatal.
type Journal interface {
	Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any) (*Event, error)
	Events(ctx context.Context, aggregateID string) ([]Event, error)
}

// Publisher hands an event to the broker keyed by aggregate id.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

func newEvent(id, aggregateID, aggregateType, eventType string, data any, version int, now time.Time) (Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:            id,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
		Timestamp:     now,
		Version:       version,
	}, nil
}
