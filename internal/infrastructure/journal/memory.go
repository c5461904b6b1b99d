package journal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Memory keeps events in process. It backs development runs without
// DATABASE_URL and the service tests.
type Memory struct {
	mu        sync.RWMutex
	events    map[string][]Event // aggregateID -> events
	publisher Publisher
	logger    *zap.Logger
}

// NewMemory creates an in-memory journal. publisher may be nil.
func NewMemory(publisher Publisher, logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{
		events:    make(map[string][]Event),
		publisher: publisher,
		logger:    logger,
	}
}

// Append stores an event and publishes it
func (m *Memory) Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any) (*Event, error) {
	m.mu.Lock()
	event, err := newEvent(uuid.NewString(), aggregateID, aggregateType, eventType, data,
		len(m.events[aggregateID])+1, time.Now())
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.events[aggregateID] = append(m.events[aggregateID], event)
	m.mu.Unlock()

	publish(ctx, m.publisher, m.logger, event)
	return &event, nil
}

// Events returns all events for an aggregate in version order
func (m *Memory) Events(_ context.Context, aggregateID string) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Event, len(m.events[aggregateID]))
	copy(out, m.events[aggregateID])
	return out, nil
}

// All returns every stored event
func (m *Memory) All() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []Event
	for _, events := range m.events {
		all = append(all, events...)
	}
	return all
}

// publish forwards a stored event. The event is already durable, so a broker
// failure is only logged.
func publish(ctx context.Context, p Publisher, logger *zap.Logger, event Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event.AggregateID, event); err != nil {
		logger.Warn("publish event failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.EventType),
			zap.String("aggregate_id", event.AggregateID),
			zap.Error(err),
		)
	}
}
