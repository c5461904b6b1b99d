package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/example/ec-shop-core/internal/infrastructure/journal"
	"github.com/google/uuid"
)

// MockJournal is a mock implementation of journal.Journal for testing
type MockJournal struct {
	mu     sync.RWMutex
	events map[string][]journal.Event

	// For tracking calls in tests
	AppendCalls []AppendCall
	AppendErr   error
}

// AppendCall records parameters passed to Append
type AppendCall struct {
	AggregateID   string
	AggregateType string
	EventType     string
	Data          any
}

func NewMockJournal() *MockJournal {
	return &MockJournal{
		events:      make(map[string][]journal.Event),
		AppendCalls: make([]AppendCall, 0),
	}
}

// Append records the call and stores the event unless AppendErr is set
func (m *MockJournal) Append(_ context.Context, aggregateID, aggregateType, eventType string, data any) (*journal.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AppendCalls = append(m.AppendCalls, AppendCall{
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          data,
	})

	if m.AppendErr != nil {
		return nil, m.AppendErr
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	event := journal.Event{
		ID:            uuid.NewString(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
		Timestamp:     time.Now(),
		Version:       len(m.events[aggregateID]) + 1,
	}
	m.events[aggregateID] = append(m.events[aggregateID], event)
	return &event, nil
}

// Events returns events for an aggregate
func (m *MockJournal) Events(_ context.Context, aggregateID string) ([]journal.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.events[aggregateID], nil
}

// Calls returns a snapshot of the recorded Append calls
func (m *MockJournal) Calls() []AppendCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AppendCall, len(m.AppendCalls))
	copy(out, m.AppendCalls)
	return out
}

// EventTypes returns the recorded event types in call order
func (m *MockJournal) EventTypes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.AppendCalls))
	for _, c := range m.AppendCalls {
		out = append(out, c.EventType)
	}
	return out
}

// Reset clears all events and recorded calls
func (m *MockJournal) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = make(map[string][]journal.Event)
	m.AppendCalls = make([]AppendCall, 0)
	m.AppendErr = nil
}
