package journal

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu    sync.Mutex
	err   error
	calls int
	keys  []string
}

func (f *fakePublisher) Publish(_ context.Context, key string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.keys = append(f.keys, key)
	return f.err
}

// ============================================
// Memory Tests
// ============================================

func TestMemory_AppendVersionsPerAggregate(t *testing.T) {
	pub := &fakePublisher{}
	j := NewMemory(pub, nil)
	ctx := context.Background()

	first, err := j.Append(ctx, "cart-u1", "Cart", "ItemAddedToCart", map[string]int{"quantity": 2})
	require.NoError(t, err)
	second, err := j.Append(ctx, "cart-u1", "Cart", "CartCleared", nil)
	require.NoError(t, err)
	other, err := j.Append(ctx, "cart-u2", "Cart", "ItemAddedToCart", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, 1, other.Version)
	assert.NotEqual(t, first.ID, second.ID)
	assert.JSONEq(t, `{"quantity":2}`, string(first.Data))

	events, err := j.Events(ctx, "cart-u1")
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Len(t, j.All(), 3)
	assert.Equal(t, []string{"cart-u1", "cart-u1", "cart-u2"}, pub.keys)
}

func TestMemory_PublishFailureKeepsEvent(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	j := NewMemory(pub, nil)

	event, err := j.Append(context.Background(), "order-1", "Order", "OrderPlaced", nil)

	require.NoError(t, err)
	require.NotNil(t, event)
	events, _ := j.Events(context.Background(), "order-1")
	assert.Len(t, events, 1)
}

func TestMemory_UnmarshalableData(t *testing.T) {
	j := NewMemory(nil, nil)

	_, err := j.Append(context.Background(), "x", "Cart", "Bad", func() {})

	assert.Error(t, err)
	assert.Empty(t, j.All())
}

func TestEvent_JSONShape(t *testing.T) {
	e := Event{ID: "id-1", AggregateID: "a", EventType: "OrderPlaced", Data: json.RawMessage(`{"k":1}`), Version: 3}
	b, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"data":{"k":1}`)
	assert.Contains(t, string(b), `"event_type":"OrderPlaced"`)
}

// ============================================
// Breaker Tests
// ============================================

func TestBreakerPublisher_OpensAfterConsecutiveFailures(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	var observed []error
	b := NewBreakerPublisher(pub, BreakerSettings{MaxConsecutiveFailures: 3, OpenTimeout: time.Minute}, nil,
		func(err error) { observed = append(observed, err) })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Error(t, b.Publish(ctx, "k", "v"))
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	err := b.Publish(ctx, "k", "v")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, pub.calls)
	assert.Len(t, observed, 4)
}

func TestBreakerPublisher_PassesThrough(t *testing.T) {
	pub := &fakePublisher{}
	b := NewBreakerPublisher(pub, BreakerSettings{}, nil, nil)

	require.NoError(t, b.Publish(context.Background(), "order-1", "v"))

	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, []string{"order-1"}, pub.keys)
}

// ============================================
// Postgres Tests (integration)
// ============================================

func TestPostgres_AppendAndEvents(t *testing.T) {
	dsn := os.Getenv("JOURNAL_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("JOURNAL_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	db, err := ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(db))

	j := NewPostgres(db, nil, nil)
	aggregateID := "cart-it-" + time.Now().Format("150405.000000000")

	first, err := j.Append(ctx, aggregateID, "Cart", "ItemAddedToCart", map[string]string{"product_id": "p1"})
	require.NoError(t, err)
	second, err := j.Append(ctx, aggregateID, "Cart", "CartCleared", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)

	events, err := j.Events(ctx, aggregateID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ItemAddedToCart", events[0].EventType)
	assert.JSONEq(t, `{"product_id":"p1"}`, string(events[0].Data))
}
