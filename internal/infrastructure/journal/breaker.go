package journal

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerSettings tunes the circuit breaker in front of the broker.
type BreakerSettings struct {
	MaxConsecutiveFailures uint32
	OpenTimeout            time.Duration
}

// DefaultBreakerSettings trips after five consecutive failures and tries again
// after thirty seconds.
var DefaultBreakerSettings = BreakerSettings{
	MaxConsecutiveFailures: 5,
	OpenTimeout:            30 * time.Second,
}

// BreakerPublisher stops calling a failing broker until it recovers, so
// request latency is not tied to broker timeouts.
type BreakerPublisher struct {
	next    Publisher
	cb      *gobreaker.CircuitBreaker[struct{}]
	observe func(error)
}

// NewBreakerPublisher wraps next. observe, when non-nil, sees every result
// including breaker rejections.
func NewBreakerPublisher(next Publisher, s BreakerSettings, logger *zap.Logger, observe func(error)) *BreakerPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.MaxConsecutiveFailures == 0 {
		s.MaxConsecutiveFailures = DefaultBreakerSettings.MaxConsecutiveFailures
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = DefaultBreakerSettings.OpenTimeout
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "journal-publisher",
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &BreakerPublisher{next: next, cb: cb, observe: observe}
}

// Publish forwards the event unless the breaker is open.
func (b *BreakerPublisher) Publish(ctx context.Context, key string, event any) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Publish(ctx, key, event)
	})
	if b.observe != nil {
		b.observe(err)
	}
	return err
}

// State reports the breaker state.
func (b *BreakerPublisher) State() gobreaker.State {
	return b.cb.State()
}
