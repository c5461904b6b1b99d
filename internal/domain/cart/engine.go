package cart

import (
	"context"
	"errors"
	"time"

	"github.com/example/ec-shop-core/internal/apperr"
	"github.com/example/ec-shop-core/internal/domain/catalog"
	"github.com/example/ec-shop-core/internal/infrastructure/journal"
	"github.com/example/ec-shop-core/internal/pkg/metrics"
	"go.uber.org/zap"
)

// Engine runs cart mutations as load, modify, write cycles against a single
// cart document. Concurrent mutations of the same cart are not serialized:
// the last write wins.
type Engine struct {
	repo    Repository
	catalog catalog.Store
	journal journal.Journal
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics records operation outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a cart engine. j may be nil to disable journaling.
func NewEngine(repo Repository, store catalog.Store, j journal.Journal, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		repo:    repo,
		catalog: store,
		journal: j,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) timestamp() time.Time {
	return e.now().UTC().Truncate(time.Millisecond)
}

// Get returns the user's cart, or a synthesized empty cart when none exists.
// found is false for the synthesized cart.
func (e *Engine) Get(ctx context.Context, userID string) (c *Cart, found bool, err error) {
	c, err = e.repo.Get(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return Empty(userID, e.timestamp()), false, nil
	}
	if err != nil {
		return nil, false, apperr.Internal("Error retrieving cart", err)
	}
	return c, true, nil
}

// AddItem prices the product from the catalog and adds quantity units of it.
// An existing line only has its quantity increased; its captured price stands.
// created reports whether the cart document was created by this call.
func (e *Engine) AddItem(ctx context.Context, userID, productID string, quantity int) (c *Cart, created bool, err error) {
	defer func() { e.metrics.CartOp("add_item", err) }()

	if productID == "" {
		return nil, false, apperr.Wrap(apperr.KindBadRequest, "product_id is required", ErrInvalidProduct)
	}
	if quantity <= 0 {
		return nil, false, apperr.Wrap(apperr.KindBadRequest, "Quantity must be greater than zero", ErrInvalidQuantity)
	}

	product, err := e.catalog.FindProduct(ctx, productID)
	switch {
	case errors.Is(err, catalog.ErrInvalidProductID):
		return nil, false, apperr.Wrap(apperr.KindBadRequest, "Invalid product ID", err)
	case errors.Is(err, catalog.ErrProductNotFound):
		return nil, false, apperr.Wrap(apperr.KindNotFound, "Product not found", err)
	case err != nil:
		return nil, false, apperr.Internal("Error fetching product", err)
	}
	price := product.EffectivePrice()

	now := e.timestamp()
	c, err = e.repo.Get(ctx, userID)
	switch {
	case errors.Is(err, ErrCartNotFound):
		c = &Cart{UserID: userID, Items: []Item{}, CreatedAt: now}
		created = true
	case err != nil:
		return nil, false, apperr.Internal("Error accessing cart", err)
	}

	if i := c.indexOf(productID); i >= 0 {
		c.Items[i].Quantity += quantity
	} else {
		c.Items = append(c.Items, Item{ProductID: productID, Quantity: quantity, Price: price})
	}
	c.recompute(now)

	if err := e.repo.Upsert(ctx, c); err != nil {
		if created {
			return nil, false, apperr.Internal("Error creating cart", err)
		}
		return nil, false, apperr.Internal("Error updating cart", err)
	}

	e.record(ctx, userID, EventItemAdded, ItemAddedToCart{
		UserID:     userID,
		ProductID:  productID,
		Quantity:   quantity,
		Price:      price,
		TotalPrice: c.TotalPrice,
		AddedAt:    now,
	})
	return c, created, nil
}

// UpdateItemQuantity sets the quantity of an existing line. A quantity of
// zero or less removes the line but keeps the cart, even when it becomes empty.
func (e *Engine) UpdateItemQuantity(ctx context.Context, userID, productID string, quantity int) (c *Cart, err error) {
	defer func() { e.metrics.CartOp("update_item", err) }()

	c, err = e.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	i := c.indexOf(productID)
	if i < 0 {
		return nil, apperr.Wrap(apperr.KindNotFound, "Cart item not found", ErrItemNotFound)
	}

	removed := quantity <= 0
	if removed {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	} else {
		c.Items[i].Quantity = quantity
	}
	now := e.timestamp()
	c.recompute(now)

	if err := e.repo.Upsert(ctx, c); err != nil {
		return nil, apperr.Internal("Error updating cart", err)
	}

	if removed {
		e.record(ctx, userID, EventItemRemoved, ItemRemovedFromCart{
			UserID: userID, ProductID: productID, TotalPrice: c.TotalPrice, RemovedAt: now,
		})
	} else {
		e.record(ctx, userID, EventQuantityChanged, CartItemQuantityChanged{
			UserID: userID, ProductID: productID, Quantity: quantity, TotalPrice: c.TotalPrice, ChangedAt: now,
		})
	}
	return c, nil
}

// RemoveItem deletes the line for productID. The cart is kept even when it
// becomes empty.
func (e *Engine) RemoveItem(ctx context.Context, userID, productID string) (c *Cart, err error) {
	defer func() { e.metrics.CartOp("remove_item", err) }()

	c, err = e.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	i := c.indexOf(productID)
	if i < 0 {
		return nil, apperr.Wrap(apperr.KindNotFound, "Item not found in cart", ErrItemNotFound)
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	now := e.timestamp()
	c.recompute(now)

	if err := e.repo.Upsert(ctx, c); err != nil {
		return nil, apperr.Internal("Error updating cart", err)
	}

	e.record(ctx, userID, EventItemRemoved, ItemRemovedFromCart{
		UserID: userID, ProductID: productID, TotalPrice: c.TotalPrice, RemovedAt: now,
	})
	return c, nil
}

// Clear deletes the cart document. It fails with NotFound when the user had
// no cart; the end state is the same either way.
func (e *Engine) Clear(ctx context.Context, userID string) (err error) {
	defer func() { e.metrics.CartOp("clear", err) }()

	deleted, err := e.repo.Delete(ctx, userID)
	if err != nil {
		return apperr.Internal("Error clearing cart", err)
	}
	if !deleted {
		return apperr.Wrap(apperr.KindNotFound, "Cart not found", ErrCartNotFound)
	}

	e.record(ctx, userID, EventCartCleared, CartCleared{UserID: userID, ClearedAt: e.timestamp()})
	return nil
}

func (e *Engine) load(ctx context.Context, userID string) (*Cart, error) {
	c, err := e.repo.Get(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return nil, apperr.Wrap(apperr.KindNotFound, "Cart not found", err)
	}
	if err != nil {
		return nil, apperr.Internal("Error accessing cart", err)
	}
	return c, nil
}

// record journals an event for a committed mutation. Failures are logged only.
func (e *Engine) record(ctx context.Context, userID, eventType string, data any) {
	if e.journal == nil {
		return
	}
	if _, err := e.journal.Append(ctx, AggregateID(userID), AggregateType, eventType, data); err != nil {
		e.logger.Warn("journal append failed",
			zap.String("user_id", userID),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
