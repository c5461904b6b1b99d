package order

import (
	"context"
	"errors"
	"time"

	"github.com/example/ec-shop-core/internal/apperr"
	"github.com/example/ec-shop-core/internal/infrastructure/journal"
	"github.com/example/ec-shop-core/internal/pkg/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ClearStatus is the result of the cart clean-up that follows placement.
type ClearStatus int

const (
	CartCleared ClearStatus = iota
	NoCart
	ClearFailed
)

func (s ClearStatus) String() string {
	switch s {
	case CartCleared:
		return "cleared"
	case NoCart:
		return "no_cart"
	default:
		return "failed"
	}
}

// CartOutcome reports what happened to the user's cart after the order was
// stored. It never turns a placed order into a failure.
type CartOutcome struct {
	Status ClearStatus
	Err    error
}

// Message is the human readable result of the placement.
func (c CartOutcome) Message() string {
	switch c.Status {
	case CartCleared:
		return "Order created successfully and cart cleared"
	case NoCart:
		return "Order created successfully (no cart to clear)"
	default:
		return "Order created but failed to clear cart: " + c.Err.Error()
	}
}

// PlaceRequest is a validated-at-the-edge order submission. TotalPrice is
// stored as submitted and is not recomputed from the items.
type PlaceRequest struct {
	UserID     string
	Products   []Item
	TotalPrice decimal.Decimal
	OrderType  string
}

// UpdateRequest carries the administrative order patch.
type UpdateRequest struct {
	Status    *string
	OrderType *string
}

// Placement stores orders and clears the buyer's cart afterwards.
type Placement struct {
	orders  Repository
	carts   CartRemover
	journal journal.Journal
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

type Option func(*Placement)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Placement) { p.now = now }
}

// WithMetrics records placements.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Placement) { p.metrics = m }
}

func NewPlacement(orders Repository, carts CartRemover, j journal.Journal, logger *zap.Logger, opts ...Option) *Placement {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Placement{
		orders:  orders,
		carts:   carts,
		journal: j,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Placement) timestamp() time.Time {
	return p.now().UTC().Truncate(time.Millisecond)
}

// Place validates and stores a new pending order, then deletes the user's
// cart. The two writes are not transactional: once the order is stored the
// call succeeds and the cart outcome only changes the message.
func (p *Placement) Place(ctx context.Context, req PlaceRequest) (*Order, CartOutcome, error) {
	orderType, err := ParseType(req.OrderType)
	if err != nil {
		return nil, CartOutcome{}, apperr.Wrap(apperr.KindBadRequest, "order_type must be 'shipping' or 'pickup'", err)
	}
	if req.UserID == "" {
		return nil, CartOutcome{}, apperr.Wrap(apperr.KindBadRequest, "user_id is required", ErrMissingUser)
	}
	if len(req.Products) == 0 {
		return nil, CartOutcome{}, apperr.Wrap(apperr.KindBadRequest, "Order must have at least one item", ErrEmptyOrder)
	}

	now := p.timestamp()
	o := &Order{
		UserID:     req.UserID,
		Products:   req.Products,
		TotalPrice: req.TotalPrice,
		OrderType:  orderType,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := p.orders.Insert(ctx, o); err != nil {
		return nil, CartOutcome{}, apperr.Internal("Error creating order", err)
	}

	outcome := p.clearCart(ctx, o.UserID)
	p.metrics.OrderPlaced(string(o.OrderType), outcome.Status.String())

	p.record(ctx, o.ID, EventOrderPlaced, OrderPlaced{
		OrderID:   o.ID,
		UserID:    o.UserID,
		Items:     o.Products,
		Total:     o.TotalPrice,
		OrderType: o.OrderType,
		PlacedAt:  now,
	})
	return o, outcome, nil
}

func (p *Placement) clearCart(ctx context.Context, userID string) CartOutcome {
	deleted, err := p.carts.Delete(ctx, userID)
	switch {
	case err != nil:
		p.logger.Warn("cart clear after order failed", zap.String("user_id", userID), zap.Error(err))
		return CartOutcome{Status: ClearFailed, Err: err}
	case !deleted:
		return CartOutcome{Status: NoCart}
	default:
		return CartOutcome{Status: CartCleared}
	}
}

// Get returns an order by id.
func (p *Placement) Get(ctx context.Context, id string) (*Order, error) {
	o, err := p.orders.FindByID(ctx, id)
	if err != nil {
		return nil, p.classify(err, "Error retrieving order")
	}
	return o, nil
}

// List returns every order.
func (p *Placement) List(ctx context.Context) ([]Order, error) {
	orders, err := p.orders.List(ctx)
	if err != nil {
		return nil, apperr.Internal("Error retrieving orders", err)
	}
	return orders, nil
}

// ListByUser returns the orders placed by one user.
func (p *Placement) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	orders, err := p.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("Error retrieving orders", err)
	}
	return orders, nil
}

// Update patches status and/or order type. The order type is validated the
// same way as at placement.
func (p *Placement) Update(ctx context.Context, id string, req UpdateRequest) error {
	if req.Status == nil && req.OrderType == nil {
		return apperr.Wrap(apperr.KindBadRequest, "No update fields provided", ErrNoUpdateFields)
	}

	patch := Patch{Status: req.Status, UpdatedAt: p.timestamp()}
	if req.OrderType != nil {
		t, err := ParseType(*req.OrderType)
		if err != nil {
			return apperr.Wrap(apperr.KindBadRequest, "order_type must be 'shipping' or 'pickup'", err)
		}
		patch.OrderType = &t
	}

	matched, err := p.orders.Update(ctx, id, patch)
	if err != nil {
		return p.classify(err, "Error updating order")
	}
	if !matched {
		return apperr.Wrap(apperr.KindNotFound, "Order not found", ErrOrderNotFound)
	}

	p.record(ctx, id, EventOrderUpdated, OrderUpdated{
		OrderID: id, Status: patch.Status, OrderType: patch.OrderType, UpdatedAt: patch.UpdatedAt,
	})
	return nil
}

// Delete removes an order. Orders are only ever deleted by administrators.
func (p *Placement) Delete(ctx context.Context, id string) error {
	deleted, err := p.orders.Delete(ctx, id)
	if err != nil {
		return p.classify(err, "Error deleting order")
	}
	if !deleted {
		return apperr.Wrap(apperr.KindNotFound, "Order not found", ErrOrderNotFound)
	}

	p.record(ctx, id, EventOrderDeleted, OrderDeleted{OrderID: id, DeletedAt: p.timestamp()})
	return nil
}

func (p *Placement) classify(err error, internalMsg string) error {
	switch {
	case errors.Is(err, ErrInvalidOrderID):
		return apperr.Wrap(apperr.KindBadRequest, "Invalid order ID", err)
	case errors.Is(err, ErrOrderNotFound):
		return apperr.Wrap(apperr.KindNotFound, "Order not found", err)
	default:
		return apperr.Internal(internalMsg, err)
	}
}

func (p *Placement) record(ctx context.Context, orderID, eventType string, data any) {
	if p.journal == nil {
		return
	}
	if _, err := p.journal.Append(ctx, orderID, AggregateType, eventType, data); err != nil {
		p.logger.Warn("journal append failed",
			zap.String("order_id", orderID),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
