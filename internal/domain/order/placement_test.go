package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/ec-shop-core/internal/apperr"
	"github.com/example/ec-shop-core/internal/domain/cart"
	"github.com/example/ec-shop-core/internal/infrastructure/journal/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrders struct {
	mu        sync.Mutex
	orders    map[string]Order
	seq       int
	insertErr error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: make(map[string]Order)}
}

func (f *fakeOrders) Insert(_ context.Context, o *Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.seq++
	o.ID = fmt.Sprintf("%024d", f.seq)
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeOrders) FindByID(_ context.Context, id string) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(id) != 24 {
		return nil, ErrInvalidOrderID
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

func (f *fakeOrders) List(_ context.Context) ([]Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Order, 0, len(f.orders))
	for _, o := range f.orders {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeOrders) ListByUser(_ context.Context, userID string) ([]Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrders) Update(_ context.Context, id string, p Patch) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(id) != 24 {
		return false, ErrInvalidOrderID
	}
	o, ok := f.orders[id]
	if !ok {
		return false, nil
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.OrderType != nil {
		o.OrderType = *p.OrderType
	}
	o.UpdatedAt = p.UpdatedAt
	f.orders[id] = o
	return true, nil
}

func (f *fakeOrders) Delete(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(id) != 24 {
		return false, ErrInvalidOrderID
	}
	_, ok := f.orders[id]
	delete(f.orders, id)
	return ok, nil
}

func (f *fakeOrders) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

// fakeCarts is a cart.Repository so placement and the cart engine can share it.
type fakeCarts struct {
	mu        sync.Mutex
	carts     map[string]*cart.Cart
	deleteErr error
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{carts: make(map[string]*cart.Cart)}
}

func (f *fakeCarts) Get(_ context.Context, userID string) (*cart.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[userID]
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	return c.Clone(), nil
}

func (f *fakeCarts) Upsert(_ context.Context, c *cart.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[c.UserID] = c.Clone()
	return nil
}

func (f *fakeCarts) Delete(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	_, ok := f.carts[userID]
	delete(f.carts, userID)
	return ok, nil
}

var fixedNow = time.Date(2026, 6, 2, 8, 30, 0, 0, time.UTC)

func newTestPlacement() (*Placement, *fakeOrders, *fakeCarts, *mocks.MockJournal) {
	orders := newFakeOrders()
	carts := newFakeCarts()
	j := mocks.NewMockJournal()
	p := NewPlacement(orders, carts, j, nil, WithClock(func() time.Time { return fixedNow }))
	return p, orders, carts, j
}

func sampleRequest(orderType string) PlaceRequest {
	return PlaceRequest{
		UserID: "user-1",
		Products: []Item{
			{ProductID: "P1", Quantity: 2, Price: decimal.RequireFromString("10.0")},
		},
		TotalPrice: decimal.RequireFromString("20.0"),
		OrderType:  orderType,
	}
}

func seedCart(carts *fakeCarts, userID string) {
	items := []cart.Item{{ProductID: "P1", Quantity: 2, Price: decimal.RequireFromString("10.0")}}
	carts.carts[userID] = &cart.Cart{UserID: userID, Items: items, TotalPrice: cart.Total(items)}
}

// ============================================
// ParseType Tests
// ============================================

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"shipping", TypeShipping, false},
		{"Shipping", TypeShipping, false},
		{"PICKUP", TypePickup, false},
		{"overnight", "", true},
		{"", "", true},
		{" shipping", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOrderType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ============================================
// Place Tests
// ============================================

func TestPlacement_Place_ClearsCart(t *testing.T) {
	p, orders, carts, j := newTestPlacement()
	seedCart(carts, "user-1")

	o, outcome, err := p.Place(context.Background(), sampleRequest("shipping"))

	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, TypeShipping, o.OrderType)
	assert.Equal(t, fixedNow, o.CreatedAt)
	assert.Equal(t, fixedNow, o.UpdatedAt)
	assert.Equal(t, CartCleared, outcome.Status)
	assert.Equal(t, "Order created successfully and cart cleared", outcome.Message())
	assert.Equal(t, 1, orders.count())

	_, err = carts.Get(context.Background(), "user-1")
	assert.ErrorIs(t, err, cart.ErrCartNotFound)

	require.Len(t, j.AppendCalls, 1)
	assert.Equal(t, EventOrderPlaced, j.AppendCalls[0].EventType)
	assert.Equal(t, o.ID, j.AppendCalls[0].AggregateID)
}

func TestPlacement_Place_ThenCartEngineShowsEmptyCart(t *testing.T) {
	p, _, carts, _ := newTestPlacement()
	seedCart(carts, "user-1")
	engine := cart.NewEngine(carts, nil, nil, nil)

	_, _, err := p.Place(context.Background(), sampleRequest("pickup"))
	require.NoError(t, err)

	c, found, err := engine.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, c.Items)
	assert.True(t, c.TotalPrice.IsZero())
}

func TestPlacement_Place_NormalizesOrderType(t *testing.T) {
	p, orders, _, _ := newTestPlacement()

	o, _, err := p.Place(context.Background(), sampleRequest("Shipping"))

	require.NoError(t, err)
	stored, err := orders.FindByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, TypeShipping, stored.OrderType)
}

func TestPlacement_Place_NoCart(t *testing.T) {
	p, _, _, _ := newTestPlacement()

	o, outcome, err := p.Place(context.Background(), sampleRequest("pickup"))

	require.NoError(t, err)
	assert.NotNil(t, o)
	assert.Equal(t, NoCart, outcome.Status)
	assert.Equal(t, "Order created successfully (no cart to clear)", outcome.Message())
}

func TestPlacement_Place_CartClearFailureIsSwallowed(t *testing.T) {
	p, orders, carts, _ := newTestPlacement()
	seedCart(carts, "user-1")
	carts.deleteErr = errors.New("socket closed")

	o, outcome, err := p.Place(context.Background(), sampleRequest("shipping"))

	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, ClearFailed, outcome.Status)
	assert.Equal(t, "Order created but failed to clear cart: socket closed", outcome.Message())
	assert.Equal(t, 1, orders.count())
}

func TestPlacement_Place_KeepsClientTotal(t *testing.T) {
	p, _, _, _ := newTestPlacement()
	req := sampleRequest("shipping")
	req.TotalPrice = decimal.RequireFromString("1.23")

	o, _, err := p.Place(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1.23").Equal(o.TotalPrice))
}

func TestPlacement_Place_RejectsBeforePersisting(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PlaceRequest)
		wantMsg string
	}{
		{"overnight", func(r *PlaceRequest) { r.OrderType = "overnight" }, "order_type must be 'shipping' or 'pickup'"},
		{"empty type", func(r *PlaceRequest) { r.OrderType = "" }, "order_type must be 'shipping' or 'pickup'"},
		{"no items", func(r *PlaceRequest) { r.Products = nil }, "Order must have at least one item"},
		{"no user", func(r *PlaceRequest) { r.UserID = "" }, "user_id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, orders, carts, j := newTestPlacement()
			seedCart(carts, "user-1")
			req := sampleRequest("shipping")
			tt.mutate(&req)

			o, _, err := p.Place(context.Background(), req)

			assert.Nil(t, o)
			assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Equal(t, 0, orders.count())
			assert.Contains(t, carts.carts, "user-1")
			assert.Empty(t, j.AppendCalls)
		})
	}
}

func TestPlacement_Place_InsertFailure(t *testing.T) {
	p, orders, carts, _ := newTestPlacement()
	seedCart(carts, "user-1")
	orders.insertErr = errors.New("duplicate key")

	o, _, err := p.Place(context.Background(), sampleRequest("shipping"))

	assert.Nil(t, o)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, "Error creating order: duplicate key", err.Error())
	assert.Contains(t, carts.carts, "user-1", "cart must survive a failed placement")
}

// ============================================
// Administration Tests
// ============================================

func TestPlacement_Get(t *testing.T) {
	p, _, _, _ := newTestPlacement()
	ctx := context.Background()
	placed, _, err := p.Place(ctx, sampleRequest("shipping"))
	require.NoError(t, err)

	got, err := p.Get(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, placed.ID, got.ID)

	_, err = p.Get(ctx, "bad")
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	assert.Equal(t, "Invalid order ID", err.Error())

	_, err = p.Get(ctx, fmt.Sprintf("%024d", 999))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestPlacement_ListByUser(t *testing.T) {
	p, _, _, _ := newTestPlacement()
	ctx := context.Background()
	_, _, err := p.Place(ctx, sampleRequest("shipping"))
	require.NoError(t, err)
	other := sampleRequest("pickup")
	other.UserID = "user-2"
	_, _, err = p.Place(ctx, other)
	require.NoError(t, err)

	mine, err := p.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := p.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPlacement_Update(t *testing.T) {
	p, orders, _, j := newTestPlacement()
	ctx := context.Background()
	placed, _, err := p.Place(ctx, sampleRequest("shipping"))
	require.NoError(t, err)

	status := "shipped"
	orderType := "PICKUP"
	require.NoError(t, p.Update(ctx, placed.ID, UpdateRequest{Status: &status, OrderType: &orderType}))

	stored, _ := orders.FindByID(ctx, placed.ID)
	assert.Equal(t, "shipped", stored.Status)
	assert.Equal(t, TypePickup, stored.OrderType)
	assert.Equal(t, []string{EventOrderPlaced, EventOrderUpdated}, j.EventTypes())
}

func TestPlacement_Update_Errors(t *testing.T) {
	p, _, _, _ := newTestPlacement()
	ctx := context.Background()
	placed, _, err := p.Place(ctx, sampleRequest("shipping"))
	require.NoError(t, err)
	bad := "drone"
	status := "paid"

	err = p.Update(ctx, placed.ID, UpdateRequest{})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	assert.Equal(t, "No update fields provided", err.Error())

	err = p.Update(ctx, placed.ID, UpdateRequest{OrderType: &bad})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	err = p.Update(ctx, fmt.Sprintf("%024d", 404), UpdateRequest{Status: &status})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	err = p.Update(ctx, "nope", UpdateRequest{Status: &status})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestPlacement_Delete(t *testing.T) {
	p, orders, _, _ := newTestPlacement()
	ctx := context.Background()
	placed, _, err := p.Place(ctx, sampleRequest("shipping"))
	require.NoError(t, err)

	require.NoError(t, p.Delete(ctx, placed.ID))
	assert.Equal(t, 0, orders.count())

	err = p.Delete(ctx, placed.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "Order not found", err.Error())
}
