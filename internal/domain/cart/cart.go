// Package cart implements the per-user cart read-modify-write protocol.
package cart

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const AggregateType = "Cart"

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidProduct  = errors.New("product_id is required")
)

// Item is one cart line. Price is the unit price captured when the line was
// created and is never re-resolved from the catalog.
type Item struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Cart is the single cart document of a user.
type Cart struct {
	ID         string          `json:"_id,omitempty"`
	UserID     string          `json:"user_id"`
	Items      []Item          `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Repository persists carts keyed by user id.
//
// Get returns ErrCartNotFound when the user has no cart. Upsert inserts the
// cart when absent and otherwise replaces items, total and updated-at,
// leaving created-at untouched. Delete reports whether a cart existed.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Upsert(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, userID string) (bool, error)
}

// AggregateID returns the journal aggregate id of a user's cart
func AggregateID(userID string) string {
	return "cart-" + userID
}

// Empty returns the synthesized cart shown to users that have none. It is
// never persisted.
func Empty(userID string, now time.Time) *Cart {
	return &Cart{
		UserID:     userID,
		Items:      []Item{},
		TotalPrice: decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Total returns the sum of price * quantity over all lines.
func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// recompute refreshes the derived total and touches updated-at.
func (c *Cart) recompute(now time.Time) {
	c.TotalPrice = Total(c.Items)
	c.UpdatedAt = now
}

func (c *Cart) indexOf(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers never share item slices.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = make([]Item, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}
