// Package order places orders and runs the administrative order operations.
package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const AggregateType = "Order"

// StatusPending is the status of every newly placed order. Status is otherwise
// free-form and set by administrators.
const StatusPending = "pending"

// Type is how the order is fulfilled.
type Type string

const (
	TypeShipping Type = "shipping"
	TypePickup   Type = "pickup"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrInvalidOrderID   = errors.New("invalid order id")
	ErrInvalidOrderType = errors.New("order_type must be 'shipping' or 'pickup'")
	ErrEmptyOrder       = errors.New("order must have at least one item")
	ErrMissingUser      = errors.New("user_id is required")
	ErrNoUpdateFields   = errors.New("no update fields provided")
)

// ParseType lowercases s and accepts only shipping or pickup.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(s)); t {
	case TypeShipping, TypePickup:
		return t, nil
	default:
		return "", ErrInvalidOrderType
	}
}

// Item is a product snapshot taken at purchase time.
type Item struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Order struct {
	ID         string          `json:"_id,omitempty"`
	UserID     string          `json:"user_id"`
	Products   []Item          `json:"products"`
	TotalPrice decimal.Decimal `json:"total_price"`
	OrderType  Type            `json:"order_type"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Patch holds the mutable order fields. Nil fields are left unchanged.
type Patch struct {
	Status    *string
	OrderType *Type
	UpdatedAt time.Time
}

// Repository persists orders. Ids are opaque to the domain; FindByID, Update
// and Delete return ErrInvalidOrderID for ids the store cannot parse.
type Repository interface {
	Insert(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	Update(ctx context.Context, id string, p Patch) (matched bool, err error)
	Delete(ctx context.Context, id string) (deleted bool, err error)
}

// CartRemover deletes a user's cart document. The cart repository satisfies
// it; placement never goes through the cart engine's mutation logic.
type CartRemover interface {
	Delete(ctx context.Context, userID string) (bool, error)
}
