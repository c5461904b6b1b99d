package order

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced  = "OrderPlaced"
	EventOrderUpdated = "OrderUpdated"
	EventOrderDeleted = "OrderDeleted"
)

type OrderPlaced struct {
	OrderID   string          `json:"order_id"`
	UserID    string          `json:"user_id"`
	Items     []Item          `json:"items"`
	Total     decimal.Decimal `json:"total"`
	OrderType Type            `json:"order_type"`
	PlacedAt  time.Time       `json:"placed_at"`
}

type OrderUpdated struct {
	OrderID   string    `json:"order_id"`
	Status    *string   `json:"status,omitempty"`
	OrderType *Type     `json:"order_type,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrderDeleted struct {
	OrderID   string    `json:"order_id"`
	DeletedAt time.Time `json:"deleted_at"`
}
