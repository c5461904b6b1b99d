package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventItemAdded       = "ItemAddedToCart"
	EventQuantityChanged = "CartItemQuantityChanged"
	EventItemRemoved     = "ItemRemovedFromCart"
	EventCartCleared     = "CartCleared"
)

type ItemAddedToCart struct {
	UserID     string          `json:"user_id"`
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	AddedAt    time.Time       `json:"added_at"`
}

type CartItemQuantityChanged struct {
	UserID     string          `json:"user_id"`
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	ChangedAt  time.Time       `json:"changed_at"`
}

type ItemRemovedFromCart struct {
	UserID     string          `json:"user_id"`
	ProductID  string          `json:"product_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	RemovedAt  time.Time       `json:"removed_at"`
}

type CartCleared struct {
	UserID    string    `json:"user_id"`
	ClearedAt time.Time `json:"cleared_at"`
}
