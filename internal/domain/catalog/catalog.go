// Package catalog is the read-only product lookup the cart engine prices
// items against.
package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrInvalidProductID = errors.New("invalid product id")
)

var hundred = decimal.NewFromInt(100)

// Product is the catalog view the core needs: current price and an optional
// percentage discount.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Discount *decimal.Decimal
}

// EffectivePrice returns price * (1 - discount/100) when a discount is set,
// else the list price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.Discount == nil {
		return p.Price
	}
	return p.Price.Mul(hundred.Sub(*p.Discount)).Div(hundred)
}

// Store resolves products by id. FindProduct returns ErrInvalidProductID for
// a malformed id and ErrProductNotFound when nothing matches.
type Store interface {
	FindProduct(ctx context.Context, id string) (*Product, error)
}
