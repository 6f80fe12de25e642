// Package pricing derives discounts and payable totals from a cart subtotal
// and an optional promotion.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

var hundred = decimal.NewFromInt(100)

// Snapshot is the derived (subtotal, discount, total) triple. It is never
// persisted.
type Snapshot struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Discount returns the amount p takes off subtotal. A flat amount is not
// capped at the subtotal, so the total can become negative.
func Discount(p *promotion.Promotion, subtotal decimal.Decimal) decimal.Decimal {
	switch {
	case p == nil:
		return decimal.Zero
	case p.DiscountPercentage.Valid:
		return subtotal.Mul(p.DiscountPercentage.Decimal).Div(hundred)
	case p.DiscountAmount.Valid:
		return p.DiscountAmount.Decimal
	default:
		return decimal.Zero
	}
}

// Compute builds a Snapshot for subtotal with at most one promotion applied.
func Compute(subtotal decimal.Decimal, p *promotion.Promotion) Snapshot {
	discount := Discount(p, subtotal)
	return Snapshot{
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}
}

// Rounded returns a copy with every amount rounded to 2 decimal places for
// display. Submitted totals use the unrounded snapshot.
func (s Snapshot) Rounded() Snapshot {
	return Snapshot{
		Subtotal: s.Subtotal.Round(2),
		Discount: s.Discount.Round(2),
		Total:    s.Total.Round(2),
	}
}
