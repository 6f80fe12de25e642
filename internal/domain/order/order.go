package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order not found")

// Status is the lifecycle state of an order. Submission always creates
// pending orders.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentCard           PaymentMethod = "card"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCashOnDelivery, PaymentCard, PaymentBankTransfer:
		return true
	default:
		return false
	}
}

// ShippingInfo holds the delivery fields of the checkout form.
type ShippingInfo struct {
	FullName string
	Phone    string
	Address  string
	City     string
	Notes    string
}

// InvalidFieldError indicates a required checkout field is missing or
// malformed.
type InvalidFieldError struct {
	Field string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid %s", e.Field)
}

// Validate checks that every required shipping field is present.
func (s ShippingInfo) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"full_name", s.FullName},
		{"phone", s.Phone},
		{"address", s.Address},
		{"city", s.City},
	} {
		if strings.TrimSpace(f.value) == "" {
			return &InvalidFieldError{Field: f.name}
		}
	}
	return nil
}

// Order is a placed order. Totals are captured at submission time.
type Order struct {
	ID            string
	SessionID     string
	Items         []Item
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	PromotionCode string
	Shipping      ShippingInfo
	PaymentMethod PaymentMethod
	Status        Status
	CreatedAt     time.Time
}

// Item is an order line. Name and Price are copied from the cart so later
// catalog edits do not change historical orders.
type Item struct {
	// ProductID is nil when the cart line did not come from the catalog.
	ProductID *string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	Subtotal  decimal.Decimal
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists the order header and all of its items. When the order
	// carries a promotion code, one use of it is consumed in the same write:
	// the usage check and increment are evaluated by the store and are
	// conditional on current uses < max uses. If no use is left Create
	// returns promotion.ErrExhaustedUses and stores nothing.
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
}
