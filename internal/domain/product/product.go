package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Store is a vendor storefront that owns products.
type Store struct {
	ID   string
	Name string
	City string
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	DiscountPrice decimal.NullDecimal
	Category      string
	ImageURL      string
	Store         Store
}

// EffectivePrice returns the discounted price when one exists, else the
// list price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice.Valid {
		return p.DiscountPrice.Decimal
	}
	return p.Price
}

// Filter narrows catalog listings. Zero values match everything.
type Filter struct {
	StoreID  string
	Category string
}

// Match reports whether p satisfies the filter.
func (f Filter) Match(p Product) bool {
	if f.StoreID != "" && p.Store.ID != f.StoreID {
		return false
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	return true
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context, filter Filter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	ListStores(ctx context.Context) ([]Store, error)
}
