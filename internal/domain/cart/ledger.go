// Package cart keeps the per-session collection of line items selected for
// purchase and the promotion applied to it.
package cart

import (
	"slices"

	"github.com/shopspring/decimal"
)

// AddOutcome tells the caller what Ledger.Add did.
type AddOutcome int

const (
	// ItemAdded means a new line was inserted with quantity 1.
	ItemAdded AddOutcome = iota + 1
	// QuantityIncreased means an existing line was incremented by 1.
	QuantityIncreased
)

func (o AddOutcome) String() string {
	switch o {
	case ItemAdded:
		return "item_added"
	case QuantityIncreased:
		return "quantity_increased"
	default:
		return "unknown"
	}
}

// Item is a single cart line. UnitPrice is captured when the product is
// first added and is not refreshed on repeat adds.
type Item struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	ImageURL  string
	StoreName string
	Quantity  int
	// FromCatalog is false for lines that do not reference a persisted
	// catalog row; their orders carry a null product id.
	FromCatalog bool
}

// Subtotal returns UnitPrice × Quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Ledger holds cart lines in insertion order. Every line has Quantity >= 1.
// The zero value is an empty cart. Ledger is not safe for concurrent use;
// Session guards it.
type Ledger struct {
	items []Item
}

func (l *Ledger) index(productID string) int {
	return slices.IndexFunc(l.items, func(it Item) bool {
		return it.ProductID == productID
	})
}

// Add inserts item with quantity 1, or increments the existing line with
// the same product id. The stored price of an existing line is kept.
func (l *Ledger) Add(item Item) AddOutcome {
	if i := l.index(item.ProductID); i >= 0 {
		l.items[i].Quantity++
		return QuantityIncreased
	}
	item.Quantity = 1
	l.items = append(l.items, item)
	return ItemAdded
}

// Remove deletes the line for productID and reports whether it existed.
func (l *Ledger) Remove(productID string) bool {
	i := l.index(productID)
	if i < 0 {
		return false
	}
	l.items = slices.Delete(l.items, i, i+1)
	return true
}

// SetQuantity overwrites the quantity of productID. A quantity <= 0 removes
// the line. It reports whether the line existed.
func (l *Ledger) SetQuantity(productID string, quantity int) bool {
	if quantity <= 0 {
		return l.Remove(productID)
	}
	i := l.index(productID)
	if i < 0 {
		return false
	}
	l.items[i].Quantity = quantity
	return true
}

// Clear removes all lines.
func (l *Ledger) Clear() {
	l.items = nil
}

// Get returns the line for productID.
func (l *Ledger) Get(productID string) (Item, bool) {
	i := l.index(productID)
	if i < 0 {
		return Item{}, false
	}
	return l.items[i], true
}

// Items returns a copy of the lines.
func (l *Ledger) Items() []Item {
	return slices.Clone(l.items)
}

// Len returns the number of distinct lines.
func (l *Ledger) Len() int {
	return len(l.items)
}

// TotalItems returns the sum of quantities.
func (l *Ledger) TotalItems() int {
	var n int
	for _, it := range l.items {
		n += it.Quantity
	}
	return n
}

// Subtotal returns Σ UnitPrice × Quantity.
func (l *Ledger) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range l.items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}
