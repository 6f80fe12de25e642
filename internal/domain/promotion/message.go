package promotion

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Messages renders user-facing texts for promotion rejections.
type Messages struct {
	unit    currency.Unit
	printer *message.Printer
}

// NewMessages creates Messages that format amounts in the given currency.
func NewMessages(unit currency.Unit) *Messages {
	return &Messages{
		unit:    unit,
		printer: message.NewPrinter(language.English),
	}
}

// For returns the notice shown to the user for err. Errors that are not
// promotion rejections get a generic text.
func (m *Messages) For(err error) string {
	var below *BelowMinimumError
	switch {
	case errors.Is(err, ErrEmptyCode):
		return "Please enter a promo code"
	case errors.Is(err, ErrNotFound):
		return "Invalid promo code"
	case errors.Is(err, ErrExpired):
		return "This promo code has expired"
	case errors.Is(err, ErrExhaustedUses):
		return "This promo code has reached its usage limit"
	case errors.As(err, &below):
		return "Minimum order amount for this code is " + m.Amount(below.Minimum)
	default:
		return "Could not apply promo code"
	}
}

// Amount formats v with the configured currency symbol. v is shown with the
// currency's standard fraction digits, or more when v carries more, so it is
// never rounded.
func (m *Messages) Amount(v decimal.Decimal) string {
	scale, _ := currency.Standard.Rounding(m.unit)
	if str := v.String(); strings.Contains(str, ".") {
		scale = max(scale, len(str)-strings.IndexByte(str, '.')-1)
	}
	return m.printer.Sprint(currency.Symbol(m.unit)) + " " +
		m.printer.Sprint(number.Decimal(v.InexactFloat64(), number.Scale(scale)))
}
