// Package promotion holds code-based discount rules and their eligibility
// checks.
package promotion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyCode is returned when the submitted code is blank.
	ErrEmptyCode = errors.New("promotion code is empty")
	// ErrNotFound is returned when no active promotion matches the code.
	// Inactive promotions are reported the same way.
	ErrNotFound = errors.New("promotion not found")
	// ErrExpired is returned when the current time is outside the
	// promotion's [StartDate, EndDate] window.
	ErrExpired = errors.New("promotion expired")
	// ErrExhaustedUses is returned when the promotion reached MaxUses.
	ErrExhaustedUses = errors.New("promotion usage limit reached")
	// ErrBelowMinimum matches any *BelowMinimumError via errors.Is.
	ErrBelowMinimum = errors.New("order below promotion minimum")
)

// BelowMinimumError is returned when the cart subtotal is lower than the
// promotion's minimum order amount.
type BelowMinimumError struct {
	Minimum decimal.Decimal
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("order subtotal below promotion minimum %s", e.Minimum.StringFixed(2))
}

// Is makes errors.Is(err, ErrBelowMinimum) hold.
func (e *BelowMinimumError) Is(target error) bool {
	return target == ErrBelowMinimum
}

// Promotion is a code-based discount. Exactly one of DiscountPercentage and
// DiscountAmount is set.
type Promotion struct {
	Code               string
	DiscountPercentage decimal.NullDecimal
	DiscountAmount     decimal.NullDecimal
	StartDate          time.Time
	EndDate            time.Time
	MaxUses            int
	CurrentUses        int
	// MinOrderAmount is unset when the promotion has no minimum.
	MinOrderAmount decimal.NullDecimal
	IsActive       bool
}

// Repository is the persistence boundary for promotions.
type Repository interface {
	// FindActiveByCode returns the active promotion stored under code, which
	// must already be normalized. Returns ErrNotFound otherwise.
	FindActiveByCode(ctx context.Context, code string) (*Promotion, error)
}

// NormalizeCode trims and uppercases a user-supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Reason returns a stable machine-readable name for a validation error, or
// an empty string when err is not a promotion rejection.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCode):
		return "empty_code"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrExhaustedUses):
		return "exhausted_uses"
	case errors.Is(err, ErrBelowMinimum):
		return "below_minimum"
	default:
		return ""
	}
}
