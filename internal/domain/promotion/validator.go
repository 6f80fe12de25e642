package promotion

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator checks a candidate code against the stored promotion and the
// current cart subtotal. It is stateless and re-queries the repository on
// every call.
type Validator struct {
	repo Repository
	now  func() time.Time
}

// NewValidator creates a Validator backed by the given Repository.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo, now: time.Now}
}

// Validate runs the eligibility checks in order and returns the first
// failure: empty code, unknown or inactive code, date window, usage cap,
// minimum order amount. On success the full promotion record is returned.
func (v *Validator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Promotion, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrEmptyCode
	}

	p, err := v.repo.FindActiveByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup promotion")
	}

	now := v.now()
	if now.Before(p.StartDate) || now.After(p.EndDate) {
		return nil, ErrExpired
	}

	if p.CurrentUses >= p.MaxUses {
		return nil, ErrExhaustedUses
	}

	if p.MinOrderAmount.Valid && subtotal.LessThan(p.MinOrderAmount.Decimal) {
		return nil, &BelowMinimumError{Minimum: p.MinOrderAmount.Decimal}
	}

	return p, nil
}
