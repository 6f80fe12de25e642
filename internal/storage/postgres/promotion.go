package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

const (
	findActivePromotionSQL = `SELECT code, discount_percentage, discount_amount, start_date, end_date,
		max_uses, current_uses, min_order_amount, is_active
		FROM promotions WHERE code = $1 AND is_active = TRUE`

)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// FindActiveByCode looks up an active promotion by its normalized code.
// Returns promotion.ErrNotFound when no matching active promotion exists.
func (r *PromotionRepository) FindActiveByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, findActivePromotionSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding promotion %q: %w", code, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrNotFound
		}
		return nil, fmt.Errorf("finding promotion %q: %w", code, err)
	}
	return &p, nil
}

func scanPromotion(row pgx.CollectableRow) (promotion.Promotion, error) {
	var (
		p           promotion.Promotion
		maxUses     int32
		currentUses int32
	)
	err := row.Scan(
		&p.Code, &p.DiscountPercentage, &p.DiscountAmount, &p.StartDate, &p.EndDate,
		&maxUses, &currentUses, &p.MinOrderAmount, &p.IsActive,
	)
	p.MaxUses = int(maxUses)
	p.CurrentUses = int(currentUses)
	return p, err
}
