package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

const (
	upsertStoreSQL = `INSERT INTO stores (id, name, city) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, city = EXCLUDED.city`

	upsertProductSQL = `INSERT INTO products (id, store_id, name, price, discount_price, category, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			store_id = EXCLUDED.store_id,
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			discount_price = EXCLUDED.discount_price,
			category = EXCLUDED.category,
			image_url = EXCLUDED.image_url`

	// Re-seeding updates a promotion's terms but never its usage counter.
	upsertPromotionSQL = `INSERT INTO promotions
		(code, discount_percentage, discount_amount, start_date, end_date, max_uses, min_order_amount, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO UPDATE SET
			discount_percentage = EXCLUDED.discount_percentage,
			discount_amount = EXCLUDED.discount_amount,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			max_uses = EXCLUDED.max_uses,
			min_order_amount = EXCLUDED.min_order_amount,
			is_active = EXCLUDED.is_active`

	insertPromotionSQL = `INSERT INTO promotions
		(code, discount_percentage, discount_amount, start_date, end_date, max_uses, min_order_amount, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO NOTHING`
)

// CatalogWriter loads stores, products and promotions. It backs the operator
// tools; the API server only reads the catalog.
type CatalogWriter struct {
	pool *pgxpool.Pool
}

// NewCatalogWriter returns a CatalogWriter that uses the given pool.
func NewCatalogWriter(pool *pgxpool.Pool) *CatalogWriter {
	return &CatalogWriter{pool: pool}
}

// UpsertCatalog writes stores and products in one transaction.
func (w *CatalogWriter) UpsertCatalog(ctx context.Context, stores []product.Store, products []product.Product) error {
	_, err := withTx(ctx, w.pool, func(tx pgx.Tx) (struct{}, error) {
		batch := &pgx.Batch{}
		for _, s := range stores {
			batch.Queue(upsertStoreSQL, s.ID, s.Name, s.City)
		}
		for _, p := range products {
			batch.Queue(upsertProductSQL, p.ID, p.Store.ID, p.Name, p.Price, p.DiscountPrice, p.Category, p.ImageURL)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return struct{}{}, fmt.Errorf("upserting catalog: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// UpsertPromotions creates or updates promotions, keeping current usage.
func (w *CatalogWriter) UpsertPromotions(ctx context.Context, promos []promotion.Promotion) error {
	_, err := withTx(ctx, w.pool, func(tx pgx.Tx) (struct{}, error) {
		batch := &pgx.Batch{}
		for _, p := range promos {
			queuePromotion(batch, upsertPromotionSQL, p)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return struct{}{}, fmt.Errorf("upserting promotions: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// InsertPromotions creates promotions whose code is not taken yet and
// returns how many rows were inserted. Existing codes are left untouched.
func (w *CatalogWriter) InsertPromotions(ctx context.Context, promos []promotion.Promotion) (int64, error) {
	return withTx(ctx, w.pool, func(tx pgx.Tx) (int64, error) {
		batch := &pgx.Batch{}
		for _, p := range promos {
			queuePromotion(batch, insertPromotionSQL, p)
		}

		results := tx.SendBatch(ctx, batch)
		var inserted int64
		for range promos {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return 0, fmt.Errorf("inserting promotions: %w", err)
			}
			inserted += tag.RowsAffected()
		}
		if err := results.Close(); err != nil {
			return 0, fmt.Errorf("inserting promotions: %w", err)
		}
		return inserted, nil
	})
}

func queuePromotion(batch *pgx.Batch, sql string, p promotion.Promotion) {
	batch.Queue(sql,
		promotion.NormalizeCode(p.Code), p.DiscountPercentage, p.DiscountAmount,
		p.StartDate, p.EndDate, p.MaxUses, p.MinOrderAmount, p.IsActive,
	)
}
