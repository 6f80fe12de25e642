package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/product"
)

const (
	productColumns = `p.id, p.name, p.price, p.discount_price, p.category, p.image_url,
		s.id, s.name, s.city`

	productFrom = ` FROM products p JOIN stores s ON s.id = p.store_id
		WHERE p.approved = TRUE AND s.approved = TRUE`

	listProductsSQL = `SELECT ` + productColumns + productFrom + `
		AND ($1::text = '' OR s.id = $1::text)
		AND ($2::text = '' OR p.category = $2::text)
		ORDER BY p.created_at, p.id`

	getProductByIDSQL = `SELECT ` + productColumns + productFrom + ` AND p.id = $1`

	listStoresSQL = `SELECT id, name, city FROM stores WHERE approved = TRUE ORDER BY name`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
// Only approved products of approved stores are visible.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns catalog products matching filter in creation order.
func (r *ProductRepository) List(ctx context.Context, filter product.Filter) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL, filter.StoreID, filter.Category)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// ListStores returns approved stores ordered by name.
func (r *ProductRepository) ListStores(ctx context.Context) ([]product.Store, error) {
	rows, err := r.pool.Query(ctx, listStoresSQL)
	if err != nil {
		return nil, fmt.Errorf("listing stores: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Store, error) {
		var s product.Store
		err := row.Scan(&s.ID, &s.Name, &s.City)
		return s, err
	})
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		price decimal.Decimal
	)
	err := row.Scan(
		&p.ID, &p.Name, &price, &p.DiscountPrice, &p.Category, &p.ImageURL,
		&p.Store.ID, &p.Store.Name, &p.Store.City,
	)
	p.Price = price
	return p, err
}
