package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

const (
	createOrderSQL = `INSERT INTO orders (id, session_id, total_amount, subtotal, discount,
		promotion_code, full_name, phone, address, city, notes, payment_method, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12, $13, $14)`

	createOrderItemSQL = `INSERT INTO order_items (order_id, product_id, product_name, price, quantity, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)`

	getOrderSQL = `SELECT id, session_id, total_amount, subtotal, discount, COALESCE(promotion_code, ''),
		full_name, phone, address, city, notes, payment_method, status, created_at
		FROM orders WHERE id = $1`

	getOrderItemsSQL = `SELECT product_id, product_name, price, quantity, subtotal
		FROM order_items WHERE order_id = $1 ORDER BY id`

	consumePromotionUseSQL = `UPDATE promotions SET current_uses = current_uses + 1
		WHERE code = $1 AND current_uses < max_uses`

	insertRedemptionSQL = `INSERT INTO promotion_redemptions (order_id, code) VALUES ($1, $2)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order header and its items in one transaction. An
// order with a promotion code first takes one use of it with a conditional
// UPDATE, so concurrent checkouts cannot exceed max_uses; when no use is left
// the transaction is rolled back and promotion.ErrExhaustedUses is returned.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := withTx(ctx, r.pool, func(tx pgx.Tx) (struct{}, error) {
		if o.PromotionCode != "" {
			if err := consumePromotionUse(ctx, tx, o.PromotionCode); err != nil {
				return struct{}{}, err
			}
		}

		_, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.SessionID, o.Total, o.Subtotal, o.Discount, o.PromotionCode,
			o.Shipping.FullName, o.Shipping.Phone, o.Shipping.Address, o.Shipping.City, o.Shipping.Notes,
			string(o.PaymentMethod), string(o.Status), o.CreatedAt,
		)
		if err != nil {
			return struct{}{}, fmt.Errorf("inserting order: %w", err)
		}
		if o.PromotionCode != "" {
			if _, err := tx.Exec(ctx, insertRedemptionSQL, o.ID, o.PromotionCode); err != nil {
				return struct{}{}, fmt.Errorf("recording redemption: %w", err)
			}
		}

		batch := &pgx.Batch{}
		for _, it := range o.Items {
			batch.Queue(createOrderItemSQL,
				o.ID, it.ProductID, it.Name, it.Price, it.Quantity, it.Subtotal,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for range o.Items {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return struct{}{}, fmt.Errorf("inserting order item: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return struct{}{}, fmt.Errorf("closing item batch: %w", err)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

func consumePromotionUse(ctx context.Context, tx pgx.Tx, code string) error {
	tag, err := tx.Exec(ctx, consumePromotionUseSQL, code)
	if err != nil {
		return fmt.Errorf("consuming use of promotion %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrExhaustedUses
	}
	return nil
}

// Get returns the order with its items in insertion order.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	rows, err = r.pool.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting items of order %q: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("getting items of order %q: %w", id, err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o       order.Order
		payment string
		status  string
	)
	err := row.Scan(
		&o.ID, &o.SessionID, &o.Total, &o.Subtotal, &o.Discount, &o.PromotionCode,
		&o.Shipping.FullName, &o.Shipping.Phone, &o.Shipping.Address, &o.Shipping.City, &o.Shipping.Notes,
		&payment, &status, &o.CreatedAt,
	)
	o.PaymentMethod = order.PaymentMethod(payment)
	o.Status = order.Status(status)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		it  order.Item
		qty int32
	)
	err := row.Scan(&it.ProductID, &it.Name, &it.Price, &qty, &it.Subtotal)
	it.Quantity = int(qty)
	return it, err
}
