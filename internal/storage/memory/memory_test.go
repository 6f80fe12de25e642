package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	s1 := product.Store{ID: "s1", Name: "Corner Shop"}
	s2 := product.Store{ID: "s2", Name: "Mall"}
	c := NewCatalog([]product.Store{s1, s2}, []product.Product{
		{ID: "p1", Name: "Lamp", Price: decimal.NewFromInt(50), Category: "home", Store: s1},
		{ID: "p2", Name: "Vase", Price: decimal.NewFromInt(30), Category: "decor", Store: s1},
		{ID: "p3", Name: "Rug", Price: decimal.NewFromInt(90), Category: "home", Store: s2},
	})

	all, err := c.List(ctx, product.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	home, err := c.List(ctx, product.Filter{Category: "home", StoreID: "s2"})
	require.NoError(t, err)
	require.Len(t, home, 1)
	assert.Equal(t, "p3", home[0].ID)

	p, err := c.GetByID(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "Vase", p.Name)

	_, err = c.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, product.ErrNotFound)

	stores, err := c.ListStores(ctx)
	require.NoError(t, err)
	assert.Len(t, stores, 2)
}

func TestPromotions_FindActiveByCode(t *testing.T) {
	ctx := context.Background()
	p := NewPromotions(
		promotion.Promotion{Code: "ON", MaxUses: 1, IsActive: true},
		promotion.Promotion{Code: "OFF", MaxUses: 1},
	)

	got, err := p.FindActiveByCode(ctx, "ON")
	require.NoError(t, err)
	assert.Equal(t, "ON", got.Code)

	_, err = p.FindActiveByCode(ctx, "OFF")
	assert.ErrorIs(t, err, promotion.ErrNotFound)
	_, err = p.FindActiveByCode(ctx, "on")
	assert.ErrorIs(t, err, promotion.ErrNotFound)
}

func TestPromotions_Redeem(t *testing.T) {
	ctx := context.Background()
	p := NewPromotions(promotion.Promotion{Code: "TWO", MaxUses: 2, IsActive: true})

	require.NoError(t, p.Redeem(ctx, "TWO", "o1"))
	require.NoError(t, p.Redeem(ctx, "TWO", "o1"))
	require.NoError(t, p.Redeem(ctx, "TWO", "o2"))
	require.ErrorIs(t, p.Redeem(ctx, "TWO", "o3"), promotion.ErrExhaustedUses)
	require.ErrorIs(t, p.Redeem(ctx, "MISSING", "o4"), promotion.ErrNotFound)

	got, err := p.FindActiveByCode(ctx, "TWO")
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentUses)
}

func TestPromotions_ConcurrentRedeem(t *testing.T) {
	ctx := context.Background()
	p := NewPromotions(promotion.Promotion{Code: "RACE", MaxUses: 5, IsActive: true})

	var (
		wg sync.WaitGroup
		ok atomic.Int32
	)
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.Redeem(ctx, "RACE", fmt.Sprintf("o%d", i)) == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 5, ok.Load())
	got, err := p.FindActiveByCode(ctx, "RACE")
	require.NoError(t, err)
	assert.Equal(t, 5, got.CurrentUses)
}

func TestOrders(t *testing.T) {
	ctx := context.Background()
	r := NewOrders(NewPromotions())

	o := &order.Order{
		ID:    gofakeit.UUID(),
		Items: []order.Item{{Name: "Lamp", Quantity: 1}},
		Total: decimal.NewFromInt(50),
	}
	require.NoError(t, r.Create(ctx, o))

	o.Items[0].Quantity = 7

	got, err := r.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Items[0].Quantity)

	_, err = r.Get(ctx, "missing")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrders_CreateConsumesPromotion(t *testing.T) {
	ctx := context.Background()
	promos := NewPromotions(promotion.Promotion{Code: "ONCE", MaxUses: 1, IsActive: true})
	r := NewOrders(promos)

	require.NoError(t, r.Create(ctx, &order.Order{ID: "o1", PromotionCode: "ONCE"}))

	err := r.Create(ctx, &order.Order{ID: "o2", PromotionCode: "ONCE"})
	require.ErrorIs(t, err, promotion.ErrExhaustedUses)
	_, err = r.Get(ctx, "o2")
	assert.ErrorIs(t, err, order.ErrNotFound)

	require.NoError(t, r.Create(ctx, &order.Order{ID: "o3"}), "orders without a code are not limited")

	got, err := promos.FindActiveByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentUses)
}

func TestOrders_ConcurrentCreateWithPromotion(t *testing.T) {
	ctx := context.Background()
	promos := NewPromotions(promotion.Promotion{Code: "RACE", MaxUses: 3, IsActive: true})
	r := NewOrders(promos)

	var (
		wg       sync.WaitGroup
		placed   atomic.Int32
		rejected atomic.Int32
	)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.Create(ctx, &order.Order{ID: fmt.Sprintf("o%d", i), PromotionCode: "RACE"})
			switch {
			case err == nil:
				placed.Add(1)
			case errors.Is(err, promotion.ErrExhaustedUses):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 3, placed.Load())
	assert.EqualValues(t, 17, rejected.Load())

	r.mu.RLock()
	stored := len(r.byID)
	r.mu.RUnlock()
	assert.Equal(t, 3, stored)
}

func TestAPIKeys(t *testing.T) {
	ctx := context.Background()
	hash := auth.Hash([]byte("p"), "k")
	r := NewAPIKeys(auth.APIKeyInfo{ID: "k1", KeyHash: hash})

	info, err := r.FindByHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "k1", info.ID)

	_, err = r.FindByHash(ctx, "other")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}
