// Package memory implements the domain repositories in process memory. It
// backs the development mode of the server and handler tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

var (
	_ product.Repository   = (*Catalog)(nil)
	_ promotion.Repository = (*Promotions)(nil)
	_ order.Repository     = (*Orders)(nil)
	_ auth.Repository      = (*APIKeys)(nil)
)

// Catalog is an in-memory product.Repository.
type Catalog struct {
	mu       sync.RWMutex
	stores   []product.Store
	products []product.Product
}

// NewCatalog creates a Catalog holding the given stores and products.
func NewCatalog(stores []product.Store, products []product.Product) *Catalog {
	return &Catalog{
		stores:   slices.Clone(stores),
		products: slices.Clone(products),
	}
}

// List returns products matching filter in insertion order.
func (c *Catalog) List(_ context.Context, filter product.Filter) ([]product.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]product.Product, 0, len(c.products))
	for _, p := range c.products {
		if filter.Match(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetByID returns a single product by its identifier.
func (c *Catalog) GetByID(_ context.Context, id string) (*product.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, p := range c.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

// ListStores returns all stores.
func (c *Catalog) ListStores(_ context.Context) ([]product.Store, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.stores), nil
}

// Promotions is an in-memory promotion.Repository with the same redeem
// semantics as the database: one use per order, never above MaxUses.
type Promotions struct {
	mu       sync.Mutex
	byCode   map[string]promotion.Promotion
	redeemed map[string]string // order id -> code
}

// NewPromotions creates a store holding promos keyed by their code.
func NewPromotions(promos ...promotion.Promotion) *Promotions {
	p := &Promotions{
		byCode:   make(map[string]promotion.Promotion, len(promos)),
		redeemed: make(map[string]string),
	}
	for _, promo := range promos {
		p.byCode[promo.Code] = promo
	}
	return p
}

// Put inserts or replaces a promotion.
func (p *Promotions) Put(promo promotion.Promotion) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byCode[promo.Code] = promo
}

// FindActiveByCode returns the active promotion stored under code.
func (p *Promotions) FindActiveByCode(_ context.Context, code string) (*promotion.Promotion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	promo, ok := p.byCode[code]
	if !ok || !promo.IsActive {
		return nil, promotion.ErrNotFound
	}
	return &promo, nil
}

// Redeem consumes one use of code for orderID.
func (p *Promotions) Redeem(_ context.Context, code, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.redeemed[orderID]; ok {
		return nil
	}
	promo, ok := p.byCode[code]
	if !ok {
		return promotion.ErrNotFound
	}
	if promo.CurrentUses >= promo.MaxUses {
		return promotion.ErrExhaustedUses
	}
	promo.CurrentUses++
	p.byCode[code] = promo
	p.redeemed[orderID] = code
	return nil
}

// Orders is an in-memory order.Repository. Orders with a promotion code
// consume a use from promotions before they are stored.
type Orders struct {
	mu         sync.RWMutex
	byID       map[string]order.Order
	promotions *Promotions
}

// NewOrders creates an empty order store redeeming codes from promotions.
func NewOrders(promotions *Promotions) *Orders {
	return &Orders{
		byID:       make(map[string]order.Order),
		promotions: promotions,
	}
}

// Create stores a copy of o. Nothing is stored when its promotion has no
// use left.
func (r *Orders) Create(ctx context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o.PromotionCode != "" {
		if err := r.promotions.Redeem(ctx, o.PromotionCode, o.ID); err != nil {
			return err
		}
	}

	cp := *o
	cp.Items = slices.Clone(o.Items)
	r.byID[o.ID] = cp
	return nil
}

// Get returns a copy of the stored order.
func (r *Orders) Get(_ context.Context, id string) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o.Items = slices.Clone(o.Items)
	return &o, nil
}

// APIKeys is an in-memory auth.Repository.
type APIKeys struct {
	mu     sync.RWMutex
	byHash map[string]auth.APIKeyInfo
}

// NewAPIKeys creates a store holding keys indexed by their hash.
func NewAPIKeys(keys ...auth.APIKeyInfo) *APIKeys {
	r := &APIKeys{byHash: make(map[string]auth.APIKeyInfo, len(keys))}
	for _, k := range keys {
		r.byHash[k.KeyHash] = k
	}
	return r
}

// FindByHash looks up a key by its HMAC hash.
func (r *APIKeys) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.byHash[hash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &info, nil
}
