package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-checkout/internal/domain/product"
)

// ListStores returns every approved store.
func (h *Handler) ListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.products.ListStores(r.Context())
	if err != nil {
		h.mapError(w, r, errors.Wrap(err, "list stores"))
		return
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, s := range stores {
			encodeStore(e, s)
		}
	})
	writeJSON(w, http.StatusOK, &e)
}

// ListProducts returns the catalog, optionally narrowed by the store and
// category query parameters.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, err := h.products.List(r.Context(), product.Filter{
		StoreID:  q.Get("store"),
		Category: q.Get("category"),
	})
	if err != nil {
		h.mapError(w, r, errors.Wrap(err, "list products"))
		return
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, p := range products {
			h.encodeProduct(e, p)
		}
	})
	writeJSON(w, http.StatusOK, &e)
}

// GetProduct returns a single product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		h.mapError(w, r, errors.Wrap(err, "get product"))
		return
	}

	var e jx.Encoder
	h.encodeProduct(&e, *p)
	writeJSON(w, http.StatusOK, &e)
}
