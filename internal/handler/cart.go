package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
)

func (h *Handler) writeCart(w http.ResponseWriter, code int, v cart.View) {
	var e jx.Encoder
	h.encodeCart(&e, v)
	writeJSON(w, code, &e)
}

// GetCart returns the session cart with its pricing snapshot.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, http.StatusOK, h.carts.View(r.Context(), sessionID(w, r)))
}

// AddItem adds one unit of {"product_id"} to the cart. A new line answers
// 201, a repeat add 200.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)

	var productID string
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "product_id" {
			return d.Skip()
		}
		v, err := d.Str()
		productID = v
		return err
	})
	if err == nil && productID == "" {
		err = badRequest("product_id is required")
	}
	if err != nil {
		h.mapError(w, r, err)
		return
	}

	outcome, view, err := h.carts.AddProduct(r.Context(), sid, productID)
	if err != nil {
		h.mapError(w, r, err)
		return
	}
	code := http.StatusOK
	if outcome == cart.ItemAdded {
		code = http.StatusCreated
	}
	h.writeCart(w, code, view)
}

// SetQuantity overwrites the quantity of a line; zero or less removes it.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)

	var (
		quantity int
		seen     bool
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		v, err := d.Int()
		quantity, seen = v, true
		return err
	})
	if err == nil && !seen {
		err = badRequest("quantity is required")
	}
	if err != nil {
		h.mapError(w, r, err)
		return
	}

	h.writeCart(w, http.StatusOK, h.carts.SetQuantity(r.Context(), sid, chi.URLParam(r, "productId"), quantity))
}

// RemoveItem deletes a line from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)
	h.writeCart(w, http.StatusOK, h.carts.Remove(r.Context(), sid, chi.URLParam(r, "productId")))
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, http.StatusOK, h.carts.Clear(r.Context(), sessionID(w, r)))
}

// ApplyPromotion validates {"code"} against the current subtotal and, on
// success, makes it the session's only applied promotion. Cart review and
// checkout both route here so they always reach the same decision.
func (h *Handler) ApplyPromotion(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)

	var code string
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "code" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		v, err := d.Str()
		code = v
		return err
	})
	if err != nil {
		h.mapError(w, r, err)
		return
	}

	// An empty code is passed through so it is rejected like any other
	// invalid one.
	view, err := h.carts.ApplyPromotion(r.Context(), sid, code)
	if err != nil {
		h.mapError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK, view)
}

// DropPromotion removes the applied promotion.
func (h *Handler) DropPromotion(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, http.StatusOK, h.carts.DropPromotion(r.Context(), sessionID(w, r)))
}

// Notifications drains the session's pending notices.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	var e jx.Encoder
	encodeNotices(&e, h.carts.Notifications(r.Context(), sessionID(w, r)))
	writeJSON(w, http.StatusOK, &e)
}
