package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

func decodeCheckout(d *jx.Decoder, key string, req *order.SubmitRequest) error {
	var dst *string
	switch key {
	case "full_name":
		dst = &req.Shipping.FullName
	case "phone":
		dst = &req.Shipping.Phone
	case "address":
		dst = &req.Shipping.Address
	case "city":
		dst = &req.Shipping.City
	case "notes":
		dst = &req.Shipping.Notes
	case "payment_method":
		v, err := d.Str()
		req.PaymentMethod = order.PaymentMethod(v)
		return err
	default:
		return d.Skip()
	}
	if d.Next() == jx.Null {
		return d.Null()
	}
	v, err := d.Str()
	*dst = v
	return err
}

// Checkout submits the session cart as an order. The body carries the
// shipping fields and payment_method.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)
	ctx := r.Context()

	req := order.SubmitRequest{Session: h.sessions.Get(sid)}
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		return decodeCheckout(d, key, &req)
	}); err != nil {
		h.mapError(w, r, err)
		return
	}

	res, err := h.submitter.Submit(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrSubmissionFailed):
			h.notifier.Notify(ctx, sid, cart.Notice{
				Kind:    cart.NoticeError,
				Message: "Failed to place order. Please try again.",
				At:      time.Now(),
			})
		case promotion.Reason(err) != "":
			// The applied code ran out of uses after it was applied.
			h.notifier.Notify(ctx, sid, cart.Notice{
				Kind:    cart.NoticeError,
				Message: h.messages.For(err),
				At:      time.Now(),
			})
		}
		h.mapError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("order", func(e *jx.Encoder) { encodeOrder(e, res.Order) })
		e.Field("promotion_redeemed", func(e *jx.Encoder) {
			e.Bool(res.Order.PromotionCode != "")
		})
	})
	writeJSON(w, http.StatusCreated, &e)
}

// GetOrder returns a placed order for the confirmation page.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		h.mapError(w, r, errors.Wrap(err, "get order"))
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}
