package handler

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

// badRequestError is returned by request decoders.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// writeError writes {code, message[, reason]}.
func writeError(w http.ResponseWriter, code int, message, reason string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(code) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		if reason != "" {
			e.Field("reason", func(e *jx.Encoder) { e.Str(reason) })
		}
	})
	writeJSON(w, code, &e)
}

func writeJSON(w http.ResponseWriter, code int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

// mapError converts domain errors to API responses. Unknown errors are
// logged and reported as 500 without details.
func (h *Handler) mapError(w http.ResponseWriter, r *http.Request, err error) {
	if reason := promotion.Reason(err); reason != "" {
		writeError(w, http.StatusUnprocessableEntity, h.messages.For(err), reason)
		return
	}

	var (
		badReq   *badRequestError
		invalid  *order.InvalidFieldError
		notFound *cart.ProductNotFoundError
	)
	switch {
	case errors.As(err, &badReq):
		writeError(w, http.StatusBadRequest, badReq.msg, "")
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, invalid.Error(), "")
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "cart is empty", "")
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error(), "")
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found", "")
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found", "")
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
	case errors.Is(err, order.ErrSubmissionFailed):
		writeError(w, http.StatusInternalServerError, "order submission failed", "")
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error", "")
	}
}
