// Package handler exposes the catalog, cart and checkout operations over
// HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
	"github.com/xenking/storefront-checkout/pkg/httpmiddleware"
)

const (
	// SessionHeader identifies the shopper's cart session.
	SessionHeader = "X-Session-ID"
	// APIKeyHeader carries the raw API key for checkout endpoints.
	APIKeyHeader = "api_key"
)

// API key scopes.
const (
	ScopeCheckout = "checkout"
	ScopeOrders   = "orders"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in responses.
	ImageBaseURL string
}

// Deps are the domain services the handler delegates to.
type Deps struct {
	Products  product.Repository
	Sessions  *cart.Sessions
	Carts     *cart.Service
	Submitter *order.Submitter
	Orders    order.Repository
	Auth      *auth.Authenticator
	Messages  *promotion.Messages
	// Notifier receives checkout failure notices. Defaults to Sessions.
	Notifier cart.Notifier
}

// Handler serves the storefront API.
type Handler struct {
	products     product.Repository
	sessions     *cart.Sessions
	carts        *cart.Service
	submitter    *order.Submitter
	orders       order.Repository
	auth         *auth.Authenticator
	messages     *promotion.Messages
	notifier     cart.Notifier
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, deps Deps) *Handler {
	h := &Handler{
		products:     deps.Products,
		sessions:     deps.Sessions,
		carts:        deps.Carts,
		submitter:    deps.Submitter,
		orders:       deps.Orders,
		auth:         deps.Auth,
		messages:     deps.Messages,
		notifier:     deps.Notifier,
		imageBaseURL: cfg.ImageBaseURL,
	}
	if h.notifier == nil {
		h.notifier = deps.Sessions
	}
	return h
}

// Router returns the API routes. Callers may add more routes (probes) to
// the returned router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(
		httpmiddleware.LogRequests(),
		httpmiddleware.LabelRoutes(),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/store", h.ListStores)
		r.Get("/product", h.ListProducts)
		r.Get("/product/{productId}", h.GetProduct)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddItem)
			r.Put("/items/{productId}", h.SetQuantity)
			r.Delete("/items/{productId}", h.RemoveItem)
			r.Post("/promotion", h.ApplyPromotion)
			r.Delete("/promotion", h.DropPromotion)
			r.Get("/notifications", h.Notifications)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireKey(ScopeCheckout))
			r.Post("/checkout/promotion", h.ApplyPromotion)
			r.Post("/checkout", h.Checkout)
		})
		r.With(h.requireKey(ScopeOrders)).Get("/order/{orderId}", h.GetOrder)
	})
	return r
}

// sessionID returns the caller's session id, issuing a new one when the
// header is missing or malformed. The id is always echoed back.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(SessionHeader)
	if err := uuid.Validate(id); err != nil {
		id = uuid.NewString()
	}
	w.Header().Set(SessionHeader, id)
	return id
}
