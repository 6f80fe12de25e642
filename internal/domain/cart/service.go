package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

// ProductNotFoundError indicates the product being added does not exist in
// the catalog.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// Unwrap lets callers match product.ErrNotFound.
func (e *ProductNotFoundError) Unwrap() error {
	return product.ErrNotFound
}

// PromotionValidator checks a code against a cart subtotal.
type PromotionValidator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*promotion.Promotion, error)
}

// Service implements the cart operations of a shopping session.
type Service struct {
	sessions   *Sessions
	products   product.Repository
	promotions PromotionValidator
	messages   *promotion.Messages
	notifier   Notifier

	rejections metric.Int64Counter
	now        func() time.Time
}

// NewService creates a cart Service. Notices go to the session queue and to
// notifier, which may be nil.
func NewService(
	sessions *Sessions,
	products product.Repository,
	promotions PromotionValidator,
	messages *promotion.Messages,
	notifier Notifier,
	meter metric.Meter,
) (*Service, error) {
	rejections, err := meter.Int64Counter("cart.promotion.rejections",
		metric.WithDescription("Promotion codes rejected by reason"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "promotion rejections counter")
	}

	sink := Notifier(sessions)
	if notifier != nil {
		sink = Fanout(sessions, notifier)
	}

	return &Service{
		sessions:   sessions,
		products:   products,
		promotions: promotions,
		messages:   messages,
		notifier:   sink,
		rejections: rejections,
		now:        time.Now,
	}, nil
}

func (s *Service) notify(ctx context.Context, sessionID string, kind NoticeKind, msg string) {
	s.notifier.Notify(ctx, sessionID, Notice{Kind: kind, Message: msg, At: s.now()})
}

// View returns the current cart of the session.
func (s *Service) View(_ context.Context, sessionID string) View {
	return s.sessions.Get(sessionID).View()
}

// AddProduct adds one unit of the catalog product to the session cart.
func (s *Service) AddProduct(ctx context.Context, sessionID, productID string) (AddOutcome, View, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return 0, View{}, &ProductNotFoundError{ProductID: productID}
		}
		return 0, View{}, errors.Wrap(err, "get product")
	}

	sess := s.sessions.Get(sessionID)
	var outcome AddOutcome
	_ = sess.Update(func(st *State) error {
		outcome = st.Ledger.Add(Item{
			ProductID:   p.ID,
			Name:        p.Name,
			UnitPrice:   p.EffectivePrice(),
			ImageURL:    p.ImageURL,
			StoreName:   p.Store.Name,
			FromCatalog: true,
		})
		return nil
	})

	switch outcome {
	case QuantityIncreased:
		s.notify(ctx, sessionID, NoticeInfo, p.Name+" quantity increased")
	default:
		s.notify(ctx, sessionID, NoticeSuccess, p.Name+" added to cart")
	}
	return outcome, sess.View(), nil
}

// SetQuantity overwrites the quantity of a line. A quantity <= 0 removes it.
// Unknown products are ignored.
func (s *Service) SetQuantity(ctx context.Context, sessionID, productID string, quantity int) View {
	sess := s.sessions.Get(sessionID)

	var (
		removed bool
		name    string
	)
	_ = sess.Update(func(st *State) error {
		it, ok := st.Ledger.Get(productID)
		if !ok {
			return nil
		}
		name = it.Name
		st.Ledger.SetQuantity(productID, quantity)
		removed = quantity <= 0
		return nil
	})

	if removed {
		s.notify(ctx, sessionID, NoticeInfo, name+" removed from cart")
	}
	return sess.View()
}

// Remove deletes a line from the cart. Removing an absent product is a no-op.
func (s *Service) Remove(ctx context.Context, sessionID, productID string) View {
	return s.SetQuantity(ctx, sessionID, productID, 0)
}

// Clear empties the cart. The applied promotion stays until dropped or the
// order is submitted.
func (s *Service) Clear(_ context.Context, sessionID string) View {
	sess := s.sessions.Get(sessionID)
	_ = sess.Update(func(st *State) error {
		st.Ledger.Clear()
		return nil
	})
	return sess.View()
}

// ApplyPromotion validates code against the current subtotal and, on
// success, replaces the applied promotion. A rejected code leaves the
// session untouched and returns the validation error.
func (s *Service) ApplyPromotion(ctx context.Context, sessionID, code string) (View, error) {
	sess := s.sessions.Get(sessionID)

	var applied *promotion.Promotion
	err := sess.Update(func(st *State) error {
		p, err := s.promotions.Validate(ctx, code, st.Ledger.Subtotal())
		if err != nil {
			return err
		}
		st.Applied = p
		applied = p
		return nil
	})
	if err != nil {
		if reason := promotion.Reason(err); reason != "" {
			s.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
			s.notify(ctx, sessionID, NoticeError, s.messages.For(err))
			return View{}, err
		}
		return View{}, errors.Wrap(err, "validate promotion")
	}

	s.notify(ctx, sessionID, NoticeSuccess, "Promo code "+applied.Code+" applied")
	return sess.View(), nil
}

// DropPromotion removes the applied promotion, if any.
func (s *Service) DropPromotion(ctx context.Context, sessionID string) View {
	sess := s.sessions.Get(sessionID)

	var dropped string
	_ = sess.Update(func(st *State) error {
		if st.Applied != nil {
			dropped = st.Applied.Code
		}
		st.Applied = nil
		return nil
	})
	if dropped != "" {
		s.notify(ctx, sessionID, NoticeInfo, "Promo code "+dropped+" removed")
	}
	return sess.View()
}

// Notifications drains the notices queued for the session.
func (s *Service) Notifications(_ context.Context, sessionID string) []Notice {
	return s.sessions.Drain(sessionID)
}
