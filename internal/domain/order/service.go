package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

// Sentinel errors for order submission.
var (
	ErrEmptyCart = errors.New("cart is empty")
	// ErrSubmissionFailed wraps any failure to persist the order. The cart is
	// left intact so the customer can retry.
	ErrSubmissionFailed = errors.New("order submission failed")
)

// SubmitRequest holds the input for submitting the cart of a session.
type SubmitRequest struct {
	Session       *cart.Session
	Shipping      ShippingInfo
	PaymentMethod PaymentMethod
}

// Result is the outcome of a successful submission.
type Result struct {
	Order *Order
}

// Submitter turns a session cart into a persisted order.
type Submitter struct {
	orders Repository
	tracer trace.Tracer

	placed    metric.Int64Counter
	failed    metric.Int64Counter
	exhausted metric.Int64Counter

	newID func() string
	now   func() time.Time
}

// NewSubmitter creates a Submitter with the required dependencies.
func NewSubmitter(
	orders Repository,
	tracerProvider trace.TracerProvider,
	meter metric.Meter,
) (*Submitter, error) {
	s := &Submitter{
		orders: orders,
		tracer: tracerProvider.Tracer("github.com/xenking/storefront-checkout/internal/domain/order"),
		newID:  func() string { return uuid.New().String() },
		now:    time.Now,
	}

	var err error
	if s.placed, err = meter.Int64Counter("order.placed",
		metric.WithDescription("Orders persisted"),
	); err != nil {
		return nil, errors.Wrap(err, "placed counter")
	}
	if s.failed, err = meter.Int64Counter("order.submission.failures",
		metric.WithDescription("Order submissions that could not be persisted"),
	); err != nil {
		return nil, errors.Wrap(err, "failures counter")
	}
	if s.exhausted, err = meter.Int64Counter("order.promotion.exhausted",
		metric.WithDescription("Submissions rejected because the applied promotion ran out of uses"),
	); err != nil {
		return nil, errors.Wrap(err, "exhausted counter")
	}
	return s, nil
}

// Submit persists the session cart as a pending order and clears the cart.
// The applied promotion is consumed in the same write as the order; when its
// last use was taken by another order in the meantime the submission is
// rejected with promotion.ErrExhaustedUses and nothing is stored. The session
// is locked for the whole call, so concurrent submissions of the same session
// run one after another.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) (*Result, error) {
	if req.Session == nil {
		return nil, errors.New("session is required")
	}
	if err := req.Shipping.Validate(); err != nil {
		return nil, err
	}
	if !req.PaymentMethod.Valid() {
		return nil, &InvalidFieldError{Field: "payment_method"}
	}

	ctx, span := s.tracer.Start(ctx, "order.Submit",
		trace.WithAttributes(attribute.String("session.id", req.Session.ID)),
	)
	defer span.End()

	lg := zctx.From(ctx)

	var res *Result
	err := req.Session.Update(func(st *cart.State) error {
		if st.Ledger.Len() == 0 {
			return ErrEmptyCart
		}

		o := s.build(req, st)
		span.SetAttributes(
			attribute.String("order.id", o.ID),
			attribute.Int("order.items", len(o.Items)),
		)

		if err := s.orders.Create(ctx, o); err != nil {
			if errors.Is(err, promotion.ErrExhaustedUses) {
				s.exhausted.Add(ctx, 1,
					metric.WithAttributes(attribute.String("promotion.code", o.PromotionCode)),
				)
				span.AddEvent("promotion exhausted")
				lg.Warn("Promotion ran out of uses before submission",
					zap.String("order_id", o.ID),
					zap.String("promotion_code", o.PromotionCode),
				)
				return promotion.ErrExhaustedUses
			}
			s.failed.Add(ctx, 1)
			span.RecordError(err)
			span.SetStatus(codes.Error, "create order")
			lg.Error("Order submission failed",
				zap.String("order_id", o.ID),
				zap.Error(err),
			)
			return fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
		}
		s.placed.Add(ctx, 1)
		res = &Result{Order: o}

		st.Ledger.Clear()
		st.Applied = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	lg.Info("Order placed",
		zap.String("order_id", res.Order.ID),
		zap.String("total", res.Order.Total.String()),
	)
	return res, nil
}

func (s *Submitter) build(req SubmitRequest, st *cart.State) *Order {
	snap := st.Pricing()

	lines := st.Ledger.Items()
	items := make([]Item, len(lines))
	for i, line := range lines {
		var productID *string
		if line.FromCatalog {
			id := line.ProductID
			productID = &id
		}
		items[i] = Item{
			ProductID: productID,
			Name:      line.Name,
			Price:     line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal(),
		}
	}

	o := &Order{
		ID:            s.newID(),
		SessionID:     req.Session.ID,
		Items:         items,
		Subtotal:      snap.Subtotal,
		Discount:      snap.Discount,
		Total:         snap.Total,
		Shipping:      req.Shipping,
		PaymentMethod: req.PaymentMethod,
		Status:        StatusPending,
		CreatedAt:     s.now(),
	}
	if st.Applied != nil {
		o.PromotionCode = st.Applied.Code
	}
	return o
}
