package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/pricing"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

const maxBodyBytes = 64 << 10

// decodeBody reads a JSON object and hands each field to fn.
func decodeBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return badRequest("read body: %v", err)
	}
	if err := jx.DecodeBytes(body).Obj(fn); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}

// money writes d rounded to cents as a JSON number.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" || strings.Contains(path, "://") {
		return path
	}
	return strings.TrimRight(h.imageBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func encodeStore(e *jx.Encoder, s product.Store) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(s.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(s.Name) })
		e.Field("city", func(e *jx.Encoder) { e.Str(s.City) })
	})
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("price", func(e *jx.Encoder) { money(e, p.Price) })
		e.Field("discount_price", func(e *jx.Encoder) {
			if p.DiscountPrice.Valid {
				money(e, p.DiscountPrice.Decimal)
			} else {
				e.Null()
			}
		})
		e.Field("effective_price", func(e *jx.Encoder) { money(e, p.EffectivePrice()) })
		e.Field("image", func(e *jx.Encoder) { e.Str(h.imageURL(p.ImageURL)) })
		e.Field("store", func(e *jx.Encoder) { encodeStore(e, p.Store) })
	})
}

func encodePricing(e *jx.Encoder, s pricing.Snapshot) {
	s = s.Rounded()
	e.Obj(func(e *jx.Encoder) {
		e.Field("subtotal", func(e *jx.Encoder) { money(e, s.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { money(e, s.Discount) })
		e.Field("total", func(e *jx.Encoder) { money(e, s.Total) })
	})
}

func encodePromotion(e *jx.Encoder, p *promotion.Promotion) {
	if p == nil {
		e.Null()
		return
	}
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(p.Code) })
		switch {
		case p.DiscountPercentage.Valid:
			e.Field("discount_percentage", func(e *jx.Encoder) { e.Num(jx.Num(p.DiscountPercentage.Decimal.String())) })
		case p.DiscountAmount.Valid:
			e.Field("discount_amount", func(e *jx.Encoder) { money(e, p.DiscountAmount.Decimal) })
		}
		e.Field("end_date", func(e *jx.Encoder) { e.Str(p.EndDate.UTC().Format(time.RFC3339)) })
	})
}

func (h *Handler) encodeCart(e *jx.Encoder, v cart.View) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("session_id", func(e *jx.Encoder) { e.Str(v.SessionID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range v.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
						e.Field("unit_price", func(e *jx.Encoder) { money(e, it.UnitPrice) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("subtotal", func(e *jx.Encoder) { money(e, it.Subtotal()) })
						e.Field("image", func(e *jx.Encoder) { e.Str(h.imageURL(it.ImageURL)) })
						e.Field("store", func(e *jx.Encoder) { e.Str(it.StoreName) })
					})
				}
			})
		})
		e.Field("total_items", func(e *jx.Encoder) { e.Int(v.TotalItems) })
		e.Field("promotion", func(e *jx.Encoder) { encodePromotion(e, v.Applied) })
		e.Field("pricing", func(e *jx.Encoder) { encodePricing(e, v.Pricing) })
	})
}

func encodeNotices(e *jx.Encoder, notices []cart.Notice) {
	e.Arr(func(e *jx.Encoder) {
		for _, n := range notices {
			e.Obj(func(e *jx.Encoder) {
				e.Field("kind", func(e *jx.Encoder) { e.Str(string(n.Kind)) })
				e.Field("message", func(e *jx.Encoder) { e.Str(n.Message) })
				e.Field("at", func(e *jx.Encoder) { e.Str(n.At.UTC().Format(time.RFC3339)) })
			})
		}
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) {
							if it.ProductID != nil {
								e.Str(*it.ProductID)
							} else {
								e.Null()
							}
						})
						e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
						e.Field("price", func(e *jx.Encoder) { money(e, it.Price) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("subtotal", func(e *jx.Encoder) { money(e, it.Subtotal) })
					})
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { money(e, o.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { money(e, o.Discount) })
		e.Field("total", func(e *jx.Encoder) { money(e, o.Total) })
		e.Field("promotion_code", func(e *jx.Encoder) {
			if o.PromotionCode != "" {
				e.Str(o.PromotionCode)
			} else {
				e.Null()
			}
		})
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(string(o.PaymentMethod)) })
		e.Field("shipping", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("full_name", func(e *jx.Encoder) { e.Str(o.Shipping.FullName) })
				e.Field("phone", func(e *jx.Encoder) { e.Str(o.Shipping.Phone) })
				e.Field("address", func(e *jx.Encoder) { e.Str(o.Shipping.Address) })
				e.Field("city", func(e *jx.Encoder) { e.Str(o.Shipping.City) })
				e.Field("notes", func(e *jx.Encoder) { e.Str(o.Shipping.Notes) })
			})
		})
		e.Field("created_at", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
	})
}
