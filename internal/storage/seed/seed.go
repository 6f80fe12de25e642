// Package seed decodes the catalog fixture shipped with the service.
package seed

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/db"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

// Data is a decoded fixture.
type Data struct {
	Stores     []product.Store
	Products   []product.Product
	Promotions []promotion.Promotion
}

// Default decodes the embedded catalog.
func Default() (*Data, error) {
	return Decode(db.Catalog)
}

// Decode parses a fixture document. Product store references are resolved
// against the stores listed in the same document.
func Decode(data []byte) (*Data, error) {
	var (
		out      Data
		storeIDs []string
	)
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "stores":
			return d.Arr(func(d *jx.Decoder) error {
				s, err := decodeStore(d)
				if err != nil {
					return err
				}
				out.Stores = append(out.Stores, s)
				return nil
			})
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				p, storeID, err := decodeProduct(d)
				if err != nil {
					return err
				}
				p.Store.ID = storeID
				storeIDs = append(storeIDs, storeID)
				out.Products = append(out.Products, p)
				return nil
			})
		case "promotions":
			return d.Arr(func(d *jx.Decoder) error {
				p, err := decodePromotion(d)
				if err != nil {
					return err
				}
				out.Promotions = append(out.Promotions, p)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}

	stores := make(map[string]product.Store, len(out.Stores))
	for _, s := range out.Stores {
		stores[s.ID] = s
	}
	for i, id := range storeIDs {
		s, ok := stores[id]
		if !ok {
			return nil, errors.Errorf("product %s references unknown store %q", out.Products[i].ID, id)
		}
		out.Products[i].Store = s
	}
	return &out, nil
}

func decodeStore(d *jx.Decoder) (product.Store, error) {
	var s product.Store
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			s.ID, err = d.Str()
		case "name":
			s.Name, err = d.Str()
		case "city":
			s.City, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return s, errors.Wrap(err, "store")
}

func decodeProduct(d *jx.Decoder) (p product.Product, storeID string, _ error) {
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "storeId":
			storeID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "price":
			p.Price, err = decodeDecimal(d)
		case "discountPrice":
			p.DiscountPrice, err = decodeNullDecimal(d)
		case "category":
			p.Category, err = d.Str()
		case "imageUrl":
			p.ImageURL, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return p, storeID, errors.Wrap(err, "product")
}

func decodePromotion(d *jx.Decoder) (promotion.Promotion, error) {
	p := promotion.Promotion{IsActive: true}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			var code string
			code, err = d.Str()
			p.Code = promotion.NormalizeCode(code)
		case "discountPercentage":
			p.DiscountPercentage, err = decodeNullDecimal(d)
		case "discountAmount":
			p.DiscountAmount, err = decodeNullDecimal(d)
		case "startDate":
			p.StartDate, err = decodeTime(d)
		case "endDate":
			p.EndDate, err = decodeTime(d)
		case "maxUses":
			p.MaxUses, err = d.Int()
		case "currentUses":
			p.CurrentUses, err = d.Int()
		case "minOrderAmount":
			p.MinOrderAmount, err = decodeNullDecimal(d)
		case "isActive":
			p.IsActive, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return p, errors.Wrap(err, "promotion")
	}
	if p.DiscountPercentage.Valid == p.DiscountAmount.Valid {
		return p, errors.Errorf("promotion %s: exactly one of discountPercentage and discountAmount must be set", p.Code)
	}
	return p, nil
}

// decodeDecimal reads a JSON number or numeric string without going through
// float64.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(n.String())
}

func decodeNullDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	if d.Next() == jx.Null {
		return decimal.NullDecimal{}, d.Null()
	}
	v, err := decodeDecimal(d)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, s)
}
