package pricing

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go-marketplace/apperr"
	"go-marketplace/models"
)

// CouponKind selects how a coupon's value is interpreted.
type CouponKind string

const (
	CouponPercent CouponKind = "percent"
	CouponFlat    CouponKind = "flat"
)

// Coupon is a resolved coupon. Percent holds 0-100; Amount holds the flat
// discount.
type Coupon struct {
	Code    string
	Kind    CouponKind
	Percent int64
	Amount  models.Money
}

// DiscountFor returns the discount on subtotal, capped at the subtotal. It
// depends only on the subtotal, so applying the same coupon twice gives the
// same discount.
func (c Coupon) DiscountFor(subtotal models.Money) models.Money {
	var d models.Money
	switch c.Kind {
	case CouponPercent:
		d = subtotal * models.Money(c.Percent) / 100
	case CouponFlat:
		d = c.Amount
	}
	if d > subtotal {
		d = subtotal
	}
	return d.NonNegative()
}

// Coupons is the catalogue of valid codes, keyed by upper-case code.
type Coupons map[string]Coupon

// Resolve looks up code. Unknown codes are a validation error and the caller
// keeps whatever coupon it had before.
func (cs Coupons) Resolve(code string) (Coupon, error) {
	key := strings.ToUpper(strings.TrimSpace(code))
	if key == "" {
		return Coupon{}, apperr.Validation("couponCode", "coupon code is required")
	}
	c, ok := cs[key]
	if !ok {
		return Coupon{}, apperr.Validation("couponCode", fmt.Sprintf("coupon %q is not valid", key))
	}
	return c, nil
}

// Codes returns the catalogue's codes in sorted order.
func (cs Coupons) Codes() []string {
	codes := make([]string, 0, len(cs))
	for code := range cs {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// ParseCoupons reads "CODE:percent:10,CODE2:flat:100" (flat values in rupees).
func ParseCoupons(list string) (Coupons, error) {
	cs := Coupons{}
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("coupon %q: want CODE:kind:value", entry)
		}
		code := strings.ToUpper(strings.TrimSpace(parts[0]))
		c := Coupon{Code: code, Kind: CouponKind(strings.ToLower(strings.TrimSpace(parts[1])))}
		switch c.Kind {
		case CouponPercent:
			p, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
			if err != nil || p < 0 || p > 100 {
				return nil, fmt.Errorf("coupon %q: percentage must be 0-100", code)
			}
			c.Percent = p
		case CouponFlat:
			amt, err := models.ParseMoney(parts[2])
			if err != nil || amt < 0 {
				return nil, fmt.Errorf("coupon %q: flat amount must be a non-negative number", code)
			}
			c.Amount = amt
		default:
			return nil, fmt.Errorf("coupon %q: unknown kind %q", code, parts[1])
		}
		cs[code] = c
	}
	return cs, nil
}
