// Package pricing computes cart and order totals in integer paise.
//
// Compute is pure: it reads only its arguments, so the same lines and options
// always yield the same Totals.
package pricing

import (
	"go-marketplace/models"
)

// Config holds the delivery and surcharge rules. One canonical value per
// deployment; every flow that prices a cart reads the same Config.
type Config struct {
	DeliveryThreshold models.Money
	DeliveryFee       models.Money
	CODSurcharge      models.Money
}

// DefaultConfig is free delivery from ₹999, ₹49 below it, ₹40 for COD.
func DefaultConfig() Config {
	return Config{
		DeliveryThreshold: models.Rupees(999),
		DeliveryFee:       models.Rupees(49),
		CODSurcharge:      models.Rupees(40),
	}
}

// Options select the payment method and coupon a cart is priced with.
type Options struct {
	PaymentMethod models.PaymentMethod
	Coupon        *Coupon
}

// Totals is the full price breakdown of a set of lines.
type Totals struct {
	Subtotal        models.Money `json:"subtotal"`
	OriginalTotal   models.Money `json:"originalTotal"`
	Discount        models.Money `json:"discount"`
	DeliveryCharges models.Money `json:"deliveryCharges"`
	CODSurcharge    models.Money `json:"codCharges"`
	CouponCode      string       `json:"couponCode,omitempty"`
	CouponDiscount  models.Money `json:"couponDiscount"`
	FinalAmount     models.Money `json:"finalAmount"`
}

// Compute prices lines under cfg. Subtotal uses the discounted unit price;
// the MRP only feeds the displayed discount.
func Compute(lines []models.CartLine, cfg Config, opts Options) Totals {
	var t Totals
	for _, l := range lines {
		t.Subtotal += l.UnitPrice.Times(l.Quantity)
		mrp := l.UnitMrp
		if mrp < l.UnitPrice {
			mrp = l.UnitPrice
		}
		t.OriginalTotal += mrp.Times(l.Quantity)
	}
	t.Discount = (t.OriginalTotal - t.Subtotal).NonNegative()

	if len(lines) > 0 && t.Subtotal < cfg.DeliveryThreshold {
		t.DeliveryCharges = cfg.DeliveryFee
	}
	if opts.PaymentMethod == models.PaymentCOD {
		t.CODSurcharge = cfg.CODSurcharge
	}
	if opts.Coupon != nil {
		t.CouponCode = opts.Coupon.Code
		t.CouponDiscount = opts.Coupon.DiscountFor(t.Subtotal)
	}

	t.FinalAmount = (t.Subtotal - t.CouponDiscount + t.DeliveryCharges + t.CODSurcharge).NonNegative()
	return t
}

// OrderLines converts order line items into priceable cart lines.
func OrderLines(items []models.LineItem) []models.CartLine {
	lines := make([]models.CartLine, 0, len(items))
	for _, li := range items {
		lines = append(lines, models.CartLine{
			ProductID:    li.ProductID,
			Size:         li.Size,
			VariantColor: li.Color,
			Quantity:     li.Quantity,
			UnitPrice:    li.Price,
			UnitMrp:      li.Price,
		})
	}
	return lines
}
