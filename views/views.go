// Package views projects orders for the customer, seller and admin screens.
// Every function here is read-only over its input.
package views

import (
	"sort"
	"strings"
	"time"

	"go-marketplace/lifecycle"
	"go-marketplace/models"
)

// Filter narrows a list of orders. Zero fields match everything.
type Filter struct {
	Status models.Status
	From   time.Time
	To     time.Time
	Query  string
}

// Match reports whether o passes the filter. Status is compared against the
// aggregate orderStatus.
func (f Filter) Match(o models.Order) bool {
	if f.Status != "" && o.OrderStatus != f.Status {
		return false
	}
	if !f.From.IsZero() && o.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !o.CreatedAt.Before(f.To) {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" && !strings.Contains(strings.ToUpper(o.OrderID), strings.ToUpper(q)) {
		return false
	}
	return true
}

// Apply returns the matching orders, newest first.
func (f Filter) Apply(orders []models.Order) []models.Order {
	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if f.Match(o) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// SellerOrder is an order as one seller sees it: only the lines it owns.
type SellerOrder struct {
	ID              models.ID              `json:"id"`
	OrderID         string                 `json:"orderId"`
	CreatedAt       time.Time              `json:"createdAt"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   models.PaymentMethod   `json:"paymentMethod"`
	PaymentStatus   models.PaymentStatus   `json:"paymentStatus"`
	OrderStatus     models.Status          `json:"orderStatus"`
	Products        []models.LineItem      `json:"products"`
	SellerTotal     models.Money           `json:"sellerTotal"`
}

// ForSeller projects o for seller; ok is false when seller owns no line.
func ForSeller(o models.Order, seller models.ID) (SellerOrder, bool) {
	so := SellerOrder{
		ID:              o.ID,
		OrderID:         o.OrderID,
		CreatedAt:       o.CreatedAt,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		OrderStatus:     o.OrderStatus,
	}
	for _, li := range o.Products {
		if li.SellerID != seller {
			continue
		}
		so.Products = append(so.Products, li)
		so.SellerTotal += li.Price.Times(li.Quantity)
	}
	return so, len(so.Products) > 0
}

// SellerOrders projects every order that has at least one line for seller.
func SellerOrders(orders []models.Order, seller models.ID) []SellerOrder {
	var out []SellerOrder
	for _, o := range orders {
		if so, ok := ForSeller(o, seller); ok {
			out = append(out, so)
		}
	}
	return out
}

// AdminOrder is the full order plus the derived line-status summary.
type AdminOrder struct {
	models.Order
	Derived lifecycle.Derived `json:"derived"`
}

func ForAdmin(orders []models.Order) []AdminOrder {
	out := make([]AdminOrder, 0, len(orders))
	for _, o := range orders {
		out = append(out, AdminOrder{Order: o, Derived: lifecycle.Derive(o)})
	}
	return out
}

// Stats aggregates counts and revenue over a set of orders.
type Stats struct {
	Orders   int                   `json:"orders"`
	ByStatus map[models.Status]int `json:"byStatus"`
	Revenue  models.Money          `json:"revenue"`
	// Diverged counts orders whose aggregate differs from the worst-case line status.
	Diverged int `json:"diverged,omitempty"`
}

// AdminStats counts orders by aggregate status. Revenue is the final amount
// of every order not cancelled.
func AdminStats(orders []models.Order) Stats {
	s := Stats{ByStatus: make(map[models.Status]int)}
	for _, o := range orders {
		s.Orders++
		s.ByStatus[o.OrderStatus]++
		if o.OrderStatus != models.StatusCancelled {
			s.Revenue += o.FinalAmount
		}
		if lifecycle.Derive(o).Diverged {
			s.Diverged++
		}
	}
	return s
}

// SellerStats counts a seller's lines by their own status. Revenue sums the
// seller's lines that are not cancelled.
func SellerStats(orders []SellerOrder) Stats {
	s := Stats{ByStatus: make(map[models.Status]int)}
	for _, o := range orders {
		s.Orders++
		for _, li := range o.Products {
			s.ByStatus[li.ProductStatus]++
			if li.ProductStatus != models.StatusCancelled {
				s.Revenue += li.Price.Times(li.Quantity)
			}
		}
	}
	return s
}
