package lifecycle

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"go-marketplace/apperr"
	"go-marketplace/models"
)

// Reconciler validates and applies status mutations to an in-memory Order.
// It never persists; callers write the returned order (or the described
// change) to the system of record and re-fetch.
type Reconciler struct {
	policy Policy
	log    *zap.Logger
	now    func() time.Time
}

// NewReconciler returns a Reconciler enforcing policy.
func NewReconciler(policy Policy, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{policy: policy, log: log, now: time.Now}
}

// Policy returns the transition policy in force.
func (r *Reconciler) Policy() Policy {
	return r.policy
}

// SellerUpdate sets productStatus on every line of productID in order. It
// fails with Forbidden when seller does not own the product in this order,
// leaving the order untouched.
func (r *Reconciler) SellerUpdate(order models.Order, seller, productID models.ID, to models.Status) (models.Order, error) {
	idx := order.LinesFor(productID)
	if len(idx) == 0 {
		return order, apperr.NotFound("product is not part of this order")
	}
	for _, i := range idx {
		if order.Products[i].SellerID != seller {
			r.log.Warn("seller update rejected",
				zap.String("order_id", order.OrderID),
				zap.String("product_id", productID.String()),
				zap.String("seller_id", seller.String()))
			return order, apperr.Forbidden("you do not sell this product in this order")
		}
	}
	for _, i := range idx {
		if err := r.policy.Check(order.Products[i].ProductStatus, to); err != nil {
			return order, err
		}
	}

	next := order.Clone()
	for _, i := range idx {
		next.Products[i].ProductStatus = to
	}
	next.UpdatedAt = r.now().UTC()

	r.log.Info("line status updated",
		zap.String("order_id", order.OrderID),
		zap.String("product_id", productID.String()),
		zap.String("status", to.String()))
	return next, nil
}

// AdminUpdate sets the aggregate status and appends an audit entry. Line
// statuses are left as they are.
func (r *Reconciler) AdminUpdate(order models.Order, actor models.Actor, to models.Status, note string) (models.Order, models.StatusEntry, error) {
	if !actor.IsAdmin() {
		return order, models.StatusEntry{}, apperr.Forbidden("only admins may set the order status")
	}
	if err := r.policy.Check(order.OrderStatus, to); err != nil {
		return order, models.StatusEntry{}, err
	}

	entry := models.StatusEntry{
		Status: to,
		Note:   strings.TrimSpace(note),
		Actor:  actor.ID,
		Role:   actor.Role,
		At:     r.now().UTC(),
	}
	next := order.Clone()
	next.OrderStatus = to
	next.StatusHistory = append(next.StatusHistory, entry)
	next.UpdatedAt = entry.At

	r.log.Info("order status updated",
		zap.String("order_id", order.OrderID),
		zap.String("from", order.OrderStatus.String()),
		zap.String("to", to.String()))
	return next, entry, nil
}
