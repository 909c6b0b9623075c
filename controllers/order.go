package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"go-marketplace/apperr"
	"go-marketplace/lifecycle"
	"go-marketplace/models"
	"go-marketplace/pricing"
	"go-marketplace/repository"
	"go-marketplace/utils"
	"go-marketplace/views"
)

// OrderResponse wraps a single order.
type OrderResponse struct {
	Success bool        `json:"success"`
	Order   interface{} `json:"order"`
}

// OrderController handles order-related requests
type OrderController struct {
	Store      *repository.Store
	Pricing    pricing.Config
	Coupons    pricing.Coupons
	Reconciler *lifecycle.Reconciler
	Mailer     utils.Mailer
	Log        *zap.Logger

	now func() time.Time
}

// NewOrderController creates a new OrderController
func NewOrderController(store *repository.Store, cfg pricing.Config, coupons pricing.Coupons, reconciler *lifecycle.Reconciler, mailer utils.Mailer, log *zap.Logger) *OrderController {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderController{
		Store:      store,
		Pricing:    cfg,
		Coupons:    coupons,
		Reconciler: reconciler,
		Mailer:     mailer,
		Log:        log,
		now:        time.Now,
	}
}

// displayCode returns the customer-facing order number, e.g. ORD-20260314-9F2C41AB.
func displayCode(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", at.Format("20060102"), suffix)
}

// CreateOrder places an order from the submitted lines
func (oc *OrderController) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	var req models.OrderRequest
	if err := decodeBody(r, &req); err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	if err := oc.validateRequest(&req); err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	items, err := oc.resolveLines(ctx, req.Products)
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}

	opts := pricing.Options{PaymentMethod: req.PaymentMethod}
	if strings.TrimSpace(req.CouponCode) != "" {
		coupon, err := oc.Coupons.Resolve(req.CouponCode)
		if err != nil {
			utils.WriteError(w, oc.Log, err)
			return
		}
		opts.Coupon = &coupon
	}
	totals := pricing.Compute(pricing.OrderLines(items), oc.Pricing, opts)
	if err := matchTotals(req, totals); err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}

	now := oc.now().UTC()
	order := models.Order{
		ID:              models.NewID(),
		OrderID:         displayCode(now),
		UserID:          actor.ID,
		Products:        items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   models.PaymentPending,
		OrderStatus:     models.StatusPending,
		TotalAmount:     totals.Subtotal,
		DeliveryCharges: totals.DeliveryCharges,
		CodCharges:      totals.CODSurcharge,
		CouponCode:      totals.CouponCode,
		CouponDiscount:  totals.CouponDiscount,
		FinalAmount:     totals.FinalAmount,
		StatusHistory: []models.StatusEntry{{
			Status: models.StatusPending,
			Note:   "Order placed",
			Actor:  actor.ID,
			Role:   actor.Role,
			At:     now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := oc.Store.Orders.InsertOrder(ctx, order); err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}

	// The order exists from here on; a failure to clear the cart must not
	// turn into an error the customer would retry.
	if err := oc.Store.Carts.ClearCart(ctx, actor.ID); err != nil {
		oc.Log.Warn("failed to clear cart after order", zap.String("order_id", order.OrderID), zap.Error(err))
	}

	oc.Log.Info("order created",
		zap.String("order_id", order.OrderID),
		zap.String("user_id", actor.ID.String()),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.String("final_amount", order.FinalAmount.String()))

	if oc.Mailer != nil && actor.Email != "" {
		go func(email string, order models.Order) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			subject, body := utils.OrderConfirmation(order)
			if err := oc.Mailer.Send(ctx, email, subject, body); err != nil {
				oc.Log.Error("failed to send order confirmation", zap.String("order_id", order.OrderID), zap.Error(err))
			}
		}(actor.Email, order.Clone())
	}

	utils.WriteJSON(w, http.StatusCreated, OrderResponse{Success: true, Order: order})
}

// validateRequest checks everything that needs no storage. Card details are
// checked and then dropped; they are never stored or echoed.
func (oc *OrderController) validateRequest(req *models.OrderRequest) error {
	method, err := models.ParsePaymentMethod(string(req.PaymentMethod))
	if err != nil {
		return err
	}
	req.PaymentMethod = method
	if err := models.Validate(*req); err != nil {
		return err
	}
	if err := models.Validate(req.ShippingAddress); err != nil {
		return err
	}

	switch method {
	case models.PaymentUPI:
		if strings.TrimSpace(req.PaymentDetails.UPIApp) == "" && !models.ValidUPIID(req.PaymentDetails.UPIID) {
			return apperr.Validation("upiId", "invalid UPI ID")
		}
	case models.PaymentCard:
		if req.PaymentDetails.Card == nil {
			return apperr.Validation("card", "card details are required")
		}
		if err := models.Validate(*req.PaymentDetails.Card); err != nil {
			return err
		}
	}
	req.PaymentDetails = models.PaymentDetails{UPIApp: req.PaymentDetails.UPIApp}
	return nil
}

// resolveLines re-reads every product from the catalogue. Stock is checked
// against the total quantity ordered per product but not reserved.
func (oc *OrderController) resolveLines(ctx context.Context, lines []models.OrderLineRequest) ([]models.LineItem, error) {
	items := make([]models.LineItem, 0, len(lines))
	wanted := make(map[models.ID]int)
	products := make(map[models.ID]models.Product)

	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			var err error
			if p, err = oc.Store.Products.FindProduct(ctx, l.ProductID); err != nil {
				if apperr.Is(err, apperr.KindNotFound) {
					return nil, apperr.NotFound(fmt.Sprintf("Product with ID %s not found", l.ProductID))
				}
				return nil, err
			}
			products[l.ProductID] = p
		}
		if l.Price != 0 && l.Price != p.Price {
			return nil, apperr.Conflictf("The price of %s changed to ₹%s, please review your cart", p.Title, p.Price)
		}
		wanted[l.ProductID] += l.Quantity
		if p.Stock < wanted[l.ProductID] {
			return nil, apperr.Conflictf("Insufficient stock for product: %s", p.Title)
		}
		items = append(items, models.LineItem{
			ProductID:     p.ID,
			SellerID:      p.SellerID,
			Title:         p.Title,
			Price:         p.Price,
			Quantity:      l.Quantity,
			Size:          l.Size,
			Color:         l.Color,
			ProductStatus: models.StatusPending,
		})
	}
	return items, nil
}

// matchTotals rejects a request priced differently from the server.
func matchTotals(req models.OrderRequest, t pricing.Totals) error {
	checks := []struct {
		name      string
		got, want models.Money
	}{
		{"totalAmount", req.TotalAmount, t.Subtotal},
		{"deliveryCharges", req.DeliveryCharges, t.DeliveryCharges},
		{"codCharges", req.CodCharges, t.CODSurcharge},
		{"couponDiscount", req.CouponDiscount, t.CouponDiscount},
		{"finalAmount", req.FinalAmount, t.FinalAmount},
	}
	for _, c := range checks {
		if c.got != c.want {
			return &apperr.Error{
				Kind:    apperr.KindConflict,
				Field:   c.name,
				Message: fmt.Sprintf("Order total is out of date: %s should be ₹%s", c.name, c.want),
			}
		}
	}
	return nil
}

// GetOrders lists the caller's own orders
func (oc *OrderController) GetOrders(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	filter, err := filterFromQuery(r)
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	orders, err := oc.Store.Orders.ListOrders(ctx, repository.OrderQuery{UserID: actor.ID})
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "orders": filter.Apply(orders)})
}

// GetOrder returns one order projected for the caller: admins see the full
// order with the derived line summary, sellers only their own lines.
func (oc *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	order, err := oc.Store.Orders.FindOrder(ctx, models.NormalizeID(mux.Vars(r)["id"]))
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	view, err := projectFor(order, actor)
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, OrderResponse{Success: true, Order: view})
}

func projectFor(order models.Order, actor models.Actor) (interface{}, error) {
	switch {
	case actor.IsAdmin():
		return views.ForAdmin([]models.Order{order})[0], nil
	case order.UserID == actor.ID:
		return order, nil
	case actor.Role == models.RoleSeller:
		if so, ok := views.ForSeller(order, actor.ID); ok {
			return so, nil
		}
	}
	return nil, apperr.NotFound("order not found")
}

// GetSellerOrders lists orders containing the seller's products with stats
func (oc *OrderController) GetSellerOrders(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	filter, err := filterFromQuery(r)
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	orders, err := oc.Store.Orders.ListOrders(ctx, repository.OrderQuery{SellerID: actor.ID})
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	projected := views.SellerOrders(filter.Apply(orders), actor.ID)
	if projected == nil {
		projected = []views.SellerOrder{}
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"orders":  projected,
		"stats":   views.SellerStats(projected),
	})
}

// GetAdminOrders lists every order with derived line summaries and stats
func (oc *OrderController) GetAdminOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	orders, err := oc.Store.Orders.ListOrders(ctx, repository.OrderQuery{})
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	orders = filter.Apply(orders)
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"orders":  views.ForAdmin(orders),
		"stats":   views.AdminStats(orders),
	})
}

// UpdateLineStatus lets a seller move the status of its own line items
func (oc *OrderController) UpdateLineStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	var body struct {
		ProductStatus string `json:"productStatus"`
	}
	if err := decodeBody(r, &body); err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	to, err := models.ParseStatus(body.ProductStatus)
	if err != nil {
		utils.WriteError(w, oc.Log, apperr.Validation("productStatus", apperr.MessageOf(err)))
		return
	}
	vars := mux.Vars(r)
	productID := models.NormalizeID(vars["productId"])

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	order, err := oc.Store.Orders.FindOrder(ctx, models.NormalizeID(vars["id"]))
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	next, err := oc.Reconciler.SellerUpdate(order, actor.ID, productID, to)
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	if err := oc.Store.Orders.SetLineStatus(ctx, order.ID, productID, actor.ID, to, next.UpdatedAt); err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	oc.respondFresh(ctx, w, order.ID, actor)
}

// UpdateOrderStatus lets an admin set the aggregate order status
func (oc *OrderController) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	var body struct {
		Status string `json:"status"`
		Note   string `json:"note"`
	}
	if err := decodeBody(r, &body); err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	to, err := models.ParseStatus(body.Status)
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	order, err := oc.Store.Orders.FindOrder(ctx, models.NormalizeID(mux.Vars(r)["id"]))
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	_, entry, err := oc.Reconciler.AdminUpdate(order, actor, to, body.Note)
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	if err := oc.Store.Orders.SetOrderStatus(ctx, order.ID, entry); err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	oc.respondFresh(ctx, w, order.ID, actor)
}

// UpdateOrderPaymentStatus allows admin to update payment status
func (oc *OrderController) UpdateOrderPaymentStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	var body struct {
		PaymentStatus string `json:"paymentStatus"`
	}
	if err := decodeBody(r, &body); err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	status, err := models.ParsePaymentStatus(body.PaymentStatus)
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	order, err := oc.Store.Orders.FindOrder(ctx, models.NormalizeID(mux.Vars(r)["id"]))
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	if err := oc.Store.Orders.SetPaymentStatus(ctx, order.ID, status, oc.now().UTC()); err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	oc.Log.Info("payment status updated", zap.String("order", order.OrderID), zap.String("status", string(status)))
	oc.respondFresh(ctx, w, order.ID, actor)
}

// DeleteOrder hard-deletes an order. The caller must repeat the display code
// in ?confirm= to prove intent.
func (oc *OrderController) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	order, err := oc.Store.Orders.FindOrder(ctx, models.NormalizeID(mux.Vars(r)["id"]))
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	if confirm := strings.TrimSpace(r.URL.Query().Get("confirm")); confirm != order.OrderID {
		utils.WriteError(w, oc.Log, apperr.Validation("confirm", "confirm must equal the order number "+order.OrderID))
		return
	}
	if err := oc.Store.Orders.DeleteOrder(ctx, order.ID); err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	oc.Log.Warn("order deleted", zap.String("order_id", order.OrderID))
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Order deleted"})
}

// respondFresh re-reads the order after a write so the response reflects
// the stored state, including any concurrent write that landed last.
func (oc *OrderController) respondFresh(ctx context.Context, w http.ResponseWriter, id models.ID, actor models.Actor) {
	order, err := oc.Store.Orders.FindOrder(ctx, id)
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	view, err := projectFor(order, actor)
	if err != nil {
		utils.WriteError(w, oc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, OrderResponse{Success: true, Order: view})
}
