// Package checkout sequences address selection, payment selection and order
// submission for one checkout view.
package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"go-marketplace/addressbook"
	"go-marketplace/apperr"
	"go-marketplace/models"
	"go-marketplace/pricing"
)

// State is a checkout step.
type State string

const (
	StateSelectingAddress State = "SelectingAddress"
	StateSelectingPayment State = "SelectingPayment"
	StateSubmitting       State = "Submitting"
	StateConfirmed        State = "Confirmed"
	StateFailed           State = "Failed"
)

var (
	// ErrEmptyCart means there is nothing to check out; the caller leaves
	// checkout entirely.
	ErrEmptyCart = apperr.Validation("cart", "your cart is empty")
	// ErrSubmitInFlight rejects a second submit while one is pending.
	ErrSubmitInFlight = apperr.Conflict("your order is already being placed")
	// ErrCartSyncing rejects a submit while a cart change is unconfirmed.
	ErrCartSyncing = apperr.Conflict("your cart is still being updated, please try again")
	// ErrClosed is returned by every call after Close.
	ErrClosed = errors.New("checkout is closed")
)

// Cart is what checkout needs from the cart store.
type Cart interface {
	Lines() []models.CartLine
	Empty() bool
	// Busy reports whether a cart change is still waiting for the server.
	Busy() bool
	Totals(method models.PaymentMethod, coupon *pricing.Coupon) pricing.Totals
	Clear()
}

// Addresses is what checkout needs from the address book.
type Addresses interface {
	Selected() (models.Address, bool)
	Select(id models.ID) error
	OnChange(fn func(addressbook.Change)) func()
}

// Backend places orders.
type Backend interface {
	CreateOrder(ctx context.Context, req models.OrderRequest) (models.Order, error)
}

// Payment is the selected method and its method specific fields. Card
// fields are held only until the order is placed or checkout closes.
type Payment struct {
	Method models.PaymentMethod
	UPIApp string
	UPIID  string
	Card   *models.CardDetails
}

func (p Payment) validate() error {
	method, err := models.ParsePaymentMethod(string(p.Method))
	if err != nil {
		return err
	}
	switch method {
	case models.PaymentUPI:
		if p.UPIApp == "" && !models.ValidUPIID(p.UPIID) {
			return apperr.Validation("upiId", "invalid UPI ID")
		}
	case models.PaymentCard:
		if p.Card == nil {
			return apperr.Validation("card", "card details are required")
		}
		return models.Validate(*p.Card)
	}
	return nil
}

// Transition is one entry of the machine's history.
type Transition struct {
	From   State
	To     State
	Reason string
	At     time.Time
}

// Machine is one checkout session. All methods are safe for concurrent use.
type Machine struct {
	cart    Cart
	book    Addresses
	backend Backend
	coupons pricing.Coupons
	log     *zap.Logger
	now     func() time.Time

	mu          sync.Mutex
	state       State
	payment     Payment
	coupon      *pricing.Coupon
	order       *models.Order
	lastErr     error
	submitting  bool
	closed      bool
	history     []Transition
	unsubscribe func()
}

// Start enters checkout. An empty cart returns ErrEmptyCart and no machine.
func Start(cart Cart, book Addresses, backend Backend, coupons pricing.Coupons, log *zap.Logger) (*Machine, error) {
	if cart.Empty() {
		return nil, ErrEmptyCart
	}
	if log == nil {
		log = zap.NewNop()
	}
	m := &Machine{
		cart:    cart,
		book:    book,
		backend: backend,
		coupons: coupons,
		log:     log,
		now:     time.Now,
		state:   StateSelectingAddress,
	}
	m.unsubscribe = book.OnChange(m.addressChanged)
	return m, nil
}

// addressChanged sends the machine back to address selection when the
// selected address goes away before submission.
func (m *Machine) addressChanged(c addressbook.Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Selected == nil && m.state == StateSelectingPayment && !m.closed {
		m.transition(StateSelectingAddress, "selected address removed")
	}
}

// caller holds mu.
func (m *Machine) transition(to State, reason string) {
	from := m.state
	m.state = to
	m.history = append(m.history, Transition{From: from, To: to, Reason: reason, At: m.now()})
	m.log.Info("checkout transition", zap.String("from", string(from)), zap.String("to", string(to)), zap.String("reason", reason))
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// History returns every transition so far, oldest first.
func (m *Machine) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transition{}, m.history...)
}

// Order returns the placed order once Confirmed.
func (m *Machine) Order() (models.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.order == nil {
		return models.Order{}, false
	}
	return *m.order, true
}

// Err returns the error of the last failed submission.
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Payment returns the current selection. Card details print masked.
func (m *Machine) Payment() Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payment
}

func (m *Machine) editable() error {
	if m.closed {
		return ErrClosed
	}
	if m.submitting {
		return ErrSubmitInFlight
	}
	if m.state == StateConfirmed {
		return apperr.Conflict("order already placed")
	}
	return nil
}

// SelectAddress commits the address and moves on to payment.
func (m *Machine) SelectAddress(id models.ID) error {
	m.mu.Lock()
	err := m.editable()
	m.mu.Unlock()
	if err != nil {
		return err
	}

	// Select notifies observers, this machine included; mu must not be held.
	if err := m.book.Select(id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.editable(); err != nil {
		return err
	}
	if m.state != StateSelectingPayment {
		m.transition(StateSelectingPayment, "address selected")
	}
	return nil
}

// ChangeAddress goes back to address selection.
func (m *Machine) ChangeAddress() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.editable(); err != nil {
		return err
	}
	if m.state == StateSelectingPayment {
		m.transition(StateSelectingAddress, "change address")
	}
	return nil
}

// SelectPayment validates and stores the payment selection. An invalid
// selection is rejected and the previous one kept.
func (m *Machine) SelectPayment(p Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.editable(); err != nil {
		return err
	}
	if m.state != StateSelectingPayment {
		return apperr.Validation("address", "select a delivery address first")
	}
	if err := p.validate(); err != nil {
		return err
	}
	p.Method, _ = models.ParsePaymentMethod(string(p.Method))
	m.payment = p
	return nil
}

// ApplyCoupon resolves code; an invalid code leaves the current coupon in
// place.
func (m *Machine) ApplyCoupon(code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.editable(); err != nil {
		return err
	}
	c, err := m.coupons.Resolve(code)
	if err != nil {
		return err
	}
	m.coupon = &c
	return nil
}

func (m *Machine) RemoveCoupon() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editable() == nil {
		m.coupon = nil
	}
}

// Totals prices the cart with the current payment method and coupon.
func (m *Machine) Totals() pricing.Totals {
	m.mu.Lock()
	method, coupon := m.payment.Method, m.coupon
	m.mu.Unlock()
	return m.cart.Totals(method, coupon)
}

// Submit places the order. Only one submission runs at a time. The request
// is not cancelled with ctx, and its outcome is applied even if the view was
// closed meanwhile. On failure the machine returns to payment selection with
// the address kept and the cart untouched.
func (m *Machine) Submit(ctx context.Context) (models.Order, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return models.Order{}, ErrClosed
	}
	if m.submitting {
		m.mu.Unlock()
		return models.Order{}, ErrSubmitInFlight
	}
	req, err := m.guard()
	if err != nil {
		m.mu.Unlock()
		return models.Order{}, err
	}
	m.submitting = true
	m.transition(StateSubmitting, "submit")
	m.mu.Unlock()

	order, err := m.backend.CreateOrder(context.WithoutCancel(ctx), req)

	m.mu.Lock()
	m.submitting = false
	if err != nil {
		m.lastErr = err
		if m.closed {
			m.payment.Card = nil
		}
		m.transition(StateFailed, apperr.MessageOf(err))
		m.transition(StateSelectingPayment, "retry")
		m.mu.Unlock()
		return models.Order{}, err
	}
	m.order = &order
	m.lastErr = nil
	m.payment.Card = nil
	m.transition(StateConfirmed, order.OrderID)
	m.mu.Unlock()

	m.cart.Clear()
	return order, nil
}

// guard checks every precondition of Submitting and builds the request.
// Caller holds mu.
func (m *Machine) guard() (models.OrderRequest, error) {
	if m.state != StateSelectingPayment {
		return models.OrderRequest{}, apperr.Validation("state", "checkout is not ready to submit")
	}
	if m.cart.Busy() {
		return models.OrderRequest{}, ErrCartSyncing
	}
	lines := m.cart.Lines()
	if len(lines) == 0 {
		return models.OrderRequest{}, ErrEmptyCart
	}
	addr, ok := m.book.Selected()
	if !ok {
		m.transition(StateSelectingAddress, "no address selected")
		return models.OrderRequest{}, apperr.Validation("address", "select a delivery address")
	}
	if m.payment.Method == "" {
		return models.OrderRequest{}, apperr.Validation("paymentMethod", "select a payment method")
	}
	if err := m.payment.validate(); err != nil {
		return models.OrderRequest{}, err
	}

	totals := m.cart.Totals(m.payment.Method, m.coupon)
	req := models.OrderRequest{
		TotalAmount:     totals.Subtotal,
		DeliveryCharges: totals.DeliveryCharges,
		CodCharges:      totals.CODSurcharge,
		FinalAmount:     totals.FinalAmount,
		ShippingAddress: addr.Snapshot(),
		PaymentMethod:   m.payment.Method,
		PaymentDetails: models.PaymentDetails{
			UPIApp: m.payment.UPIApp,
			UPIID:  m.payment.UPIID,
			Card:   m.payment.Card,
		},
		CouponCode:     totals.CouponCode,
		CouponDiscount: totals.CouponDiscount,
	}
	for _, l := range lines {
		req.Products = append(req.Products, models.OrderLineRequest{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.UnitPrice,
			Size:      l.Size,
			Color:     l.VariantColor,
		})
	}
	return req, nil
}

// Close ends the view. Later calls fail with ErrClosed; a submission already
// in flight still completes and is applied.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if !m.submitting {
		m.payment.Card = nil
	}
	unsubscribe := m.unsubscribe
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
