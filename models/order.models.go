package models

import (
	"fmt"
	"strings"
	"time"

	"go-marketplace/apperr"
)

// Status is shared by the aggregate order status and each line item status.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

// Statuses lists every status in fulfilment order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}

// ParseStatus maps a case-insensitive status string onto a Status.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, nil
	case "confirmed":
		return StatusConfirmed, nil
	case "shipped":
		return StatusShipped, nil
	case "delivered":
		return StatusDelivered, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	default:
		return "", apperr.Validation("status", fmt.Sprintf("invalid status %q", s))
	}
}

func (s Status) String() string {
	return string(s)
}

// PaymentStatus tracks settlement of an order. Gateway settlement itself is
// external; only the recorded value lives here.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
	PaymentFailed    PaymentStatus = "Failed"
	PaymentRefunded  PaymentStatus = "Refunded"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return PaymentPending, nil
	case "completed":
		return PaymentCompleted, nil
	case "failed":
		return PaymentFailed, nil
	case "refunded":
		return PaymentRefunded, nil
	default:
		return "", apperr.Validation("paymentStatus", fmt.Sprintf("invalid payment status %q", s))
	}
}

// PaymentMethod is the method selected at checkout.
type PaymentMethod string

const (
	PaymentCOD        PaymentMethod = "COD"
	PaymentUPI        PaymentMethod = "UPI"
	PaymentCard       PaymentMethod = "Card"
	PaymentNetBanking PaymentMethod = "NetBanking"
	PaymentWallet     PaymentMethod = "Wallet"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cod":
		return PaymentCOD, nil
	case "upi":
		return PaymentUPI, nil
	case "card":
		return PaymentCard, nil
	case "netbanking":
		return PaymentNetBanking, nil
	case "wallet":
		return PaymentWallet, nil
	default:
		return "", apperr.Validation("paymentMethod", fmt.Sprintf("invalid payment method %q", s))
	}
}

// LineItem is one seller-owned entry of a placed order.
type LineItem struct {
	ProductID     ID     `bson:"product_id" json:"productId"`
	SellerID      ID     `bson:"seller_id" json:"sellerId"`
	Title         string `bson:"title" json:"title"`
	Price         Money  `bson:"price" json:"price"`
	Quantity      int    `bson:"quantity" json:"quantity"`
	Size          string `bson:"size" json:"size"`
	Color         string `bson:"color" json:"color"`
	ProductStatus Status `bson:"product_status" json:"productStatus"`
}

// StatusEntry is one audit record of an aggregate status change.
type StatusEntry struct {
	Status Status    `bson:"status" json:"status"`
	Note   string    `bson:"note,omitempty" json:"note,omitempty"`
	Actor  ID        `bson:"actor" json:"actor"`
	Role   Role      `bson:"role" json:"role"`
	At     time.Time `bson:"at" json:"at"`
}

// Order represents a placed order
type Order struct {
	ID              ID              `bson:"_id" json:"id"`
	OrderID         string          `bson:"order_id" json:"orderId"`
	UserID          ID              `bson:"user_id" json:"userId"`
	Products        []LineItem      `bson:"products" json:"products"`
	ShippingAddress ShippingAddress `bson:"shipping_address" json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `bson:"payment_method" json:"paymentMethod"`
	PaymentStatus   PaymentStatus   `bson:"payment_status" json:"paymentStatus"`
	OrderStatus     Status          `bson:"order_status" json:"orderStatus"`
	TotalAmount     Money           `bson:"total_amount" json:"totalAmount"`
	DeliveryCharges Money           `bson:"delivery_charges" json:"deliveryCharges"`
	CodCharges      Money           `bson:"cod_charges" json:"codCharges"`
	CouponCode      string          `bson:"coupon_code,omitempty" json:"couponCode,omitempty"`
	CouponDiscount  Money           `bson:"coupon_discount" json:"couponDiscount"`
	FinalAmount     Money           `bson:"final_amount" json:"finalAmount"`
	StatusHistory   []StatusEntry   `bson:"status_history" json:"statusHistory"`
	CreatedAt       time.Time       `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `bson:"updated_at" json:"updatedAt"`
}

// HasSeller reports whether seller owns at least one line of the order.
func (o Order) HasSeller(seller ID) bool {
	for _, li := range o.Products {
		if li.SellerID == seller {
			return true
		}
	}
	return false
}

// LinesFor returns the indexes of every line for productID.
func (o Order) LinesFor(productID ID) []int {
	var idx []int
	for i, li := range o.Products {
		if li.ProductID == productID {
			idx = append(idx, i)
		}
	}
	return idx
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (o Order) Clone() Order {
	c := o
	c.Products = append([]LineItem(nil), o.Products...)
	c.StatusHistory = append([]StatusEntry(nil), o.StatusHistory...)
	return c
}

// OrderLineRequest is one line of an order-creation request.
type OrderLineRequest struct {
	ProductID ID     `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1,max=10"`
	Price     Money  `json:"price"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// CardDetails are forwarded with the order request and never persisted.
type CardDetails struct {
	Number string `json:"number" validate:"required,number,min=12,max=19"`
	Holder string `json:"holder" validate:"required"`
	Expiry string `json:"expiry" validate:"required"`
	CVV    string `json:"cvv" validate:"required,number,min=3,max=4"`
}

// String never reveals more than the last four digits.
func (c CardDetails) String() string {
	return MaskCardNumber(c.Number)
}

// GoString keeps %#v from printing the raw fields.
func (c CardDetails) GoString() string {
	return c.String()
}

// MaskCardNumber renders a card number for display as "•••• 4242".
func MaskCardNumber(number string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) <= 4 {
		return "••••"
	}
	return "•••• " + digits[len(digits)-4:]
}

// PaymentDetails carries method specific fields of the order request.
type PaymentDetails struct {
	UPIApp string       `json:"upiApp,omitempty"`
	UPIID  string       `json:"upiId,omitempty"`
	Card   *CardDetails `json:"card,omitempty"`
}

// OrderRequest is the body of POST /orders.
type OrderRequest struct {
	Products        []OrderLineRequest `json:"products" validate:"required,min=1,dive"`
	TotalAmount     Money              `json:"totalAmount"`
	DeliveryCharges Money              `json:"deliveryCharges"`
	CodCharges      Money              `json:"codCharges"`
	FinalAmount     Money              `json:"finalAmount"`
	ShippingAddress ShippingAddress    `json:"shippingAddress"`
	PaymentMethod   PaymentMethod      `json:"paymentMethod" validate:"required"`
	PaymentDetails  PaymentDetails     `json:"paymentDetails"`
	CouponCode      string             `json:"couponCode,omitempty"`
	CouponDiscount  Money              `json:"couponDiscount"`
}
