package models

import (
	"fmt"
	"time"

	"go-marketplace/apperr"
)

// Quantity bounds for a single cart line.
const (
	MinQuantity = 1
	MaxQuantity = 10
)

// LineKey uniquely identifies a cart line.
type LineKey struct {
	ProductID ID
	Size      string
	Color     string
}

func (k LineKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ProductID, k.Size, k.Color)
}

// ValidateQuantity rejects quantities outside [MinQuantity, MaxQuantity].
func ValidateQuantity(qty int) error {
	if qty < MinQuantity || qty > MaxQuantity {
		return apperr.Validation("quantity", fmt.Sprintf("quantity must be between %d and %d", MinQuantity, MaxQuantity))
	}
	return nil
}

// CartLine represents one product/size/color entry in a cart
type CartLine struct {
	ProductID    ID     `bson:"product_id" json:"productId"`
	Title        string `bson:"title" json:"title,omitempty"`
	VariantColor string `bson:"color" json:"color"`
	Size         string `bson:"size" json:"size"`
	Quantity     int    `bson:"quantity" json:"quantity"`
	UnitPrice    Money  `bson:"price" json:"price"`
	UnitMrp      Money  `bson:"mrp" json:"mrp"`
}

// Key returns the line's identity within a cart.
func (l CartLine) Key() LineKey {
	return LineKey{ProductID: l.ProductID, Size: l.Size, Color: l.VariantColor}
}

// Cart represents a user's shopping cart
type Cart struct {
	UserID    ID         `bson:"_id" json:"userId"`
	Products  []CartLine `bson:"products" json:"products"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updatedAt"`
	// Version increments on every write and guards concurrent updates.
	Version int64 `bson:"version" json:"-"`
}

// Find returns the index of the line with key, or -1.
func (c *Cart) Find(key LineKey) int {
	for i, l := range c.Products {
		if l.Key() == key {
			return i
		}
	}
	return -1
}

// CartAction discriminates the mutation carried by POST /cart.
type CartAction string

const (
	CartActionAdd    CartAction = "add"
	CartActionUpdate CartAction = "update"
	CartActionRemove CartAction = "remove"
)

// CartMutation is the body of POST /cart.
type CartMutation struct {
	Action    CartAction `json:"action"`
	ProductID ID         `json:"productId"`
	Size      string     `json:"size"`
	Color     string     `json:"color"`
	Quantity  int        `json:"quantity,omitempty"`
}

func (m CartMutation) Key() LineKey {
	return LineKey{ProductID: m.ProductID, Size: m.Size, Color: m.Color}
}
