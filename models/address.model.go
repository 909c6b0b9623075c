package models

import "time"

// AddressLabel tags an address for display.
type AddressLabel string

const (
	LabelHome  AddressLabel = "home"
	LabelWork  AddressLabel = "work"
	LabelOther AddressLabel = "other"
)

// Address represents a customer's saved shipping address
type Address struct {
	ID          ID           `bson:"_id" json:"id"`
	Label       AddressLabel `bson:"label" json:"label" validate:"required,oneof=home work other"`
	AddressText string       `bson:"address" json:"address" validate:"required"`
	City        string       `bson:"city" json:"city" validate:"required"`
	State       string       `bson:"state" json:"state" validate:"required"`
	Pincode     string       `bson:"pincode" json:"pincode" validate:"required,number,len=6"`
	Mobile      string       `bson:"mobile" json:"mobile" validate:"required,number,len=10"`
	IsDefault   bool         `bson:"-" json:"isDefault"`
	CreatedAt   time.Time    `bson:"created_at" json:"createdAt"`
}

// ShippingAddress is the frozen copy of an Address embedded in an Order.
type ShippingAddress struct {
	Label       AddressLabel `bson:"label" json:"label" validate:"omitempty,oneof=home work other"`
	AddressText string       `bson:"address" json:"address" validate:"required"`
	City        string       `bson:"city" json:"city" validate:"required"`
	State       string       `bson:"state" json:"state" validate:"required"`
	Pincode     string       `bson:"pincode" json:"pincode" validate:"required,number,len=6"`
	Mobile      string       `bson:"mobile" json:"mobile" validate:"required,number,len=10"`
}

// Snapshot copies the address by value.
func (a Address) Snapshot() ShippingAddress {
	return ShippingAddress{
		Label:       a.Label,
		AddressText: a.AddressText,
		City:        a.City,
		State:       a.State,
		Pincode:     a.Pincode,
		Mobile:      a.Mobile,
	}
}

// DefaultAddress returns the address flagged default, if any.
func DefaultAddress(list []Address) (Address, bool) {
	for _, a := range list {
		if a.IsDefault {
			return a, true
		}
	}
	return Address{}, false
}
