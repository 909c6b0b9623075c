// Package repository holds the persistence ports of the system of record and
// their MongoDB and in-memory implementations.
package repository

import (
	"context"
	"time"

	"go-marketplace/models"
)

// ProductCatalog resolves catalogue records. Catalogue management lives
// elsewhere; this side only reads.
type ProductCatalog interface {
	FindProduct(ctx context.Context, id models.ID) (models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
}

// CartRepository stores one cart per user.
type CartRepository interface {
	// GetCart returns the user's cart, or an empty cart if none is stored.
	GetCart(ctx context.Context, userID models.ID) (models.Cart, error)
	// UpdateCart applies fn to the stored cart and saves the result. Writes
	// from concurrent requests never overwrite each other: fn is re-run on the
	// fresh cart if another write landed first. An error from fn aborts
	// without saving.
	UpdateCart(ctx context.Context, userID models.ID, fn func(*models.Cart) error) (models.Cart, error)
	ClearCart(ctx context.Context, userID models.ID) error
}

// AddressRepository stores a user's address book. Every method returns the
// full list after the change. The default is a single pointer on the book,
// so at most one address can ever be flagged default.
type AddressRepository interface {
	ListAddresses(ctx context.Context, userID models.ID) ([]models.Address, error)
	AddAddress(ctx context.Context, userID models.ID, a models.Address, makeDefault bool) ([]models.Address, error)
	UpdateAddress(ctx context.Context, userID models.ID, a models.Address) ([]models.Address, error)
	DeleteAddress(ctx context.Context, userID, addressID models.ID) ([]models.Address, error)
	SetDefault(ctx context.Context, userID, addressID models.ID) ([]models.Address, error)
}

// OrderQuery selects orders by owner. Zero fields match everything.
type OrderQuery struct {
	UserID   models.ID
	SellerID models.ID
}

// OrderRepository stores placed orders. Status writes are last-write-wins.
// Only FindOrder resolves display codes; every write takes the storage id.
type OrderRepository interface {
	InsertOrder(ctx context.Context, o models.Order) error
	// FindOrder accepts either the storage id or the display code.
	FindOrder(ctx context.Context, id models.ID) (models.Order, error)
	ListOrders(ctx context.Context, q OrderQuery) ([]models.Order, error)
	// SetLineStatus updates every line of productID owned by sellerID. The
	// ownership check is part of the write: a seller who does not own the
	// product gets Forbidden and nothing changes.
	SetLineStatus(ctx context.Context, orderID, productID, sellerID models.ID, status models.Status, at time.Time) error
	// SetOrderStatus sets the aggregate status and appends entry to the audit trail.
	SetOrderStatus(ctx context.Context, orderID models.ID, entry models.StatusEntry) error
	SetPaymentStatus(ctx context.Context, orderID models.ID, status models.PaymentStatus, at time.Time) error
	DeleteOrder(ctx context.Context, orderID models.ID) error
}

// Store bundles the repositories the handlers need.
type Store struct {
	Products  ProductCatalog
	Carts     CartRepository
	Addresses AddressRepository
	Orders    OrderRepository
}
