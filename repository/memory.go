package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-marketplace/apperr"
	"go-marketplace/models"
)

// NewMemoryStore returns a Store backed by process memory. It mirrors the
// Mongo semantics and is used by tests and STORE=memory.
func NewMemoryStore(products ...models.Product) *Store {
	catalog := &MemoryCatalog{products: make(map[models.ID]models.Product)}
	for _, p := range products {
		catalog.products[p.ID] = p
	}
	return &Store{
		Products:  catalog,
		Carts:     &MemoryCarts{carts: make(map[models.ID]models.Cart)},
		Addresses: &MemoryAddresses{books: make(map[models.ID]*addressBook)},
		Orders:    &MemoryOrders{orders: make(map[models.ID]models.Order)},
	}
}

type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[models.ID]models.Product
}

// Put inserts or replaces a product.
func (m *MemoryCatalog) Put(p models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *MemoryCatalog) FindProduct(_ context.Context, id models.ID) (models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return models.Product{}, apperr.NotFound("product not found")
	}
	return p, nil
}

func (m *MemoryCatalog) ListProducts(_ context.Context) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type MemoryCarts struct {
	mu    sync.Mutex
	carts map[models.ID]models.Cart
}

func (m *MemoryCarts) GetCart(_ context.Context, userID models.ID) (models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return models.Cart{UserID: userID, Products: []models.CartLine{}}, nil
	}
	c.Products = append([]models.CartLine{}, c.Products...)
	return c, nil
}

func (m *MemoryCarts) UpdateCart(_ context.Context, userID models.ID, fn func(*models.Cart) error) (models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		c = models.Cart{UserID: userID}
	}
	c.Products = append([]models.CartLine{}, c.Products...)
	if err := fn(&c); err != nil {
		return models.Cart{}, err
	}
	c.Version++
	m.carts[userID] = c
	c.Products = append([]models.CartLine{}, c.Products...)
	return c, nil
}

func (m *MemoryCarts) ClearCart(_ context.Context, userID models.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

type addressBook struct {
	defaultID models.ID
	addresses []models.Address
}

func (b *addressBook) list() []models.Address {
	out := make([]models.Address, len(b.addresses))
	for i, a := range b.addresses {
		a.IsDefault = a.ID == b.defaultID
		out[i] = a
	}
	return out
}

func (b *addressBook) find(id models.ID) int {
	for i, a := range b.addresses {
		if a.ID == id {
			return i
		}
	}
	return -1
}

type MemoryAddresses struct {
	mu    sync.Mutex
	books map[models.ID]*addressBook
}

func (m *MemoryAddresses) book(userID models.ID) *addressBook {
	b, ok := m.books[userID]
	if !ok {
		b = &addressBook{}
		m.books[userID] = b
	}
	return b
}

func (m *MemoryAddresses) ListAddresses(_ context.Context, userID models.ID) ([]models.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.book(userID).list(), nil
}

func (m *MemoryAddresses) AddAddress(_ context.Context, userID models.ID, a models.Address, makeDefault bool) ([]models.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.book(userID)
	b.addresses = append(b.addresses, a)
	if makeDefault || b.defaultID == "" {
		b.defaultID = a.ID
	}
	return b.list(), nil
}

func (m *MemoryAddresses) UpdateAddress(_ context.Context, userID models.ID, a models.Address) ([]models.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.book(userID)
	i := b.find(a.ID)
	if i < 0 {
		return nil, apperr.NotFound("address not found")
	}
	a.CreatedAt = b.addresses[i].CreatedAt
	b.addresses[i] = a
	return b.list(), nil
}

func (m *MemoryAddresses) DeleteAddress(_ context.Context, userID, addressID models.ID) ([]models.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.book(userID)
	i := b.find(addressID)
	if i < 0 {
		return nil, apperr.NotFound("address not found")
	}
	b.addresses = append(b.addresses[:i], b.addresses[i+1:]...)
	if b.defaultID == addressID {
		b.defaultID = ""
		if n := len(b.addresses); n > 0 {
			b.defaultID = b.addresses[n-1].ID
		}
	}
	return b.list(), nil
}

func (m *MemoryAddresses) SetDefault(_ context.Context, userID, addressID models.ID) ([]models.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.book(userID)
	if b.find(addressID) < 0 {
		return nil, apperr.NotFound("address not found")
	}
	b.defaultID = addressID
	return b.list(), nil
}

type MemoryOrders struct {
	mu     sync.RWMutex
	orders map[models.ID]models.Order
}

func (m *MemoryOrders) lookup(id models.ID) (models.Order, bool) {
	if o, ok := m.orders[id]; ok {
		return o, true
	}
	for _, o := range m.orders {
		if models.ID(o.OrderID) == id {
			return o, true
		}
	}
	return models.Order{}, false
}

// byID matches the storage id only, like the Mongo write filters.
func (m *MemoryOrders) byID(id models.ID) (models.Order, bool) {
	o, ok := m.orders[id]
	return o, ok
}

func (m *MemoryOrders) InsertOrder(_ context.Context, o models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return apperr.Conflict("order already exists")
	}
	m.orders[o.ID] = o.Clone()
	return nil
}

func (m *MemoryOrders) FindOrder(_ context.Context, id models.ID) (models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.lookup(id)
	if !ok {
		return models.Order{}, apperr.NotFound("order not found")
	}
	return o.Clone(), nil
}

func (m *MemoryOrders) ListOrders(_ context.Context, q OrderQuery) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Order
	for _, o := range m.orders {
		if q.UserID != "" && o.UserID != q.UserID {
			continue
		}
		if q.SellerID != "" && !o.HasSeller(q.SellerID) {
			continue
		}
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryOrders) SetLineStatus(_ context.Context, orderID, productID, sellerID models.ID, status models.Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID(orderID)
	if !ok {
		return apperr.NotFound("order not found")
	}
	idx := o.LinesFor(productID)
	if len(idx) == 0 {
		return apperr.NotFound("product is not part of this order")
	}
	for _, i := range idx {
		if o.Products[i].SellerID != sellerID {
			return apperr.Forbidden("you do not sell this product in this order")
		}
	}
	o = o.Clone()
	for _, i := range idx {
		o.Products[i].ProductStatus = status
	}
	o.UpdatedAt = at
	m.orders[o.ID] = o
	return nil
}

func (m *MemoryOrders) SetOrderStatus(_ context.Context, orderID models.ID, entry models.StatusEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID(orderID)
	if !ok {
		return apperr.NotFound("order not found")
	}
	o = o.Clone()
	o.OrderStatus = entry.Status
	o.StatusHistory = append(o.StatusHistory, entry)
	o.UpdatedAt = entry.At
	m.orders[o.ID] = o
	return nil
}

func (m *MemoryOrders) SetPaymentStatus(_ context.Context, orderID models.ID, status models.PaymentStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID(orderID)
	if !ok {
		return apperr.NotFound("order not found")
	}
	o = o.Clone()
	o.PaymentStatus = status
	o.UpdatedAt = at
	m.orders[o.ID] = o
	return nil
}

func (m *MemoryOrders) DeleteOrder(_ context.Context, orderID models.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID(orderID)
	if !ok {
		return apperr.NotFound("order not found")
	}
	delete(m.orders, o.ID)
	return nil
}
