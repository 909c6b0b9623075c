// Package addressbook keeps the session's saved addresses and the one
// selected for checkout. Every change is a blocking round trip; the local
// list is only ever replaced by the full list the server returns.
package addressbook

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"go-marketplace/apperr"
	"go-marketplace/models"
)

// Backend is the address half of the REST API. Every call returns the full
// list after the change.
type Backend interface {
	ListAddresses(ctx context.Context, userID models.ID) ([]models.Address, error)
	AddAddress(ctx context.Context, userID models.ID, a models.Address, makeDefault bool) ([]models.Address, error)
	UpdateAddress(ctx context.Context, userID models.ID, a models.Address, makeDefault bool) ([]models.Address, error)
	DeleteAddress(ctx context.Context, userID, addressID models.ID) ([]models.Address, error)
	SetDefaultAddress(ctx context.Context, userID, addressID models.ID) ([]models.Address, error)
}

// Change is sent to observers after the list or the selection changed.
type Change struct {
	Addresses []models.Address
	// Selected is nil when nothing is selected.
	Selected *models.Address
	// SelectionLost is set when the selected address disappeared from the
	// list, e.g. because it was deleted.
	SelectionLost bool
}

// Book is one user's address book.
type Book struct {
	backend Backend
	userID  models.ID
	log     *zap.Logger

	mu         sync.Mutex
	addresses  []models.Address
	selectedID models.ID
	nextObs    int
	observers  map[int]func(Change)
}

func New(backend Backend, userID models.ID, log *zap.Logger) *Book {
	if log == nil {
		log = zap.NewNop()
	}
	return &Book{backend: backend, userID: userID, log: log, observers: make(map[int]func(Change))}
}

// Load fetches the list. With nothing selected yet, the default address is
// selected.
func (b *Book) Load(ctx context.Context) error {
	list, err := b.backend.ListAddresses(ctx, b.userID)
	if err != nil {
		return err
	}
	b.replace(list, true)
	return nil
}

// Add validates a locally and saves it.
func (b *Book) Add(ctx context.Context, a models.Address, makeDefault bool) error {
	if err := models.Validate(a); err != nil {
		return err
	}
	list, err := b.backend.AddAddress(ctx, b.userID, a, makeDefault)
	if err != nil {
		return err
	}
	b.replace(list, true)
	return nil
}

// Edit validates a locally and saves it under a.ID.
func (b *Book) Edit(ctx context.Context, a models.Address, makeDefault bool) error {
	if a.ID.IsZero() {
		return apperr.Validation("id", "address id is required")
	}
	if err := models.Validate(a); err != nil {
		return err
	}
	list, err := b.backend.UpdateAddress(ctx, b.userID, a, makeDefault)
	if err != nil {
		return err
	}
	b.replace(list, false)
	return nil
}

// Delete removes an address. Deleting the selected address clears the
// selection, even when other addresses remain.
func (b *Book) Delete(ctx context.Context, id models.ID) error {
	list, err := b.backend.DeleteAddress(ctx, b.userID, id)
	if err != nil {
		return err
	}
	b.replace(list, false)
	return nil
}

// SetDefault asks the server to make id the default and adopts the list it
// returns; other defaults are never unset locally.
func (b *Book) SetDefault(ctx context.Context, id models.ID) error {
	list, err := b.backend.SetDefaultAddress(ctx, b.userID, id)
	if err != nil {
		return err
	}
	b.replace(list, false)
	return nil
}

// Select picks the address checkout ships to.
func (b *Book) Select(id models.ID) error {
	b.mu.Lock()
	if indexOf(b.addresses, id) < 0 {
		b.mu.Unlock()
		return apperr.NotFound("address not found")
	}
	b.selectedID = id
	change, observers := b.changeLocked(false)
	b.mu.Unlock()
	notify(observers, change)
	return nil
}

// Selected returns the selected address, if any.
func (b *Book) Selected() (models.Address, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := indexOf(b.addresses, b.selectedID); i >= 0 && !b.selectedID.IsZero() {
		return b.addresses[i], true
	}
	return models.Address{}, false
}

// Addresses returns a copy of the list.
func (b *Book) Addresses() []models.Address {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Address{}, b.addresses...)
}

// OnChange registers fn and returns its unsubscribe.
func (b *Book) OnChange(fn func(Change)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextObs
	b.nextObs++
	b.observers[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.observers, id)
		b.mu.Unlock()
	}
}

// replace adopts the server list and re-resolves the selection by id.
func (b *Book) replace(list []models.Address, selectDefault bool) {
	b.mu.Lock()
	b.addresses = append([]models.Address{}, list...)
	lost := false
	if !b.selectedID.IsZero() && indexOf(b.addresses, b.selectedID) < 0 {
		b.log.Info("selected address no longer exists", zap.String("address_id", b.selectedID.String()))
		b.selectedID = ""
		lost = true
	}
	if b.selectedID.IsZero() && selectDefault && !lost {
		if d, ok := models.DefaultAddress(b.addresses); ok {
			b.selectedID = d.ID
		}
	}
	change, observers := b.changeLocked(lost)
	b.mu.Unlock()
	notify(observers, change)
}

func (b *Book) changeLocked(lost bool) (Change, []func(Change)) {
	c := Change{Addresses: append([]models.Address{}, b.addresses...), SelectionLost: lost}
	if i := indexOf(b.addresses, b.selectedID); i >= 0 && !b.selectedID.IsZero() {
		sel := b.addresses[i]
		c.Selected = &sel
	}
	observers := make([]func(Change), 0, len(b.observers))
	for _, fn := range b.observers {
		observers = append(observers, fn)
	}
	return c, observers
}

func notify(observers []func(Change), c Change) {
	for _, fn := range observers {
		fn(c)
	}
}

func indexOf(list []models.Address, id models.ID) int {
	for i, a := range list {
		if a.ID == id {
			return i
		}
	}
	return -1
}
