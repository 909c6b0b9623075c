// Package cartstore is the session's authoritative in-memory cart. Every
// mutation is applied locally first and then confirmed with the server; a
// rejected mutation is undone from its captured pre-image, never by
// refetching.
package cartstore

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"go-marketplace/apiclient"
	"go-marketplace/apperr"
	"go-marketplace/models"
	"go-marketplace/pricing"
)

// Backend is the cart half of the REST API.
type Backend interface {
	GetCart(ctx context.Context) (apiclient.CartSnapshot, error)
	MutateCart(ctx context.Context, m models.CartMutation) (apiclient.CartSnapshot, error)
}

// Notice tells observers a mutation was rolled back.
type Notice struct {
	Action models.CartAction
	Key    models.LineKey
	Err    error
}

// Message is the user-facing text of the notice.
func (n Notice) Message() string {
	return apperr.MessageOf(n.Err)
}

// Store holds one session's cart. The zero value is not usable; build one
// with New and call Init on session start.
type Store struct {
	backend Backend
	pricing pricing.Config
	log     *zap.Logger
	lanes   *lanes

	mu         sync.Mutex
	lines      []models.CartLine
	generation uint64
	nextObs    int
	observers  map[int]func(Notice)
}

func New(backend Backend, cfg pricing.Config, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		backend:   backend,
		pricing:   cfg,
		log:       log,
		lanes:     newLanes(),
		observers: make(map[int]func(Notice)),
	}
}

// Init replaces the local cart with the server's. Responses to mutations
// started before Init are ignored.
func (s *Store) Init(ctx context.Context) error {
	snap, err := s.backend.GetCart(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.generation++
	s.lines = append([]models.CartLine{}, snap.Lines...)
	s.mu.Unlock()
	return nil
}

// Clear empties the local cart without a request, on logout or after the
// server cleared it for a placed order. In-flight responses are ignored.
func (s *Store) Clear() {
	s.mu.Lock()
	s.generation++
	s.lines = nil
	s.mu.Unlock()
}

// Lines returns a copy of the cart in display order.
func (s *Store) Lines() []models.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CartLine{}, s.lines...)
}

func (s *Store) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}

// Line returns the line for key, if present.
func (s *Store) Line(key models.LineKey) (models.CartLine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.lines, key); i >= 0 {
		return s.lines[i], true
	}
	return models.CartLine{}, false
}

// Pending reports whether a mutation on key is in flight or queued.
func (s *Store) Pending(key models.LineKey) bool {
	return s.lanes.busy(key)
}

// Busy reports whether any mutation is still waiting for the server. Lines
// are not server-approved until it returns false.
func (s *Store) Busy() bool {
	return s.lanes.anyBusy()
}

// Totals prices the current lines.
func (s *Store) Totals(method models.PaymentMethod, coupon *pricing.Coupon) pricing.Totals {
	return pricing.Compute(s.Lines(), s.pricing, pricing.Options{PaymentMethod: method, Coupon: coupon})
}

// OnNotice registers fn for rollback notices and returns its unsubscribe.
func (s *Store) OnNotice(fn func(Notice)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Add puts line into the cart, or raises the quantity of the existing line
// with the same key by line.Quantity (1 if unset).
func (s *Store) Add(ctx context.Context, line models.CartLine) error {
	key := line.Key()
	if key.ProductID.IsZero() {
		return apperr.Validation("productId", "productId is required")
	}
	qty := line.Quantity
	if qty == 0 {
		qty = 1
	}
	if err := models.ValidateQuantity(qty); err != nil {
		return err
	}

	return s.mutate(ctx, key, models.CartMutation{
		Action: models.CartActionAdd, ProductID: key.ProductID, Size: key.Size, Color: key.Color, Quantity: qty,
	}, func(lines []models.CartLine, i int) ([]models.CartLine, error) {
		if i < 0 {
			line.Quantity = qty
			return append(lines, line), nil
		}
		next := lines[i].Quantity + qty
		if err := models.ValidateQuantity(next); err != nil {
			return nil, err
		}
		lines[i].Quantity = next
		return lines, nil
	})
}

// UpdateQuantity sets the quantity of an existing line. Quantities outside
// [1,10] fail without touching the cart or the network.
func (s *Store) UpdateQuantity(ctx context.Context, key models.LineKey, qty int) error {
	if err := models.ValidateQuantity(qty); err != nil {
		return err
	}
	return s.mutate(ctx, key, models.CartMutation{
		Action: models.CartActionUpdate, ProductID: key.ProductID, Size: key.Size, Color: key.Color, Quantity: qty,
	}, func(lines []models.CartLine, i int) ([]models.CartLine, error) {
		if i < 0 {
			return nil, apperr.NotFound("item is not in the cart")
		}
		lines[i].Quantity = qty
		return lines, nil
	})
}

// Remove deletes the line. On failure it returns at its old position.
func (s *Store) Remove(ctx context.Context, key models.LineKey) error {
	return s.mutate(ctx, key, models.CartMutation{
		Action: models.CartActionRemove, ProductID: key.ProductID, Size: key.Size, Color: key.Color,
	}, func(lines []models.CartLine, i int) ([]models.CartLine, error) {
		if i < 0 {
			return nil, errNothingToDo
		}
		return append(lines[:i], lines[i+1:]...), nil
	})
}

// errNothingToDo stops a mutation that would not change the cart.
var errNothingToDo = errors.New("cartstore: nothing to do")

// mutate runs one optimistic mutation on key: wait for the key's lane,
// capture the pre-image, apply locally, confirm with the server, then either
// reconcile the key with the server's line or restore the pre-image.
func (s *Store) mutate(ctx context.Context, key models.LineKey, m models.CartMutation,
	apply func(lines []models.CartLine, i int) ([]models.CartLine, error)) error {

	release, err := s.lanes.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	gen := s.generation
	pre := capture(s.lines, key)
	next, err := apply(s.lines, pre.index)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, errNothingToDo) {
			return nil
		}
		return err
	}
	s.lines = next
	s.mu.Unlock()

	// The request is not cancelled with ctx: its outcome must be applied
	// either way, or the cart would show a state the server never approved.
	snap, err := s.backend.MutateCart(context.WithoutCancel(ctx), m)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return err
	}
	if err != nil {
		s.lines = pre.restore(s.lines)
		observers := s.snapshotObservers()
		s.mu.Unlock()

		s.log.Info("cart mutation rolled back",
			zap.String("action", string(m.Action)),
			zap.String("line", key.String()),
			zap.Error(err))
		n := Notice{Action: m.Action, Key: key, Err: err}
		for _, fn := range observers {
			fn(n)
		}
		return err
	}
	s.lines = reconcile(s.lines, key, snap.Lines)
	s.mu.Unlock()
	return nil
}

func (s *Store) snapshotObservers() []func(Notice) {
	out := make([]func(Notice), 0, len(s.observers))
	for _, fn := range s.observers {
		out = append(out, fn)
	}
	return out
}

// reconcile adopts the server's version of key only. Other keys may have
// optimistic changes of their own in flight.
func reconcile(lines []models.CartLine, key models.LineKey, server []models.CartLine) []models.CartLine {
	i := indexOf(lines, key)
	j := indexOf(server, key)
	switch {
	case j < 0 && i >= 0:
		return append(lines[:i], lines[i+1:]...)
	case j >= 0 && i >= 0:
		lines[i] = server[j]
	case j >= 0:
		lines = append(lines, server[j])
	}
	return lines
}
