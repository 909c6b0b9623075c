package cartstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"go-marketplace/apiclient"
	"go-marketplace/apperr"
	"go-marketplace/models"
	"go-marketplace/pricing"
)

// call is one MutateCart request seen by the fake backend. The test decides
// its outcome by sending on reply.
type call struct {
	m     models.CartMutation
	reply chan result
}

type result struct {
	lines []models.CartLine
	err   error
}

type fakeBackend struct {
	initial []models.CartLine
	calls   chan call

	mu    sync.Mutex
	count int
}

func newFake(initial ...models.CartLine) *fakeBackend {
	return &fakeBackend{initial: initial, calls: make(chan call, 16)}
}

func (f *fakeBackend) GetCart(context.Context) (apiclient.CartSnapshot, error) {
	return apiclient.CartSnapshot{Lines: f.initial}, nil
}

func (f *fakeBackend) MutateCart(_ context.Context, m models.CartMutation) (apiclient.CartSnapshot, error) {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()
	c := call{m: m, reply: make(chan result, 1)}
	f.calls <- c
	r := <-c.reply
	return apiclient.CartSnapshot{Lines: r.lines}, r.err
}

func (f *fakeBackend) requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func (f *fakeBackend) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("backend was not called")
		return call{}
	}
}

func (f *fakeBackend) idle(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected request %+v", c.m)
	case <-time.After(50 * time.Millisecond):
	}
}

func line(id string, qty int) models.CartLine {
	return models.CartLine{ProductID: models.ID(id), Size: "M", VariantColor: "red", Quantity: qty, UnitPrice: models.Rupees(500), UnitMrp: models.Rupees(800)}
}

func key(id string) models.LineKey {
	return line(id, 1).Key()
}

func newStore(t *testing.T, backend Backend) *Store {
	s := New(backend, pricing.DefaultConfig(), zaptest.NewLogger(t))
	require.NoError(t, s.Init(context.Background()))
	return s
}

func async(fn func() error) <-chan error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	return done
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("mutation did not finish")
		return nil
	}
}

var errRejected = apperr.Conflict("Insufficient stock for product: Kurta")

func TestAdd_OptimisticThenRollbackToPriorQuantity(t *testing.T) {
	backend := newFake(line("p1", 2))
	s := newStore(t, backend)
	var notices []Notice
	s.OnNotice(func(n Notice) { notices = append(notices, n) })

	done := async(func() error { return s.Add(context.Background(), line("p1", 1)) })
	c := backend.next(t)
	assert.Equal(t, models.CartActionAdd, c.m.Action)
	assert.Equal(t, 1, c.m.Quantity)

	got, _ := s.Line(key("p1"))
	assert.Equal(t, 3, got.Quantity, "applied before the server answers")
	assert.True(t, s.Pending(key("p1")))

	c.reply <- result{err: errRejected}
	err := wait(t, done)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	assert.Equal(t, []models.CartLine{line("p1", 2)}, s.Lines(), "restored, not removed")
	require.Len(t, notices, 1)
	assert.Equal(t, key("p1"), notices[0].Key)
	assert.Equal(t, "Insufficient stock for product: Kurta", notices[0].Message())
	assert.False(t, s.Pending(key("p1")))
}

func TestAdd_NewLineRolledBackIsRemoved(t *testing.T) {
	backend := newFake(line("p1", 1))
	s := newStore(t, backend)

	done := async(func() error { return s.Add(context.Background(), line("p2", 0)) })
	c := backend.next(t)
	assert.Len(t, s.Lines(), 2)
	c.reply <- result{err: apperr.Transient("Network error", errors.New("dial"))}

	assert.Error(t, wait(t, done))
	assert.Equal(t, []models.CartLine{line("p1", 1)}, s.Lines())
}

func TestAdd_SuccessAdoptsServerLine(t *testing.T) {
	backend := newFake()
	s := newStore(t, backend)

	done := async(func() error { return s.Add(context.Background(), line("p1", 1)) })
	c := backend.next(t)
	server := line("p1", 1)
	server.Title = "Kurta"
	server.UnitPrice = models.Rupees(450)
	c.reply <- result{lines: []models.CartLine{server}}

	require.NoError(t, wait(t, done))
	assert.Equal(t, []models.CartLine{server}, s.Lines())
}

func TestQuantityBoundsNeverReachNetwork(t *testing.T) {
	backend := newFake(line("p1", 9))
	s := newStore(t, backend)
	ctx := context.Background()

	for _, q := range []int{0, -1, 11} {
		err := s.UpdateQuantity(ctx, key("p1"), q)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "qty %d", q)
	}
	err := s.Add(ctx, line("p1", 2))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "9+2 exceeds the bound")
	err = s.Add(ctx, line("p2", 12))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	assert.Equal(t, 0, backend.requests())
	assert.Equal(t, []models.CartLine{line("p1", 9)}, s.Lines())
}

func TestUpdateQuantity_UnknownLine(t *testing.T) {
	backend := newFake()
	s := newStore(t, backend)

	err := s.UpdateQuantity(context.Background(), key("p1"), 2)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, 0, backend.requests())
}

func TestRemove_RollbackRestoresPosition(t *testing.T) {
	initial := []models.CartLine{line("p1", 1), line("p2", 4), line("p3", 2)}
	backend := newFake(initial...)
	s := newStore(t, backend)

	done := async(func() error { return s.Remove(context.Background(), key("p2")) })
	c := backend.next(t)
	assert.Equal(t, []models.CartLine{line("p1", 1), line("p3", 2)}, s.Lines())
	c.reply <- result{err: errRejected}

	assert.Error(t, wait(t, done))
	assert.Equal(t, initial, s.Lines())
}

func TestRemove_AbsentLineIsNoop(t *testing.T) {
	backend := newFake()
	s := newStore(t, backend)

	assert.NoError(t, s.Remove(context.Background(), key("p1")))
	assert.Equal(t, 0, backend.requests())
}

func TestSameKeyMutationsAreQueuedInOrder(t *testing.T) {
	backend := newFake(line("p1", 1))
	s := newStore(t, backend)
	ctx := context.Background()

	first := async(func() error { return s.UpdateQuantity(ctx, key("p1"), 3) })
	c1 := backend.next(t)
	assert.Equal(t, 3, c1.m.Quantity)

	second := async(func() error { return s.UpdateQuantity(ctx, key("p1"), 5) })
	backend.idle(t)
	got, _ := s.Line(key("p1"))
	assert.Equal(t, 3, got.Quantity, "second mutation waits for the first")

	c1.reply <- result{err: errRejected}
	assert.Error(t, wait(t, first))

	c2 := backend.next(t)
	assert.Equal(t, 5, c2.m.Quantity)
	got, _ = s.Line(key("p1"))
	assert.Equal(t, 5, got.Quantity, "second applies on top of the rolled back state")

	c2.reply <- result{err: errRejected}
	assert.Error(t, wait(t, second))
	got, _ = s.Line(key("p1"))
	assert.Equal(t, 1, got.Quantity)
}

func TestDifferentKeysRunConcurrently(t *testing.T) {
	backend := newFake(line("p1", 1), line("p2", 1))
	s := newStore(t, backend)
	ctx := context.Background()

	a := async(func() error { return s.UpdateQuantity(ctx, key("p1"), 2) })
	b := async(func() error { return s.UpdateQuantity(ctx, key("p2"), 7) })
	c1 := backend.next(t)
	c2 := backend.next(t)

	// Answer in reverse order; each response only touches its own key.
	var forP1, forP2 call
	if c1.m.ProductID == "p1" {
		forP1, forP2 = c1, c2
	} else {
		forP1, forP2 = c2, c1
	}
	forP2.reply <- result{lines: []models.CartLine{line("p1", 1), line("p2", 7)}}
	require.NoError(t, wait(t, b))
	got, _ := s.Line(key("p1"))
	assert.Equal(t, 2, got.Quantity, "stale server copy of p1 does not undo the optimistic change")

	forP1.reply <- result{err: errRejected}
	assert.Error(t, wait(t, a))
	assert.Equal(t, []models.CartLine{line("p1", 1), line("p2", 7)}, s.Lines())
}

func TestCancelledWhileQueued(t *testing.T) {
	backend := newFake(line("p1", 1))
	s := newStore(t, backend)

	first := async(func() error { return s.UpdateQuantity(context.Background(), key("p1"), 2) })
	c1 := backend.next(t)

	ctx, cancel := context.WithCancel(context.Background())
	second := async(func() error { return s.UpdateQuantity(ctx, key("p1"), 4) })
	backend.idle(t)
	cancel()
	assert.ErrorIs(t, wait(t, second), context.Canceled)

	c1.reply <- result{lines: []models.CartLine{line("p1", 2)}}
	require.NoError(t, wait(t, first))
	backend.idle(t)
	assert.False(t, s.Pending(key("p1")))
}

func TestClearDropsInFlightResponse(t *testing.T) {
	backend := newFake(line("p1", 1))
	s := newStore(t, backend)

	done := async(func() error { return s.Add(context.Background(), line("p2", 1)) })
	c := backend.next(t)
	s.Clear()
	c.reply <- result{err: errRejected}

	assert.Error(t, wait(t, done))
	assert.Empty(t, s.Lines(), "no rollback into a cleared cart")
	assert.True(t, s.Empty())
}

func TestTotals(t *testing.T) {
	s := newStore(t, newFake(line("p1", 2)))

	totals := s.Totals(models.PaymentCOD, nil)
	assert.Equal(t, models.Rupees(1040), totals.FinalAmount)

	coupon := pricing.Coupon{Code: "SAVE10", Kind: pricing.CouponPercent, Percent: 10}
	totals = s.Totals(models.PaymentUPI, &coupon)
	assert.Equal(t, models.Rupees(900), totals.FinalAmount)
}

func TestPreImageRestore(t *testing.T) {
	lines := []models.CartLine{line("p1", 1), line("p2", 2)}
	pre := capture(lines, key("p2"))

	shrunk := []models.CartLine{}
	assert.Equal(t, []models.CartLine{line("p2", 2)}, pre.restore(shrunk), "index clamps to the end")

	absent := capture(lines, key("p9"))
	assert.Equal(t, lines, absent.restore(append([]models.CartLine{}, lines...)))
}

func TestBusyUntilServerAnswers(t *testing.T) {
	backend := newFake()
	s := newStore(t, backend)
	assert.False(t, s.Busy())

	done := async(func() error { return s.Add(context.Background(), line("p1", 1)) })
	c := backend.next(t)
	assert.True(t, s.Busy())
	assert.True(t, s.Pending(key("p1")))
	assert.False(t, s.Pending(key("p2")))

	c.reply <- result{lines: []models.CartLine{line("p1", 1)}}
	require.NoError(t, wait(t, done))
	assert.False(t, s.Busy())
}
