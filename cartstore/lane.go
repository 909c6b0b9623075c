package cartstore

import (
	"context"
	"sync"

	"go-marketplace/models"
)

// lanes serialises mutations per line key. Waiters on one key are granted
// in arrival order; different keys never wait on each other.
type lanes struct {
	mu     sync.Mutex
	queues map[models.LineKey][]chan struct{}
}

func newLanes() *lanes {
	return &lanes{queues: make(map[models.LineKey][]chan struct{})}
}

// acquire blocks until key's lane is free for the caller. The returned
// release must be called exactly once.
func (l *lanes) acquire(ctx context.Context, key models.LineKey) (func(), error) {
	ch := make(chan struct{})
	l.mu.Lock()
	q := l.queues[key]
	l.queues[key] = append(q, ch)
	if len(q) == 0 {
		close(ch)
	}
	l.mu.Unlock()

	release := func() { l.release(key) }

	select {
	case <-ch:
		return release, nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	q = l.queues[key]
	if len(q) > 0 && q[0] == ch {
		// Granted while giving up; pass the lane on.
		l.mu.Unlock()
		release()
		return nil, ctx.Err()
	}
	for i, c := range q {
		if c == ch {
			l.queues[key] = append(q[:i:i], q[i+1:]...)
			break
		}
	}
	l.mu.Unlock()
	return nil, ctx.Err()
}

func (l *lanes) release(key models.LineKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.queues[key]
	if len(q) == 0 {
		return
	}
	q = q[1:]
	if len(q) == 0 {
		delete(l.queues, key)
		return
	}
	l.queues[key] = q
	close(q[0])
}

// busy reports whether a mutation on key is in flight or queued.
func (l *lanes) busy(key models.LineKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queues[key]) > 0
}

// anyBusy reports whether any key has a mutation in flight or queued.
func (l *lanes) anyBusy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queues) > 0
}
