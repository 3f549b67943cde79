// Package lock provides in-process keyed mutexes for serializing
// operations on a single resource, such as allocation batches for one
// property. A single service instance owns all writes for a village, so
// an in-process lock is sufficient; the ledger transaction and the
// optimistic version checks remain the second line of defense.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/shared"
)

// KeyedLock hands out one mutex per key. Entries are reference counted
// and removed when the last holder releases, so the map does not grow
// with the number of properties ever seen.
type KeyedLock struct {
	mu      sync.Mutex
	entries map[string]*entry
	timeout time.Duration
}

type entry struct {
	ch   chan struct{}
	refs int
}

// DefaultAcquireTimeout bounds how long a caller waits for a busy key
const DefaultAcquireTimeout = 5 * time.Second

// NewKeyedLock creates a KeyedLock with the given acquisition timeout.
// A non-positive timeout falls back to DefaultAcquireTimeout.
func NewKeyedLock(timeout time.Duration) *KeyedLock {
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}
	return &KeyedLock{
		entries: make(map[string]*entry),
		timeout: timeout,
	}
}

// Acquire takes the lock for key, waiting up to the configured timeout.
// It returns shared.ErrConcurrencyConflict when the wait expires and the
// context error when the caller is canceled first.
func (l *KeyedLock) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		e.ch <- struct{}{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case <-e.ch:
		return func() { l.release(key, e) }, nil
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	case <-timer.C:
		l.unref(key, e)
		return nil, shared.ErrConcurrencyConflict
	}
}

func (l *KeyedLock) release(key string, e *entry) {
	e.ch <- struct{}{}
	l.unref(key, e)
}

func (l *KeyedLock) unref(key string, e *entry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}

// PropertyLock adapts KeyedLock to the allocation engine's per-property
// lock interface.
type PropertyLock struct {
	locks *KeyedLock
}

// NewPropertyLock creates a PropertyLock
func NewPropertyLock(timeout time.Duration) *PropertyLock {
	return &PropertyLock{locks: NewKeyedLock(timeout)}
}

// Acquire serializes on the (village, property) pair
func (p *PropertyLock) Acquire(ctx context.Context, villageID, propertyID uuid.UUID) (func(), error) {
	return p.locks.Acquire(ctx, villageID.String()+"/"+propertyID.String())
}
