// Package correlate pairs outbound requests carrying a serial with the
// asynchronous replies that echo it. It is the client-side half of the
// request/response discipline layered over one shared websocket.
package correlate

import (
	"context"
	"errors"
	"sync"
)

// ErrCancelled is returned to waiters when a key is cancelled without a value,
// typically because the connection died underneath them.
var ErrCancelled = errors.New("correlated wait cancelled")

// ErrTimeout is returned when the awaited reply did not arrive in time. The
// key is consumed; a late reply will not be matched.
var ErrTimeout = errors.New("correlated reply timed out")

type entry struct {
	value     interface{}
	resolved  bool
	consumed  bool
	cancelled bool
	waiters   []chan result
}

type result struct {
	value interface{}
	err   error
}

// Table is an async key→value map supporting multiple concurrent waiters per
// key. A key resolves at most once: after Put or Cancel consumes it, later
// Puts are rejected and later Awaits find it consumed or cancelled.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewTable creates an empty correlation table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Put binds value to key and wakes every current waiter. It reports whether
// the value was accepted; a key already resolved or cancelled rejects the put
// so one serial can never produce two notifications. The value is retained
// only until delivered: once waiters (or a later Await) have consumed it, the
// entry keeps just the tombstone, so a long session does not accumulate one
// payload per serial ever exchanged.
func (t *Table) Put(key string, value interface{}) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entries[key]
	if e == nil {
		e = &entry{}
		t.entries[key] = e
	}
	if e.resolved || e.cancelled {
		return false
	}

	e.resolved = true
	if len(e.waiters) > 0 {
		for _, w := range e.waiters {
			w <- result{value: value}
		}
		e.waiters = nil
		e.consumed = true
		return true
	}
	e.value = value
	return true
}

// Cancel resolves every waiter for key with ErrCancelled without binding a
// value. Cancelling an already-resolved key is a no-op.
func (t *Table) Cancel(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked(key)
}

func (t *Table) cancelLocked(key string) {
	e := t.entries[key]
	if e == nil {
		e = &entry{}
		t.entries[key] = e
	}
	if e.resolved || e.cancelled {
		return
	}
	e.cancelled = true
	for _, w := range e.waiters {
		w <- result{err: ErrCancelled}
	}
	e.waiters = nil
}

// Await blocks until a value is bound to key, the key is cancelled, or ctx
// ends. An undelivered value returns immediately and is consumed; a key whose
// value was already delivered behaves as cancelled. On ctx expiry the key is
// cancelled so a late reply cannot resurrect it, and ErrTimeout is returned —
// unless the ctx was cancelled by the caller, which reports ErrCancelled.
func (t *Table) Await(ctx context.Context, key string) (interface{}, error) {
	t.mu.Lock()
	e := t.entries[key]
	if e == nil {
		e = &entry{}
		t.entries[key] = e
	}
	if e.resolved {
		if e.consumed {
			t.mu.Unlock()
			return nil, ErrCancelled
		}
		v := e.value
		e.value = nil
		e.consumed = true
		t.mu.Unlock()
		return v, nil
	}
	if e.cancelled {
		t.mu.Unlock()
		return nil, ErrCancelled
	}

	// Buffered so a concurrent Put never blocks on a waiter that already
	// gave up.
	ch := make(chan result, 1)
	e.waiters = append(e.waiters, ch)
	t.mu.Unlock()

	select {
	case res := <-ch:
		return res.value, res.err
	case <-ctx.Done():
		t.mu.Lock()
		t.cancelLocked(key)
		t.mu.Unlock()
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ErrCancelled
		}
		return nil, ErrTimeout
	}
}

// Has reports whether key has been resolved, consumed or not.
func (t *Table) Has(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entries[key]
	return e != nil && e.resolved
}

// Waiting reports the number of goroutines blocked across all keys.
func (t *Table) Waiting() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.entries {
		n += len(e.waiters)
	}
	return n
}

// Clear cancels every outstanding wait and drops all stored values. Used on
// logout and disconnect so no caller blocks past connection death.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		for _, w := range e.waiters {
			w <- result{err: ErrCancelled}
		}
		e.waiters = nil
	}
	t.entries = make(map[string]*entry)
}
