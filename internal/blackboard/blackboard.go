// Package blackboard implements the shared state store read and written by
// every node of a behaviour tree.
//
// A Blackboard is the only mutable resource shared between the scheduler
// goroutine and any producer goroutines (sensor feeds, async actions). All
// access goes through a sync.RWMutex, so a write is never observed half done
// and a pending writer blocks new readers until it has run.
package blackboard

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrIncompatibleBlackboard is returned by From for values that cannot back a
// Blackboard.
var ErrIncompatibleBlackboard = errors.New("blackboard: incompatible store type")

// Blackboard is a thread-safe key-value store for behaviour tree state.
//
// The zero value is ready to use; the internal map is lazily initialized on
// the first write. Reading an absent key returns nil.
type Blackboard struct {
	mu   sync.RWMutex
	data map[string]any
}

// New returns a Blackboard seeded with a copy of init, which may be nil.
func New(init map[string]any) *Blackboard {
	b := &Blackboard{data: make(map[string]any, len(init))}
	for k, v := range init {
		b.data[k] = v
	}
	return b
}

// From adapts v into a Blackboard. It accepts an existing *Blackboard, which
// is returned as-is, or a map[string]any, which is copied.
func From(v any) (*Blackboard, error) {
	switch v := v.(type) {
	case *Blackboard:
		if v == nil {
			return nil, fmt.Errorf("%w: nil *Blackboard", ErrIncompatibleBlackboard)
		}
		return v, nil
	case map[string]any:
		return New(v), nil
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrIncompatibleBlackboard)
	default:
		return nil, fmt.Errorf("%w: %T", ErrIncompatibleBlackboard, v)
	}
}

// init must be called with the write lock held.
func (b *Blackboard) init() {
	if b.data == nil {
		b.data = make(map[string]any)
	}
}

// Get retrieves a value from the blackboard.
// Returns nil if the key doesn't exist.
func (b *Blackboard) Get(key string) any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data[key]
}

// Lookup is like Get but also reports whether the key is present, which
// distinguishes an absent key from one explicitly set to nil.
func (b *Blackboard) Lookup(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	return v, ok
}

// Set stores a value in the blackboard.
func (b *Blackboard) Set(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.init()
	b.data[key] = value
}

// SetAll stores every entry of values under a single write lock, so readers
// observe either none or all of them.
func (b *Blackboard) SetAll(values map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.init()
	for k, v := range values {
		b.data[k] = v
	}
}

// Update atomically replaces the value at key with fn(current, present).
// fn runs with the write lock held and must not call back into b. The lock
// is released even if fn panics.
func (b *Blackboard) Update(key string, fn func(current any, present bool) any) any {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.init()
	cur, ok := b.data[key]
	next := fn(cur, ok)
	b.data[key] = next
	return next
}

// Has returns true if the key exists in the blackboard.
func (b *Blackboard) Has(key string) bool {
	_, ok := b.Lookup(key)
	return ok
}

// Delete removes a key from the blackboard.
func (b *Blackboard) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
}

// Keys returns all keys in the blackboard, sorted.
func (b *Blackboard) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear removes all entries from the blackboard.
func (b *Blackboard) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = make(map[string]any)
}

// Len returns the number of keys in the blackboard.
func (b *Blackboard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Snapshot returns a shallow copy of the blackboard data, taken under a
// single read lock. It never returns nil.
//
// WARNING: mutable values (slices, maps, pointers) are shared with the
// blackboard; callers that modify them must copy first.
func (b *Blackboard) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	result := make(map[string]any, len(b.data))
	for k, v := range b.data {
		result[k] = v
	}
	return result
}
