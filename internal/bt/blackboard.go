package bt

import (
	"fmt"
	"sync"
)

// Blackboard is a thread-safe key/value store shared by the nodes of a tree.
//
// A blackboard may have a parent. Reads that miss locally are delegated to
// the parent (and so on up the chain); writes and deletes only ever affect
// the receiver. Keys are case-sensitive.
//
// The zero value is an empty blackboard with no parent. The internal map is
// lazily initialized on the first write.
type Blackboard struct {
	mu     sync.RWMutex
	data   map[string]any
	parent *Blackboard
}

// NewBlackboard returns an empty blackboard. parent may be nil.
func NewBlackboard(parent *Blackboard) *Blackboard {
	return &Blackboard{parent: parent}
}

// Parent returns the blackboard reads fall back to, or nil.
func (b *Blackboard) Parent() *Blackboard {
	return b.parent
}

// Lookup returns the value for key, searching ancestors on a local miss.
func (b *Blackboard) Lookup(key string) (any, bool) {
	for bb := b; bb != nil; bb = bb.parent {
		if v, ok := bb.local(key); ok {
			return v, true
		}
	}
	return nil, false
}

// Get returns the value for key, searching ancestors on a local miss. A key
// absent from the whole chain is reported as an error wrapping
// ErrKeyNotFound.
func (b *Blackboard) Get(key string) (any, error) {
	if v, ok := b.Lookup(key); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
}

// GetAs returns the value for key converted to T.
func GetAs[T any](b *Blackboard, key string) (T, error) {
	var zero T
	v, err := b.Get(key)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q holds %T, want %T", ErrTypeMismatch, key, v, zero)
	}
	return t, nil
}

// Set stores value under key in this blackboard. Ancestors are never
// modified, and a local value shadows any ancestor value.
func (b *Blackboard) Set(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		b.data = make(map[string]any)
	}
	b.data[key] = value
}

// Has reports whether key is present in this blackboard or an ancestor.
func (b *Blackboard) Has(key string) bool {
	_, ok := b.Lookup(key)
	return ok
}

// HasLocal reports whether key is present in this blackboard, ignoring
// ancestors.
func (b *Blackboard) HasLocal(key string) bool {
	_, ok := b.local(key)
	return ok
}

// Delete removes key from this blackboard. An ancestor value, if any,
// becomes visible again.
func (b *Blackboard) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
}

// Keys returns the local keys, in no particular order.
func (b *Blackboard) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.data) == 0 {
		return nil
	}
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of local keys.
func (b *Blackboard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Snapshot returns a shallow copy of the local entries.
//
// Mutable values (slices, maps, pointers) are shared with the blackboard.
func (b *Blackboard) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	result := make(map[string]any, len(b.data))
	for k, v := range b.data {
		result[k] = v
	}
	return result
}

// Flatten returns a shallow copy of every entry visible from this
// blackboard, with values closer to the receiver shadowing ancestors.
func (b *Blackboard) Flatten() map[string]any {
	var chain []*Blackboard
	for bb := b; bb != nil; bb = bb.parent {
		chain = append(chain, bb)
	}
	result := make(map[string]any)
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].Snapshot() {
			result[k] = v
		}
	}
	return result
}

func (b *Blackboard) local(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	return v, ok
}
