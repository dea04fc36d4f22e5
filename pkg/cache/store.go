// Package cache implements the recency-ordered entry store and the pruning
// rules for keep-alive regions.
//
// The store owns every cached entry exclusively; callers borrow references.
// Recency bookkeeping is delegated to hashicorp's simplelru, but its
// automatic eviction is disabled: eviction must never destroy the entry that
// is currently on screen, so all destruction goes through the pruning
// operations in this package, which take the active key into account.
package cache

import (
	"math"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/go-drift/keepalive/pkg/render"
)

// Key identifies a logical subtree across render passes. Two descriptors
// with the same type identity and the same explicit key refer to the same
// cached entry. Equality, not structural comparison, decides cache hits.
type Key struct {
	// Type is the subtree's stable type identity.
	Type render.TypeID
	// Explicit is the caller-supplied disambiguation key, nil if none.
	// It must be comparable, like a map key.
	Explicit any
}

// KeyOf computes the cache key for a descriptor.
func KeyOf(d render.Descriptor) Key {
	return Key{Type: d.Type, Explicit: d.Key}
}

// Entry owns one cached subtree instance and the backing render output the
// engine needs to reattach it without remounting.
type Entry struct {
	// Key identifies the entry.
	Key Key
	// Name is the subtree name recorded when the entry was created. It is
	// re-evaluated against the region's filter on every reconcile pass.
	Name string
	// Instance is the engine's handle to the live subtree instance.
	Instance render.Instance
	// Output is the engine's handle to the subtree's render output.
	Output render.Output
}

// Store keeps entries in recency order with an optional capacity bound.
//
// Not safe for concurrent use: render passes are serialized by the host
// scheduler, and all mutation happens within one pass.
type Store struct {
	entries  *simplelru.LRU[Key, *Entry]
	capacity int // 0 means unbounded
}

// NewStore creates a store. A capacity of zero or less means unbounded.
func NewStore(capacity int) *Store {
	// simplelru requires a positive size and evicts on its own once it is
	// reached. Size it effectively unbounded; the capacity bound is
	// enforced by EvictOverCapacity so the active entry is never a victim.
	entries, err := simplelru.NewLRU[Key, *Entry](math.MaxInt, nil)
	if err != nil {
		// Unreachable: math.MaxInt is a valid size.
		panic(err)
	}
	if capacity < 0 {
		capacity = 0
	}
	return &Store{entries: entries, capacity: capacity}
}

// Lookup returns the entry for key without touching its recency position.
// Inspection and mutation are separate steps: a lookup that is rejected for
// other reasons (filter mismatch, stale name) must not count as a use.
func (s *Store) Lookup(key Key) (*Entry, bool) {
	return s.entries.Peek(key)
}

// Touch moves the entry for key to the most-recently-used position.
func (s *Store) Touch(key Key) {
	s.entries.Get(key)
}

// Insert appends the entry as most-recently-used. The caller is responsible
// for running EvictOverCapacity afterwards.
func (s *Store) Insert(e *Entry) {
	s.entries.Add(e.Key, e)
}

// Remove deletes and returns the entry for key. The caller is responsible
// for requesting its destruction through the activation controller.
func (s *Store) Remove(key Key) (*Entry, bool) {
	e, ok := s.entries.Peek(key)
	if !ok {
		return nil, false
	}
	s.entries.Remove(key)
	return e, true
}

// Len reports the number of cached entries.
func (s *Store) Len() int {
	return s.entries.Len()
}

// Keys returns all keys in recency order, least-recently-used first.
func (s *Store) Keys() []Key {
	return s.entries.Keys()
}

// Capacity returns the capacity bound, zero if unbounded.
func (s *Store) Capacity() int {
	return s.capacity
}

// SetCapacity updates the capacity bound. The caller is responsible for
// running EvictOverCapacity afterwards.
func (s *Store) SetCapacity(capacity int) {
	if capacity < 0 {
		capacity = 0
	}
	s.capacity = capacity
}
