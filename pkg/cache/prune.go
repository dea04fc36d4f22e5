package cache

import "github.com/go-drift/keepalive/pkg/match"

// DestroyFunc destroys a removed entry: the caller detaches its backing
// output and runs the activation controller's terminal transition.
type DestroyFunc func(*Entry)

// EvictOverCapacity removes least-recently-used entries until the store fits
// its capacity again, never selecting the active key. Capacity is a soft
// bound: if every remaining entry is the active one, no eviction occurs.
//
// An entry can never be evicted on the pass that inserted it, because
// insertion makes it both most-recently-used and the active key before this
// check runs.
func (s *Store) EvictOverCapacity(active *Key, destroy DestroyFunc) {
	if s.capacity <= 0 {
		return
	}
	for s.entries.Len() > s.capacity {
		victim, ok := s.oldestExcept(active)
		if !ok {
			return
		}
		e, _ := s.Remove(victim)
		if e != nil && destroy != nil {
			destroy(e)
		}
	}
}

// ReconcileFilter removes and destroys every entry whose recorded name no
// longer satisfies the filter. The active entry is exempt regardless of the
// filter result; it is retained until it stops being active.
func (s *Store) ReconcileFilter(filter match.Filter, active *Key, destroy DestroyFunc) {
	for _, key := range s.entries.Keys() {
		if active != nil && key == *active {
			continue
		}
		e, ok := s.entries.Peek(key)
		if !ok || filter.Cacheable(e.Name) {
			continue
		}
		s.entries.Remove(key)
		if destroy != nil {
			destroy(e)
		}
	}
}

// PurgeAll removes and destroys every remaining entry, including the active
// one. This is the only path that may destroy the active entry; it runs only
// when the owning region itself is being torn down.
func (s *Store) PurgeAll(destroy DestroyFunc) {
	for _, key := range s.entries.Keys() {
		e, ok := s.entries.Peek(key)
		if !ok {
			continue
		}
		s.entries.Remove(key)
		if destroy != nil {
			destroy(e)
		}
	}
}

// oldestExcept returns the least-recently-used key that is not the active
// key. Recency order is total, so no secondary tie-break is needed.
func (s *Store) oldestExcept(active *Key) (Key, bool) {
	for _, key := range s.entries.Keys() {
		if active != nil && key == *active {
			continue
		}
		return key, true
	}
	return Key{}, false
}
