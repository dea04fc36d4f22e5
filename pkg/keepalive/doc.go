// Package keepalive coordinates subtree caching for a slot that renders one
// dynamically-switching child.
//
// A [Region] wraps such a slot. When the child switches, the previous
// child's instance and backing render output are kept alive off-tree instead
// of being torn down; switching back restores the prior internal state by
// asking the engine to move the cached output back into place, without
// remounting.
//
// # Render protocol
//
// The host calls [Region.Render] once per pass with the current child
// descriptor. On a cache hit the region reattaches the stored output and
// delivers an activate hook; on a miss it mounts fresh and, if the child's
// name passes the include/exclude filter, caches the new entry. The
// previously displayed entry is deactivated, not destroyed, unless the
// capacity bound selects it for eviction. The entry currently on screen is
// never evicted; only [Region.Teardown] destroys it.
//
// # Nesting
//
// Regions nest: create an inner region with [Region.NewChild]. While any
// ancestor region is inactive, activate and deactivate hooks for descendants
// are deferred; when the ancestor becomes active again, each affected
// instance receives exactly one transition reflecting its final state, no
// matter how many times it toggled in between.
//
// # Concurrency
//
// Everything is single-threaded and cooperative. The host scheduler
// serializes render passes; a region must never be re-entered concurrently.
package keepalive
