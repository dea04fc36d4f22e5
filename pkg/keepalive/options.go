package keepalive

import (
	"github.com/go-drift/keepalive/pkg/cache"
	"github.com/go-drift/keepalive/pkg/match"
	"github.com/go-drift/keepalive/pkg/render"
)

// Options configures a Region. The zero value caches every nameable child
// with no capacity bound.
type Options struct {
	// Include restricts which named children may be cached. Nil caches
	// everything nameable; anonymous children are cacheable only when
	// Include is nil.
	Include match.Pattern

	// Exclude forces matching names out of the cache regardless of Include.
	Exclude match.Pattern

	// Max bounds how many entries the region keeps alive. Zero means
	// unbounded. A negative value is a configuration error: it is reported
	// as a warning and treated as unbounded.
	Max int

	// Container and Anchor locate the region's slot in the engine's tree.
	// Both are passed through to the engine untouched.
	Container render.Container
	Anchor    render.Anchor

	// OnEvict, if set, observes capacity-driven evictions.
	OnEvict func(key cache.Key, name string)
}

func (o Options) filter() match.Filter {
	return match.Filter{Include: o.Include, Exclude: o.Exclude}
}
