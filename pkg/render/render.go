// Package render defines the boundary between the keep-alive core and the
// host rendering engine.
//
// The keep-alive core never inspects or mutates the render tree directly.
// Everything it needs from the engine is expressed through the [Renderer]
// interface: mounting a subtree, moving previously produced output back into
// the tree without remounting, irreversible teardown, and recursive hook
// dispatch. The engine supplies opaque handles ([Instance], [Output]) which
// the core stores but never looks inside.
package render

// TypeID identifies the logical type of a subtree descriptor. It must be
// stable across render passes for the same logical subtree; engines typically
// derive it from the component's type name. Descriptor objects themselves are
// recreated every pass, so pointer identity is never used.
type TypeID string

// Descriptor describes the one dynamically-switching child a keep-alive
// region renders on a given pass.
type Descriptor struct {
	// Type is the stable identity of the subtree's logical type.
	// A zero Type means no child is rendered this pass.
	Type TypeID
	// Key optionally disambiguates two subtrees of the same Type.
	// It must be comparable, like a map key.
	Key any
	// Name is the subtree's registered name, matched against the region's
	// include/exclude filter. Empty means the subtree is anonymous.
	Name string
	// Props carries the engine's own configuration payload. The keep-alive
	// core passes it through untouched.
	Props any
}

// Zero reports whether the descriptor describes no child at all.
func (d Descriptor) Zero() bool {
	return d.Type == ""
}

// Instance is an opaque handle to a live subtree instance. Handles must be
// comparable; engines typically hand out pointers.
type Instance = any

// Output is an opaque handle to a subtree's backing render output: whatever
// the engine needs to reattach the subtree without remounting it.
type Output = any

// Container and Anchor locate where output is attached within the engine's
// tree. Both are opaque to the keep-alive core.
type (
	Container = any
	Anchor    = any
)

// Hook names a lifecycle notification delivered to a subtree instance.
type Hook int

const (
	// HookCreated fires once, when the instance is first constructed.
	HookCreated Hook = iota
	// HookMounted fires once, when the instance is first attached.
	HookMounted
	// HookActivated fires each time a cached instance is (re)displayed.
	HookActivated
	// HookDeactivated fires each time a cached instance is hidden.
	HookDeactivated
	// HookUnmounted fires exactly once, on destruction.
	HookUnmounted
)

func (h Hook) String() string {
	switch h {
	case HookCreated:
		return "created"
	case HookMounted:
		return "mounted"
	case HookActivated:
		return "activated"
	case HookDeactivated:
		return "deactivated"
	case HookUnmounted:
		return "unmounted"
	default:
		return "unknown"
	}
}

// Renderer is the engine surface consumed by the keep-alive core.
//
// All methods are invoked synchronously within one render pass; the core is
// never re-entered concurrently for the same region.
type Renderer interface {
	// Mount constructs and attaches a fresh subtree for d, returning the
	// instance handle and the backing output handle.
	Mount(d Descriptor, container Container, anchor Anchor) (Instance, Output, error)

	// Move reattaches previously produced output at a new location without
	// remounting. Internal subtree state is preserved.
	Move(output Output, container Container, anchor Anchor) error

	// Unmount tears an instance down irreversibly.
	Unmount(instance Instance) error

	// InvokeHook delivers hook to instance and, recursively, to every
	// descendant instance reachable from it. The core relies on this
	// recursion instead of walking the engine's tree shape itself.
	InvokeHook(instance Instance, hook Hook) error
}
