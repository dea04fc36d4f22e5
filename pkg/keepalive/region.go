package keepalive

import (
	"errors"
	"fmt"

	"github.com/go-drift/keepalive/pkg/cache"
	keeperrors "github.com/go-drift/keepalive/pkg/errors"
	"github.com/go-drift/keepalive/pkg/lifecycle"
	"github.com/go-drift/keepalive/pkg/match"
	"github.com/go-drift/keepalive/pkg/render"
)

// ErrTornDown is returned when a region is used after Teardown.
var ErrTornDown = errors.New("keepalive: region has been torn down")

// Region owns the cache and the activation state for one keep-alive slot.
//
// Not safe for concurrent use; the host scheduler serializes render passes.
type Region struct {
	renderer  render.Renderer
	store     *cache.Store
	ctrl      *lifecycle.Controller
	filter    match.Filter
	onEvict   func(cache.Key, string)
	container render.Container
	anchor    render.Anchor

	parent *Region
	// children maps a cache key to the nested regions hosted inside that
	// entry's subtree. Nested regions register explicitly; the engine's
	// tree shape is never walked.
	children      map[cache.Key][]*Region
	transientKids []*Region
	loose         []*Region
	pending       []*Region
	inPass        bool

	// ownActive is the region's own toggle; ancestorActive is the AND of
	// every ancestor's state, pushed down by the parent. Their AND is the
	// effective-active flag gating hook delivery.
	ownActive      bool
	ancestorActive bool
	effective      bool

	activeKey    *cache.Key
	activeEntry  *cache.Entry
	transient    render.Instance
	transientKey *cache.Key
	torndown     bool
}

// NewRegion creates a root keep-alive region served by the given engine.
func NewRegion(renderer render.Renderer, opts Options) *Region {
	r := newRegion(renderer, opts)
	r.ancestorActive = true
	r.effective = true
	r.ctrl = lifecycle.NewController(renderer, true)
	return r
}

// NewChild creates a region nested under r. It registers under the entry r
// is displaying when the child's first render pass completes, so that
// activating or deactivating that entry propagates to the child.
func (r *Region) NewChild(opts Options) *Region {
	child := newRegion(r.renderer, opts)
	child.parent = r
	child.ancestorActive = r.effective
	child.effective = child.ownActive && child.ancestorActive
	child.ctrl = lifecycle.NewController(r.renderer, child.effective)
	if r.inPass {
		r.pending = append(r.pending, child)
	} else {
		r.adoptChild(child)
	}
	return child
}

func newRegion(renderer render.Renderer, opts Options) *Region {
	max := opts.Max
	if max < 0 {
		keeperrors.Report(&keeperrors.Error{
			Op:   "keepalive.NewRegion",
			Kind: keeperrors.KindConfig,
			Err:  fmt.Errorf("max must be positive, got %d; treating as unbounded", max),
		})
		max = 0
	}
	return &Region{
		renderer:  renderer,
		store:     cache.NewStore(max),
		filter:    opts.filter(),
		onEvict:   opts.OnEvict,
		container: opts.Container,
		anchor:    opts.Anchor,
		children:  make(map[cache.Key][]*Region),
		ownActive: true,
	}
}

// Render processes one pass of the owning slot with the current child
// descriptor. It returns the instance now on display.
//
// Hook failures never abort cache bookkeeping: the region completes its
// state transition and returns the failures to the caller afterwards.
func (r *Region) Render(d render.Descriptor) (render.Instance, error) {
	if r.torndown {
		return nil, ErrTornDown
	}
	r.inPass = true
	defer func() {
		r.inPass = false
		r.adoptPending()
	}()

	if d.Zero() {
		return nil, r.clearDisplay()
	}

	key := cache.KeyOf(d)
	var errs []error

	// Two candidates resolving to the same key with different descriptors:
	// the stale entry is replaced by a fresh mount.
	if e, ok := r.store.Lookup(key); ok && e.Name != d.Name {
		keeperrors.Report(&keeperrors.Error{
			Op:   "keepalive.Render",
			Kind: keeperrors.KindKey,
			Err:  fmt.Errorf("key %v cached as %q, candidate named %q; replacing stale entry", key, e.Name, d.Name),
		})
		if r.activeKey != nil && *r.activeKey == key {
			errs = append(errs, r.propagateToChildren(key, false))
			r.activeKey, r.activeEntry = nil, nil
		}
		r.store.Remove(key)
		errs = append(errs, r.destroyEntry(e))
	}

	// Same candidate redisplayed: recency touch only, no transitions.
	if r.activeKey != nil && *r.activeKey == key {
		r.store.Touch(key)
		return r.activeEntry.Instance, errors.Join(errs...)
	}
	if r.transientKey != nil && *r.transientKey == key {
		return r.transient, errors.Join(errs...)
	}

	if e, ok := r.store.Lookup(key); ok {
		if r.filter.Cacheable(e.Name) {
			inst, err := r.reattach(e)
			errs = append(errs, err)
			return inst, errors.Join(errs...)
		}
		// Cached earlier but no longer matches, and it is not on screen:
		// drop it and mount the candidate fresh below.
		r.store.Remove(key)
		errs = append(errs, r.destroyEntry(e))
	}

	errs = append(errs, r.clearDisplay())
	instance, output, err := r.renderer.Mount(d, r.container, r.anchor)
	if err != nil {
		errs = append(errs, &keeperrors.Error{
			Op:   "keepalive.Render",
			Kind: keeperrors.KindEngine,
			Err:  err,
		})
		return nil, errors.Join(errs...)
	}

	if r.filter.Cacheable(d.Name) {
		e := &cache.Entry{Key: key, Name: d.Name, Instance: instance, Output: output}
		r.store.Insert(e)
		k := key
		r.activeKey, r.activeEntry = &k, e
		errs = append(errs, r.ctrl.MountFresh(instance))
		r.store.EvictOverCapacity(r.activeKey, r.destroyEvicted(&errs))
	} else {
		k := key
		r.transient, r.transientKey = instance, &k
		errs = append(errs, r.ctrl.MountTransient(instance))
	}
	return instance, errors.Join(errs...)
}

// reattach restores a cached entry as the display without remounting.
func (r *Region) reattach(e *cache.Entry) (render.Instance, error) {
	var errs []error
	errs = append(errs, r.clearDisplay())
	if err := r.renderer.Move(e.Output, r.container, r.anchor); err != nil {
		errs = append(errs, &keeperrors.Error{
			Op:   "keepalive.reattach",
			Kind: keeperrors.KindEngine,
			Err:  err,
		})
	}
	errs = append(errs, r.ctrl.Activate(e.Instance))
	r.store.Touch(e.Key)
	k := e.Key
	r.activeKey, r.activeEntry = &k, e
	errs = append(errs, r.propagateToChildren(k, true))
	return e.Instance, errors.Join(errs...)
}

// clearDisplay deactivates the current cached display, or destroys the
// current transient one. Non-cached instances are destroyed directly when
// superseded; cached entries stay alive off-tree.
func (r *Region) clearDisplay() error {
	var errs []error
	if r.transient != nil {
		for _, child := range r.transientKids {
			errs = append(errs, child.Teardown())
		}
		r.transientKids = nil
		errs = append(errs, r.ctrl.Destroy(r.transient))
		r.transient, r.transientKey = nil, nil
	}
	if r.activeEntry != nil {
		errs = append(errs, r.ctrl.Deactivate(r.activeEntry.Instance))
		errs = append(errs, r.propagateToChildren(*r.activeKey, false))
		r.activeKey, r.activeEntry = nil, nil
	}
	return errors.Join(errs...)
}

// SetFilter re-supplies the include/exclude filter and prunes entries that
// no longer match, within the same pass. The active entry is exempt until it
// stops being active.
func (r *Region) SetFilter(include, exclude match.Pattern) error {
	if r.torndown {
		return ErrTornDown
	}
	r.filter = match.Filter{Include: include, Exclude: exclude}
	var errs []error
	r.store.ReconcileFilter(r.filter, r.activeKey, func(e *cache.Entry) {
		errs = append(errs, r.destroyEntry(e))
	})
	return errors.Join(errs...)
}

// SetCapacity re-supplies the capacity bound and evicts immediately if the
// cache is over it. Non-positive means unbounded; negative is reported as a
// configuration warning.
func (r *Region) SetCapacity(max int) error {
	if r.torndown {
		return ErrTornDown
	}
	if max < 0 {
		keeperrors.Report(&keeperrors.Error{
			Op:   "keepalive.SetCapacity",
			Kind: keeperrors.KindConfig,
			Err:  fmt.Errorf("max must be positive, got %d; treating as unbounded", max),
		})
		max = 0
	}
	r.store.SetCapacity(max)
	var errs []error
	r.store.EvictOverCapacity(r.activeKey, r.destroyEvicted(&errs))
	return errors.Join(errs...)
}

// SetActive flips the region's own activation toggle. The host calls this
// when the region's own hosting subtree is activated or deactivated by
// something other than a parent region.
func (r *Region) SetActive(active bool) error {
	if r.torndown {
		return ErrTornDown
	}
	if r.ownActive == active {
		return nil
	}
	r.ownActive = active
	return r.applyEffective()
}

// Teardown destroys every remaining entry, including the active one, and
// recursively tears down nested regions. This is the only path that may
// destroy on-screen content.
func (r *Region) Teardown() error {
	if r.torndown {
		return nil
	}
	r.torndown = true
	var errs []error
	if r.transient != nil {
		for _, child := range r.transientKids {
			errs = append(errs, child.Teardown())
		}
		r.transientKids = nil
		errs = append(errs, r.ctrl.Destroy(r.transient))
		r.transient, r.transientKey = nil, nil
	}
	for _, child := range append(r.loose, r.pending...) {
		errs = append(errs, child.Teardown())
	}
	r.loose, r.pending = nil, nil
	r.store.PurgeAll(func(e *cache.Entry) {
		errs = append(errs, r.destroyEntry(e))
	})
	r.activeKey, r.activeEntry = nil, nil
	for _, nested := range r.children {
		for _, child := range nested {
			errs = append(errs, child.Teardown())
		}
	}
	r.children = nil
	return errors.Join(errs...)
}

// Current returns a handle to the instance on display, nil if none.
func (r *Region) Current() render.Instance {
	if r.activeEntry != nil {
		return r.activeEntry.Instance
	}
	return r.transient
}

// ActiveKey returns the key of the cached entry on display.
func (r *Region) ActiveKey() (cache.Key, bool) {
	if r.activeKey == nil {
		return cache.Key{}, false
	}
	return *r.activeKey, true
}

// Len reports how many entries the region keeps alive.
func (r *Region) Len() int {
	return r.store.Len()
}

// Keys returns the cached keys in recency order, least-recently-used first.
func (r *Region) Keys() []cache.Key {
	return r.store.Keys()
}

// EffectiveActive reports whether hooks are currently delivered, the AND of
// this region's toggle and every ancestor's.
func (r *Region) EffectiveActive() bool {
	return r.effective
}

// destroyEvicted returns the destroy callback for capacity-driven eviction,
// accumulating hook failures into errs and notifying OnEvict.
func (r *Region) destroyEvicted(errs *[]error) cache.DestroyFunc {
	return func(e *cache.Entry) {
		*errs = append(*errs, r.destroyEntry(e))
		if r.onEvict != nil {
			r.onEvict(e.Key, e.Name)
		}
	}
}

// destroyEntry runs the terminal transition for an entry already removed
// from the store, tearing down nested regions hosted inside it first.
// Destroying the active entry outside teardown is a contract violation; the
// guard reports it and refuses rather than destroying on-screen content.
func (r *Region) destroyEntry(e *cache.Entry) error {
	if r.activeKey != nil && e.Key == *r.activeKey && !r.torndown {
		err := &keeperrors.Error{
			Op:   "keepalive.destroyEntry",
			Kind: keeperrors.KindPrune,
			Err:  fmt.Errorf("refusing to destroy active entry %v outside teardown", e.Key),
		}
		keeperrors.Report(err)
		return err
	}
	var errs []error
	for _, child := range r.children[e.Key] {
		errs = append(errs, child.Teardown())
	}
	delete(r.children, e.Key)
	errs = append(errs, r.ctrl.Destroy(e.Instance))
	return errors.Join(errs...)
}

// setAncestorActive is pushed down by the parent region when the entry
// hosting this region activates or deactivates.
func (r *Region) setAncestorActive(active bool) error {
	if r.ancestorActive == active {
		return nil
	}
	r.ancestorActive = active
	return r.applyEffective()
}

// applyEffective recomputes the effective-active flag and, when it changes,
// reconciles this region's instances and propagates to the nested regions
// hosted inside the current display.
func (r *Region) applyEffective() error {
	effective := r.ownActive && r.ancestorActive
	if effective == r.effective {
		return nil
	}
	r.effective = effective
	errs := []error{r.ctrl.SetEffectiveActive(effective)}
	if r.activeKey != nil {
		for _, child := range r.children[*r.activeKey] {
			errs = append(errs, child.setAncestorActive(effective))
		}
	}
	for _, child := range r.transientKids {
		errs = append(errs, child.setAncestorActive(effective))
	}
	for _, child := range r.loose {
		errs = append(errs, child.setAncestorActive(effective))
	}
	return errors.Join(errs...)
}

// propagateToChildren informs nested regions hosted inside the entry for key
// that their ancestor activated or deactivated.
func (r *Region) propagateToChildren(key cache.Key, active bool) error {
	var errs []error
	for _, child := range r.children[key] {
		errs = append(errs, child.setAncestorActive(active && r.effective))
	}
	return errors.Join(errs...)
}

// adoptPending registers regions created during the pass under whatever this
// region ended up displaying.
func (r *Region) adoptPending() {
	for _, child := range r.pending {
		r.adoptChild(child)
	}
	r.pending = nil
}

func (r *Region) adoptChild(child *Region) {
	switch {
	case r.activeKey != nil:
		r.children[*r.activeKey] = append(r.children[*r.activeKey], child)
	case r.transient != nil:
		r.transientKids = append(r.transientKids, child)
	default:
		r.loose = append(r.loose, child)
	}
}
