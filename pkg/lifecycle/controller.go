package lifecycle

import (
	"errors"
	"time"

	keeperrors "github.com/go-drift/keepalive/pkg/errors"
	"github.com/go-drift/keepalive/pkg/render"
)

// record tracks one cached instance. actual is the state the instance is
// really in; notified is the state it was last told about through a hook.
// The two drift apart only while hook delivery is suppressed.
type record struct {
	actual   State
	notified State
}

// Controller governs activate/deactivate/unmount transitions for the cached
// instances of a single region.
//
// While the region's effective-active flag is false, activate and deactivate
// hooks are deferred: internal state still updates, and when the flag turns
// true again the controller fires exactly one transition per instance to
// close the gap between its last-notified and actual state. Creation, mount,
// and unmount hooks are never suppressed.
//
// Not safe for concurrent use; all transitions happen within one render pass.
type Controller struct {
	renderer        render.Renderer
	records         map[render.Instance]*record
	effectiveActive bool
}

// NewController creates a controller for a region whose effective-active
// flag starts out as given.
func NewController(renderer render.Renderer, effectiveActive bool) *Controller {
	return &Controller{
		renderer:        renderer,
		records:         make(map[render.Instance]*record),
		effectiveActive: effectiveActive,
	}
}

// EffectiveActive reports whether hooks are currently delivered.
func (c *Controller) EffectiveActive() bool {
	return c.effectiveActive
}

// MountFresh runs the creation and mount hooks for a newly mounted cacheable
// instance, then activates it. Creation and mount always fire; the activate
// hook is deferred if the region is not effectively active.
func (c *Controller) MountFresh(instance render.Instance) error {
	errs := []error{
		c.invoke(instance, render.HookCreated),
		c.invoke(instance, render.HookMounted),
	}
	r := &record{actual: StateActive, notified: StateDeactivated}
	c.records[instance] = r
	if c.effectiveActive {
		errs = append(errs, c.invoke(instance, render.HookActivated))
		r.notified = StateActive
	}
	return errors.Join(errs...)
}

// MountTransient runs the creation and mount hooks for a non-cacheable
// instance. Transient instances never receive activate or deactivate.
func (c *Controller) MountTransient(instance render.Instance) error {
	return errors.Join(
		c.invoke(instance, render.HookCreated),
		c.invoke(instance, render.HookMounted),
	)
}

// Activate marks a cached instance as the region's current display. The
// activate hook fires unless delivery is suppressed, in which case only the
// internal state updates and the hook is owed at reconciliation time.
func (c *Controller) Activate(instance render.Instance) error {
	r := c.record(instance)
	r.actual = StateActive
	if !c.effectiveActive || r.notified == StateActive {
		return nil
	}
	err := c.invoke(instance, render.HookActivated)
	r.notified = StateActive
	return err
}

// Deactivate marks a cached instance as hidden. The deactivate hook fires
// unless delivery is suppressed.
func (c *Controller) Deactivate(instance render.Instance) error {
	r := c.record(instance)
	r.actual = StateDeactivated
	if !c.effectiveActive || r.notified == StateDeactivated {
		return nil
	}
	err := c.invoke(instance, render.HookDeactivated)
	r.notified = StateDeactivated
	return err
}

// Destroy runs the terminal transition: the unmount hook fires and the
// engine tears the instance down. Destruction is never suppressed; the
// engine must release resources immediately. Valid for both cached and
// transient instances.
func (c *Controller) Destroy(instance render.Instance) error {
	hookErr := c.invoke(instance, render.HookUnmounted)
	delete(c.records, instance)
	if err := c.renderer.Unmount(instance); err != nil {
		return errors.Join(hookErr, &keeperrors.Error{
			Op:   "lifecycle.Destroy",
			Kind: keeperrors.KindEngine,
			Err:  err,
		})
	}
	return hookErr
}

// SetEffectiveActive updates the region's effective-active flag.
//
// Turning the flag off fires one deactivate per instance that was last
// notified as active; after that, every change inside the window is
// suppressed. Turning the flag on performs one resolution pass, firing
// exactly one transition per instance whose notified state drifted from its
// actual state while the window was open. Changes that begin and end inside
// the window produce no hooks at all.
func (c *Controller) SetEffectiveActive(active bool) error {
	if active == c.effectiveActive {
		return nil
	}
	c.effectiveActive = active

	var errs []error
	for instance, r := range c.records {
		if r.notified == r.actual && active {
			continue
		}
		if active {
			hook := render.HookDeactivated
			if r.actual == StateActive {
				hook = render.HookActivated
			}
			errs = append(errs, c.invoke(instance, hook))
			r.notified = r.actual
		} else if r.notified == StateActive {
			errs = append(errs, c.invoke(instance, render.HookDeactivated))
			r.notified = StateDeactivated
		}
	}
	return errors.Join(errs...)
}

// States returns the actual state of instance, for diagnostics and tests.
func (c *Controller) States(instance render.Instance) (actual, notified State, ok bool) {
	r, ok := c.records[instance]
	if !ok {
		return 0, 0, false
	}
	return r.actual, r.notified, true
}

func (c *Controller) record(instance render.Instance) *record {
	r, ok := c.records[instance]
	if !ok {
		r = &record{actual: StateDeactivated, notified: StateDeactivated}
		c.records[instance] = r
	}
	return r
}

// invoke dispatches a hook through the engine, which applies it recursively
// to descendant instances. Failures and panics are reported and returned,
// never propagated as panics: the caller's bookkeeping must always complete.
func (c *Controller) invoke(instance render.Instance, hook render.Hook) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			hookErr := &keeperrors.HookError{
				Op:         "lifecycle.invoke",
				Hook:       hook.String(),
				Recovered:  rec,
				StackTrace: keeperrors.CaptureStack(),
				Timestamp:  time.Now(),
			}
			keeperrors.ReportHook(hookErr)
			err = hookErr
		}
	}()
	if callErr := c.renderer.InvokeHook(instance, hook); callErr != nil {
		hookErr := &keeperrors.HookError{
			Op:   "lifecycle.invoke",
			Hook: hook.String(),
			Err:  callErr,
		}
		keeperrors.ReportHook(hookErr)
		return hookErr
	}
	return nil
}
