// Package testing provides a fake rendering engine for testing keep-alive
// behavior without a real renderer.
//
// RecordingRenderer implements [render.Renderer] by handing out in-memory
// instance handles and recording every mount, move, unmount, and hook
// invocation for assertions:
//
//	engine := keeptest.NewRecordingRenderer()
//	region := keepalive.NewRegion(engine, keepalive.Options{Max: 2})
//	region.Render(render.Descriptor{Type: "tab", Name: "home"})
//	if engine.HookCount(engine.Instances()[0], render.HookActivated) != 1 { ... }
package testing

import (
	"fmt"

	"github.com/go-drift/keepalive/pkg/render"
)

// Instance is the fake engine's subtree instance handle.
type Instance struct {
	// ID is unique per mount, in mount order starting at 1.
	ID int
	// Desc is the descriptor the instance was mounted with.
	Desc render.Descriptor
	// Unmounted is set once the instance is torn down.
	Unmounted bool
}

func (i *Instance) String() string {
	return fmt.Sprintf("instance#%d(%s)", i.ID, i.Desc.Type)
}

// Output is the fake engine's backing render output handle.
type Output struct {
	Owner *Instance
	// Moves counts how many times the output was reattached.
	Moves int
}

// Event records a single engine call.
type Event struct {
	// Op is one of "mount", "move", "unmount", "hook".
	Op       string
	Instance *Instance
	Hook     render.Hook
}

// RecordingRenderer is a fake engine that records every call.
type RecordingRenderer struct {
	events    []Event
	instances []*Instance
	// descendants simulates the engine's recursive hook dispatch: hooks
	// invoked on a parent are also recorded against linked descendants.
	descendants map[*Instance][]*Instance

	// MountErr, MoveErr, UnmountErr, HookErr inject failures when set.
	MountErr   error
	MoveErr    error
	UnmountErr error
	HookErr    func(instance *Instance, hook render.Hook) error
	// HookPanic, if set, panics with the given value on the next hook.
	HookPanic any
}

// NewRecordingRenderer creates an empty fake engine.
func NewRecordingRenderer() *RecordingRenderer {
	return &RecordingRenderer{descendants: make(map[*Instance][]*Instance)}
}

// Mount implements render.Renderer.
func (r *RecordingRenderer) Mount(d render.Descriptor, _ render.Container, _ render.Anchor) (render.Instance, render.Output, error) {
	if r.MountErr != nil {
		return nil, nil, r.MountErr
	}
	inst := &Instance{ID: len(r.instances) + 1, Desc: d}
	r.instances = append(r.instances, inst)
	r.events = append(r.events, Event{Op: "mount", Instance: inst})
	return inst, &Output{Owner: inst}, nil
}

// Move implements render.Renderer.
func (r *RecordingRenderer) Move(output render.Output, _ render.Container, _ render.Anchor) error {
	if r.MoveErr != nil {
		return r.MoveErr
	}
	out := output.(*Output)
	out.Moves++
	r.events = append(r.events, Event{Op: "move", Instance: out.Owner})
	return nil
}

// Unmount implements render.Renderer.
func (r *RecordingRenderer) Unmount(instance render.Instance) error {
	if r.UnmountErr != nil {
		return r.UnmountErr
	}
	inst := instance.(*Instance)
	inst.Unmounted = true
	r.events = append(r.events, Event{Op: "unmount", Instance: inst})
	return nil
}

// InvokeHook implements render.Renderer, recording the hook against the
// instance and every linked descendant.
func (r *RecordingRenderer) InvokeHook(instance render.Instance, hook render.Hook) error {
	if r.HookPanic != nil {
		value := r.HookPanic
		r.HookPanic = nil
		panic(value)
	}
	inst := instance.(*Instance)
	if r.HookErr != nil {
		if err := r.HookErr(inst, hook); err != nil {
			return err
		}
	}
	r.record(inst, hook)
	return nil
}

func (r *RecordingRenderer) record(inst *Instance, hook render.Hook) {
	r.events = append(r.events, Event{Op: "hook", Instance: inst, Hook: hook})
	for _, child := range r.descendants[inst] {
		r.record(child, hook)
	}
}

// Link registers child as a descendant of parent for recursive hook
// dispatch.
func (r *RecordingRenderer) Link(parent, child *Instance) {
	r.descendants[parent] = append(r.descendants[parent], child)
}

// Events returns every recorded call in order.
func (r *RecordingRenderer) Events() []Event {
	return r.events
}

// Instances returns every instance ever mounted, in mount order.
func (r *RecordingRenderer) Instances() []*Instance {
	return r.instances
}

// InstanceFor returns the most recently mounted instance for a type.
func (r *RecordingRenderer) InstanceFor(t render.TypeID) *Instance {
	for i := len(r.instances) - 1; i >= 0; i-- {
		if r.instances[i].Desc.Type == t {
			return r.instances[i]
		}
	}
	return nil
}

// HookCount reports how many times hook was delivered to instance.
func (r *RecordingRenderer) HookCount(instance *Instance, hook render.Hook) int {
	count := 0
	for _, ev := range r.events {
		if ev.Op == "hook" && ev.Instance == instance && ev.Hook == hook {
			count++
		}
	}
	return count
}

// MountCount reports how many instances were mounted for a type.
func (r *RecordingRenderer) MountCount(t render.TypeID) int {
	count := 0
	for _, inst := range r.instances {
		if inst.Desc.Type == t {
			count++
		}
	}
	return count
}

// Reset clears recorded events but keeps live instances.
func (r *RecordingRenderer) Reset() {
	r.events = nil
}
