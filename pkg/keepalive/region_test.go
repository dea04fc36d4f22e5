package keepalive_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/keepalive/pkg/cache"
	keeperrors "github.com/go-drift/keepalive/pkg/errors"
	"github.com/go-drift/keepalive/pkg/keepalive"
	"github.com/go-drift/keepalive/pkg/match"
	"github.com/go-drift/keepalive/pkg/render"
	keeptest "github.com/go-drift/keepalive/pkg/testing"
)

func desc(t render.TypeID) render.Descriptor {
	return render.Descriptor{Type: t, Name: string(t)}
}

type capturingHandler struct {
	errs  []*keeperrors.Error
	hooks []*keeperrors.HookError
}

func (h *capturingHandler) HandleError(err *keeperrors.Error) { h.errs = append(h.errs, err) }
func (h *capturingHandler) HandleHookError(err *keeperrors.HookError) {
	h.hooks = append(h.hooks, err)
}

func capture(t *testing.T) *capturingHandler {
	t.Helper()
	h := &capturingHandler{}
	keeperrors.SetHandler(h)
	t.Cleanup(func() { keeperrors.SetHandler(nil) })
	return h
}

func TestRegion_RoundTripRestoresInstance(t *testing.T) {
	engine := keeptest.NewRecordingRenderer()
	region := keepalive.NewRegion(engine, keepalive.Options{})

	first, err := region.Render(desc("a"))
	require.NoError(t, err)
	_, err = region.Render(desc("b"))
	require.NoError(t, err)
	again, err := region.Render(desc("a"))
	require.NoError(t, err)

	// Switching back restores the exact prior instance, no recreation.
	assert.Same(t, first, again)
	assert.Equal(t, 1, engine.MountCount("a"))

	a := engine.InstanceFor("a")
	assert.Equal(t, 1, engine.HookCount(a, render.HookCreated))
	assert.Equal(t, 1, engine.HookCount(a, render.HookMounted))
	assert.Equal(t, 2, engine.HookCount(a, render.HookActivated))
	assert.Equal(t, 1, engine.HookCount(a, render.HookDeactivated))
	assert.Zero(t, engine.HookCount(a, render.HookUnmounted))
}

func TestRegion_SameCandidateRedisplayIsANoop(t *testing.T) {
	engine := keeptest.NewRecordingRenderer()
	region := keepalive.NewRegion(engine, keepalive.Options{})

	first, err := region.Render(desc("a"))
	require.NoError(t, err)
	same, err := region.Render(desc("a"))
	require.NoError(t, err)

	assert.Same(t, first, same)
	a := engine.InstanceFor("a")
	assert.Equal(t, 1, engine.HookCount(a, render.HookActivated))
}

func TestRegion_CapacityScenario(t *testing.T) {
	// With max=2 and entries A, B, C displayed in order A, B, C, B, A:
	// showing C evicts A; returning to B is a cache hit; returning to A
	// mounts fresh and evicts C.
	engine := keeptest.NewRecordingRenderer()
	var evicted []cache.Key
	region := keepalive.NewRegion(engine, keepalive.Options{
		Max:     2,
		OnEvict: func(key cache.Key, _ string) { evicted = append(evicted, key) },
	})

	for _, step := range []render.TypeID{"A", "B", "C"} {
		_, err := region.Render(desc(step))
		require.NoError(t, err)
	}
	assert.Equal(t, []cache.Key{{Type: "A"}}, evicted)
	assert.True(t, engine.InstanceFor("A").Unmounted)
	assert.Equal(t, 1, engine.MountCount("A"))

	_, err := region.Render(desc("B"))
	require.NoError(t, err)
	assert.Equal(t, 1, engine.MountCount("B"), "cache hit must not remount")
	assert.Len(t, evicted, 1, "touching must not trigger eviction")

	_, err = region.Render(desc("A"))
	require.NoError(t, err)
	assert.Equal(t, 2, engine.MountCount("A"), "fresh creation after eviction")
	assert.Equal(t, []cache.Key{{Type: "A"}, {Type: "C"}}, evicted)
	assert.True(t, engine.InstanceFor("C").Unmounted)
	assert.False(t, engine.InstanceFor("B").Unmounted)
}

func TestRegion_ActiveEntryNeverEvictedByCapacity(t *testing.T) {
	engine := keeptest.NewRecordingRenderer()
	region := keepalive.NewRegion(engine, keepalive.Options{Max: 1})

	_, err := region.Render(desc("a"))
	require.NoError(t, err)
	_, err = region.Render(desc("b"))
	require.NoError(t, err)

	// a was evicted; b, the display, survives its own insertion.
	assert.True(t, engine.InstanceFor("a").Unmounted)
	assert.False(t, engine.InstanceFor("b").Unmounted)
	assert.Equal(t, 1, region.Len())
}

func TestRegion_FilterChangePrunesNonActive(t *testing.T) {
	engine := keeptest.NewRecordingRenderer()
	region := keepalive.NewRegion(engine, keepalive.Options{})

	for _, step := range []render.TypeID{"a", "b", "c"} {
		_, err := region.Render(desc(step))
		require.NoError(t, err)
	}
	require.Equal(t, 3, region.Len())

	// Keep only "a"; "b" goes immediately, "c" is active and exempt.
	require.NoError(t, region.SetFilter(match.Set{"a"}, nil))
	assert.Equal(t, 2, region.Len())
	assert.True(t, engine.InstanceFor("b").Unmounted)
	assert.False(t, engine.InstanceFor("a").Unmounted)
	assert.False(t, engine.InstanceFor("c").Unmounted)
}

func TestRegion_FilterActiveGuardScenario(t *testing.T) {
	// With include={"foo"}, displaying foo, widening to {"foo","bar"},
	// then narrowing to the empty set must never unmount foo while it
	// remains the active display.
	engine := keeptest.NewRecordingRenderer()
	region := keepalive.NewRegion(engine, keepalive.Options{Include: match.Set{"foo"}})

	first, err := region.Render(desc("foo"))
	require.NoError(t, err)

	require.NoError(t, region.SetFilter(match.Set{"foo", "bar"}, nil))
	require.NoError(t, region.SetFilter(match.Set{}, nil))

	assert.False(t, engine.InstanceFor("foo").Unmounted)
	assert.Same(t, first, region.Current())
	assert.Equal(t, 1, region.Len())
}

func TestRegion_AnonymousCandidates(t *testing.T) {
	anon := render.Descriptor{Type: "anon"}

	t.Run("cached by default without include", func(t *testing.T) {
		engine := keeptest.NewRecordingRenderer()
		region := keepalive.NewRegion(engine, keepalive.Options{Exclude: match.Exact("x")})
		_, err := region.Render(anon)
		require.NoError(t, err)
		assert.Equal(t, 1, region.Len())
	})

	t.Run("never cached when include is set", func(t *testing.T) {
		engine := keeptest.NewRecordingRenderer()
		region := keepalive.NewRegion(engine, keepalive.Options{Include: match.Set{"anon"}})
		_, err := region.Render(anon)
		require.NoError(t, err)
		assert.Zero(t, region.Len())
	})
}

func TestRegion_NonCacheableDestroyedWhenSuperseded(t *testing.T) {
	engine := keeptest.NewRecordingRenderer()
	region := keepalive.NewRegion(engine, keepalive.Options{Exclude: match.Exact("x")})

	_, err := region.Render(desc("x"))
	require.NoError(t, err)
	x := engine.InstanceFor("x")
	assert.Equal(t, 1, engine.HookCount(x, render.HookCreated))
	assert.Equal(t, 1, engine.HookCount(x, render.HookMounted))
	assert.Zero(t, engine.HookCount(x, render.HookActivated))
	assert.Zero(t, region.Len())

	_, err = region.Render(desc("y"))
	require.NoError(t, err)
	assert.True(t, x.Unmounted)
	assert.Zero(t, engine.HookCount(x, render.HookDeactivated))
	assert.Equal(t, 1, engine.HookCount(x, render.HookUnmounted))
}

func TestRegion_NegativeMaxFallsBackToUnbounded(t *testing.T) {
	handler := capture(t)
	engine := keeptest.NewRecordingRenderer()
	region := keepalive.NewRegion(engine, keepalive.Options{Max: -3})

	require.Len(t, handler.errs, 1)
	assert.Equal(t, keeperrors.KindConfig, handler.errs[0].Kind)

	for _, step := range []render.TypeID{"a", "b", "c", "d"} {
		_, err := region.Render(desc(step))
		require.NoError(t, err)
	}
	assert.Equal(t, 4, region.Len())
}

func TestRegion_AmbiguousKeyReplacesStaleEntry(t *testing.T) {
	handler := capture(t)
	engine := keeptest.NewRecordingRenderer()
	region := keepalive.NewRegion(engine, keepalive.Options{})

	stale, err := region.Render(render.Descriptor{Type: "widget", Name: "first"})
	require.NoError(t, err)

	// Same key, different underlying descriptor: fresh mount, no crash.
	fresh, err := region.Render(render.Descriptor{Type: "widget", Name: "second"})
	require.NoError(t, err)

	assert.NotSame(t, stale, fresh)
	assert.True(t, stale.(*keeptest.Instance).Unmounted)
	assert.Equal(t, 1, region.Len())
	require.NotEmpty(t, handler.errs)
	assert.Equal(t, keeperrors.KindKey, handler.errs[0].Kind)
}

func TestRegion_EmptyDescriptorDeactivatesWithoutDestroying(t *testing.T) {
	engine := keeptest.NewRecordingRenderer()
	region := keepalive.NewRegion(engine, keepalive.Options{})

	first, err := region.Render(desc("a"))
	require.NoError(t, err)
	_, err = region.Render(render.Descriptor{})
	require.NoError(t, err)

	a := engine.InstanceFor("a")
	assert.Nil(t, region.Current())
	assert.False(t, a.Unmounted)
	assert.Equal(t, 1, engine.HookCount(a, render.HookDeactivated))

	again, err := region.Render(desc("a"))
	require.NoError(t, err)
	assert.Same(t, first, again)
}

func TestRegion_TeardownDestroysEverythingIncludingActive(t *testing.T) {
	engine := keeptest.NewRecordingRenderer()
	region := keepalive.NewRegion(engine, keepalive.Options{})

	for _, step := range []render.TypeID{"a", "b"} {
		_, err := region.Render(desc(step))
		require.NoError(t, err)
	}

	require.NoError(t, region.Teardown())
	for _, inst := range engine.Instances() {
		assert.True(t, inst.Unmounted, "%v should be unmounted", inst)
		assert.Equal(t, 1, engine.HookCount(inst, render.HookUnmounted))
	}
	assert.Zero(t, region.Len())

	_, err := region.Render(desc("a"))
	assert.ErrorIs(t, err, keepalive.ErrTornDown)
	assert.NoError(t, region.Teardown(), "teardown is idempotent")
}

func TestRegion_MountErrorSurfacesAsEngineError(t *testing.T) {
	engine := keeptest.NewRecordingRenderer()
	engine.MountErr = errors.New("surface lost")
	region := keepalive.NewRegion(engine, keepalive.Options{})

	_, err := region.Render(desc("a"))
	require.Error(t, err)
	var keepErr *keeperrors.Error
	require.ErrorAs(t, err, &keepErr)
	assert.Equal(t, keeperrors.KindEngine, keepErr.Kind)
	assert.Zero(t, region.Len())
}

func TestRegion_HookFailureDoesNotAbortBookkeeping(t *testing.T) {
	capture(t)
	engine := keeptest.NewRecordingRenderer()
	boom := errors.New("activated hook failed")
	engine.HookErr = func(_ *keeptest.Instance, hook render.Hook) error {
		if hook == render.HookActivated {
			return boom
		}
		return nil
	}
	region := keepalive.NewRegion(engine, keepalive.Options{})

	inst, err := region.Render(desc("a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	// The insert and activeKey update completed regardless.
	assert.Equal(t, 1, region.Len())
	assert.Same(t, inst, region.Current())
	key, ok := region.ActiveKey()
	require.True(t, ok)
	assert.Equal(t, cache.Key{Type: "a"}, key)
}

func TestRegion_CurrentAndKeys(t *testing.T) {
	engine := keeptest.NewRecordingRenderer()
	region := keepalive.NewRegion(engine, keepalive.Options{})

	assert.Nil(t, region.Current())

	_, err := region.Render(desc("a"))
	require.NoError(t, err)
	_, err = region.Render(desc("b"))
	require.NoError(t, err)

	assert.Same(t, engine.InstanceFor("b"), region.Current())
	assert.Equal(t, []cache.Key{{Type: "a"}, {Type: "b"}}, region.Keys())
}

func TestRegion_SetCapacityEvictsImmediately(t *testing.T) {
	engine := keeptest.NewRecordingRenderer()
	region := keepalive.NewRegion(engine, keepalive.Options{})

	for _, step := range []render.TypeID{"a", "b", "c"} {
		_, err := region.Render(desc(step))
		require.NoError(t, err)
	}

	require.NoError(t, region.SetCapacity(1))
	assert.Equal(t, 1, region.Len())
	assert.True(t, engine.InstanceFor("a").Unmounted)
	assert.True(t, engine.InstanceFor("b").Unmounted)
	// The active entry survives even when over the new bound.
	assert.False(t, engine.InstanceFor("c").Unmounted)
}
