package rigid

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golems/hubo-ach-sim/bridge"
)

type countingHooks struct {
	before, after int
	cancelAt      int
	cancel        context.CancelFunc
}

func (h *countingHooks) BeforeStep() { h.before++ }

func (h *countingHooks) AfterStep() {
	h.after++
	if h.cancel != nil && h.after == h.cancelAt {
		h.cancel()
	}
}

func TestNewWorld_Validates(t *testing.T) {
	tests := []struct {
		name string
		spec WorldSpec
	}{
		{"zero timestep", WorldSpec{Skeletons: []SkeletonSpec{HuboPlus()}}},
		{"no skeletons", WorldSpec{TimeStep: 0.001}},
		{"unnamed skeleton", WorldSpec{TimeStep: 0.001, Skeletons: []SkeletonSpec{{}}}},
		{"unnamed dof", WorldSpec{TimeStep: 0.001, Skeletons: []SkeletonSpec{{Name: "s", Dofs: []DofSpec{{}}}}}},
		{"negative damping", WorldSpec{TimeStep: 0.001, Skeletons: []SkeletonSpec{
			{Name: "s", Dofs: []DofSpec{{Name: "a", Damping: -1}}},
		}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewWorld(tc.spec)
			assert.Error(t, err)
		})
	}
}

func TestSkeleton_Integrate(t *testing.T) {
	w, err := NewWorld(WorldSpec{TimeStep: 0.1, Skeletons: []SkeletonSpec{{
		Name: "s",
		Dofs: []DofSpec{{Name: "a", Inertia: 2}, {Name: "b", Damping: 1}},
	}}})
	require.NoError(t, err)
	s := w.Skeleton(0).(*Skeleton)
	s.SetPose([]float64{1, 0})
	s.SetInternalForces([]float64{4, 0})
	s.qd[1] = 1

	w.Step()

	// a: acc 2, qd 0.2, q 1.02. b: acc -1, qd 0.9, q 0.09.
	assert.InDeltaSlice(t, []float64{0.2, 0.9}, s.Velocity(), 1e-12)
	assert.InDeltaSlice(t, []float64{1.02, 0.09}, s.Pose(), 1e-12)
	assert.InDelta(t, 0.1, w.Time(), 1e-12)
}

func TestSimulate_RunsHooksAroundSteps(t *testing.T) {
	w, err := NewWorld(HuboPlusWorld(0.001))
	require.NoError(t, err)
	hooks := &countingHooks{}

	require.NoError(t, w.Simulate(context.Background(), hooks, 25, false))
	assert.Equal(t, 25, hooks.before)
	assert.Equal(t, 25, hooks.after)
	assert.InDelta(t, 0.025, w.Time(), 1e-9)
}

func TestSimulate_StopsOnCancel(t *testing.T) {
	w, err := NewWorld(HuboPlusWorld(0.001))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hooks := &countingHooks{cancelAt: 10, cancel: cancel}

	err = w.Simulate(ctx, hooks, 0, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 10, hooks.after)
}

func TestSimulate_Realtime(t *testing.T) {
	w, err := NewWorld(HuboPlusWorld(0.001))
	require.NoError(t, err)
	require.NoError(t, w.Simulate(context.Background(), &countingHooks{}, 5, true))
	assert.InDelta(t, 0.005, w.Time(), 1e-9)
}

func TestHuboPlus_MapsOntoDefaultCatalog(t *testing.T) {
	w, err := NewWorld(HuboPlusWorld(0.001))
	require.NoError(t, err)
	skel, err := bridge.FindSkeleton(w, []string{"huboplus", "GolemHubo"})
	require.NoError(t, err)

	c := bridge.DefaultCatalog()
	corr, err := bridge.BuildCorrespondence(c.Joints[:], bridge.Dofs(skel), bridge.HuboAliases)
	require.NoError(t, err)
	assert.Equal(t, 27, corr.Len())
	assert.Equal(t, 34, skel.NumDofs())

	for _, body := range []string{"Body_Hip", "Body_LAR", "Body_RAR"} {
		assert.NotEqual(t, bridge.Unmapped, bridge.FindBody(skel, body), body)
	}
}

func TestLoadWorldSpec(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "arm.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
timestep: 0.002
skeletons:
  - name: arm
    dofs:
      - name: RSP
        inertia: 0.5
      - name: REP
        damping: 0.1
    bodies: [Body_Hip, Body_LAR, Body_RAR]
`), 0o644))

	spec, err := LoadWorldSpec(good)
	require.NoError(t, err)
	assert.Equal(t, 0.002, spec.TimeStep)
	require.Len(t, spec.Skeletons, 1)
	assert.Equal(t, "REP", spec.Skeletons[0].Dofs[1].Name)
	assert.Equal(t, 0.1, spec.Skeletons[0].Dofs[1].Damping)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("timestep: 0.001\ngravity: 9.8\n"), 0o644))
	_, err = LoadWorldSpec(bad)
	assert.Error(t, err, "unknown fields are rejected")

	_, err = LoadWorldSpec(filepath.Join(dir, "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
