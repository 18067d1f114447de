package bridge

import (
	"errors"
	"fmt"
	"testing"
)

// fakeTransport is a latest-frame transport that records handle lifetimes.
type fakeTransport struct {
	frames  map[string][]byte
	seq     map[string]int
	missing map[string]bool
	open    map[string]int
	closes  map[string]int
	getErr  error
	putErr  error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		frames:  make(map[string][]byte),
		seq:     make(map[string]int),
		missing: make(map[string]bool),
		open:    make(map[string]int),
		closes:  make(map[string]int),
	}
}

func (f *fakeTransport) Open(name string) (Channel, error) {
	if f.missing[name] {
		return nil, fmt.Errorf("no channel %q", name)
	}
	f.open[name]++
	return &fakeChannel{t: f, name: name}, nil
}

func (f *fakeTransport) publish(name string, frame []byte) {
	f.frames[name] = append([]byte(nil), frame...)
	f.seq[name]++
}

type fakeChannel struct {
	t       *fakeTransport
	name    string
	lastSeq int
	closed  bool
}

func (c *fakeChannel) Get(buf []byte) (int, error) {
	if c.t.getErr != nil {
		return 0, c.t.getErr
	}
	if c.t.seq[c.name] == c.lastSeq {
		return 0, ErrNoNewData
	}
	c.lastSeq = c.t.seq[c.name]
	return copy(buf, c.t.frames[c.name]), nil
}

func (c *fakeChannel) Put(frame []byte) error {
	if c.t.putErr != nil {
		return c.t.putErr
	}
	c.t.publish(c.name, frame)
	return nil
}

func (c *fakeChannel) Close() error {
	if c.closed {
		return errors.New("double close")
	}
	c.closed = true
	c.t.open[c.name]--
	c.t.closes[c.name]++
	return nil
}

// refFrame encodes a reference message with the given physical joint values.
func refFrame(t *testing.T, values map[int]float64) []byte {
	t.Helper()
	var msg ReferenceMessage
	for p, v := range values {
		msg.Ref[p] = v
	}
	buf := make([]byte, RefFrameSize)
	if err := msg.Encode(buf); err != nil {
		t.Fatalf("encode reference: %v", err)
	}
	return buf
}

type fakeSkeleton struct {
	name   string
	dofs   []string
	bodies []string
	q, qd  []float64
	tau    []float64
}

func newFakeSkeleton(name string, dofs, bodies []string) *fakeSkeleton {
	return &fakeSkeleton{
		name:   name,
		dofs:   dofs,
		bodies: bodies,
		q:      make([]float64, len(dofs)),
		qd:     make([]float64, len(dofs)),
		tau:    make([]float64, len(dofs)),
	}
}

func (s *fakeSkeleton) Name() string                    { return s.name }
func (s *fakeSkeleton) NumDofs() int                    { return len(s.dofs) }
func (s *fakeSkeleton) DofName(i int) string            { return s.dofs[i] }
func (s *fakeSkeleton) NumBodies() int                  { return len(s.bodies) }
func (s *fakeSkeleton) BodyName(i int) string           { return s.bodies[i] }
func (s *fakeSkeleton) Pose() []float64                 { return s.q }
func (s *fakeSkeleton) Velocity() []float64             { return s.qd }
func (s *fakeSkeleton) SetInternalForces(tau []float64) { copy(s.tau, tau) }

type fakeWorld struct {
	time, dt  float64
	skeletons []*fakeSkeleton
}

func (w *fakeWorld) NumSkeletons() int         { return len(w.skeletons) }
func (w *fakeWorld) Skeleton(i int) Skeleton   { return w.skeletons[i] }
func (w *fakeWorld) Time() float64             { return w.time }
func (w *fakeWorld) TimeStep() float64         { return w.dt }

// huboWorld is a small Hubo-like model: two root DOFs, then a handful of
// joints named the way the model names them.
func huboWorld() (*fakeWorld, *fakeSkeleton) {
	skel := newFakeSkeleton("huboplus",
		[]string{"root_x", "root_y", "HPY", "RKP", "LKP", "REP", "NKY"},
		[]string{"Body_Torso", "Body_Hip", "Body_LAR", "Body_RAR"})
	return &fakeWorld{dt: 0.001, skeletons: []*fakeSkeleton{skel}}, skel
}

// stubController records what the emulator feeds it.
type stubController struct {
	cfg     ControllerConfig
	targets []float64
	tau     []float64
	calls   int
	lastT   float64
}

func (c *stubController) Targets() []float64 { return c.targets }

func (c *stubController) Torques(pose, vel []float64, t float64) []float64 {
	c.calls++
	c.lastT = t
	for i := range c.tau {
		c.tau[i] = c.targets[i] - pose[i]
	}
	return c.tau
}

// installStubController replaces NewControllerFunc for the test's duration
// and returns a pointer to the most recently built stub.
func installStubController(t *testing.T) **stubController {
	t.Helper()
	prev := NewControllerFunc
	var built *stubController
	NewControllerFunc = func(cfg ControllerConfig) (Controller, error) {
		built = &stubController{
			cfg:     cfg,
			targets: make([]float64, len(cfg.Kp)),
			tau:     make([]float64, len(cfg.Kp)),
		}
		return built, nil
	}
	t.Cleanup(func() { NewControllerFunc = prev })
	return &built
}
