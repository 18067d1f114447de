// Package rigid is a minimal model host: skeletons made of independent,
// named joint DOFs with per-DOF inertia and viscous damping, integrated with
// semi-implicit Euler. It stands in for a full dynamics engine so the
// emulator can run and be tested end to end.
package rigid

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/golems/hubo-ach-sim/bridge"
)

// DofSpec describes one DOF.
type DofSpec struct {
	Name    string  `yaml:"name"`
	Inertia float64 `yaml:"inertia"` // 0 means 1
	Damping float64 `yaml:"damping"`
}

// SkeletonSpec describes one skeleton.
type SkeletonSpec struct {
	Name   string    `yaml:"name"`
	Dofs   []DofSpec `yaml:"dofs"`
	Bodies []string  `yaml:"bodies"`
}

// WorldSpec is the YAML model file format.
type WorldSpec struct {
	TimeStep  float64        `yaml:"timestep"`
	Skeletons []SkeletonSpec `yaml:"skeletons"`
}

// Validate checks names and physical parameters.
func (s *WorldSpec) Validate() error {
	if s.TimeStep <= 0 {
		return fmt.Errorf("timestep must be positive, got %g", s.TimeStep)
	}
	if len(s.Skeletons) == 0 {
		return fmt.Errorf("world has no skeletons")
	}
	for _, sk := range s.Skeletons {
		if sk.Name == "" {
			return fmt.Errorf("skeleton without a name")
		}
		for i, d := range sk.Dofs {
			if d.Name == "" {
				return fmt.Errorf("skeleton %s: dof %d has no name", sk.Name, i)
			}
			if d.Inertia < 0 || d.Damping < 0 {
				return fmt.Errorf("skeleton %s: dof %s: inertia and damping must be non-negative", sk.Name, d.Name)
			}
		}
	}
	return nil
}

// LoadWorldSpec reads a model file with strict field checking.
func LoadWorldSpec(path string) (*WorldSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}
	var spec WorldSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing model file %s: %w", path, err)
	}
	return &spec, nil
}

// World holds skeletons and simulated time.
type World struct {
	time      float64
	dt        float64
	skeletons []*Skeleton
}

// NewWorld builds a world at time zero.
func NewWorld(spec WorldSpec) (*World, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	w := &World{dt: spec.TimeStep}
	for _, sk := range spec.Skeletons {
		w.skeletons = append(w.skeletons, newSkeleton(sk))
	}
	return w, nil
}

func (w *World) NumSkeletons() int              { return len(w.skeletons) }
func (w *World) Skeleton(i int) bridge.Skeleton { return w.skeletons[i] }
func (w *World) Time() float64                  { return w.time }
func (w *World) TimeStep() float64              { return w.dt }

// Step integrates every skeleton over one timestep.
func (w *World) Step() {
	for _, s := range w.skeletons {
		s.integrate(w.dt)
	}
	w.time += w.dt
}

// StepHooks are called around each integration step.
type StepHooks interface {
	BeforeStep()
	AfterStep()
}

// Simulate runs steps timesteps (forever when steps <= 0) with hooks around
// each. With realtime set, each step is paced to the wall clock. It stops
// early when ctx is cancelled.
func (w *World) Simulate(ctx context.Context, hooks StepHooks, steps int, realtime bool) error {
	var ticker *time.Ticker
	if realtime {
		ticker = time.NewTicker(time.Duration(w.dt * float64(time.Second)))
		defer ticker.Stop()
	}
	for i := 0; steps <= 0 || i < steps; i++ {
		select {
		case <-ctx.Done():
			logrus.Infof("[t=%.3fs] simulation interrupted after %d steps", w.time, i)
			return ctx.Err()
		default:
		}
		hooks.BeforeStep()
		w.Step()
		hooks.AfterStep()
		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	logrus.Infof("[t=%.3fs] simulation ended", w.time)
	return nil
}

// Skeleton is a set of independent DOFs plus named bodies.
type Skeleton struct {
	name     string
	dofNames []string
	bodies   []string
	inertia  []float64
	damping  []float64
	q        []float64
	qd       []float64
	tau      []float64
}

func newSkeleton(spec SkeletonSpec) *Skeleton {
	n := len(spec.Dofs)
	s := &Skeleton{
		name:     spec.Name,
		dofNames: make([]string, n),
		bodies:   append([]string(nil), spec.Bodies...),
		inertia:  make([]float64, n),
		damping:  make([]float64, n),
		q:        make([]float64, n),
		qd:       make([]float64, n),
		tau:      make([]float64, n),
	}
	for i, d := range spec.Dofs {
		s.dofNames[i] = d.Name
		s.inertia[i] = d.Inertia
		if s.inertia[i] == 0 {
			s.inertia[i] = 1
		}
		s.damping[i] = d.Damping
	}
	return s
}

func (s *Skeleton) Name() string          { return s.name }
func (s *Skeleton) NumDofs() int          { return len(s.dofNames) }
func (s *Skeleton) DofName(i int) string  { return s.dofNames[i] }
func (s *Skeleton) NumBodies() int        { return len(s.bodies) }
func (s *Skeleton) BodyName(i int) string { return s.bodies[i] }
func (s *Skeleton) Pose() []float64       { return s.q }
func (s *Skeleton) Velocity() []float64   { return s.qd }

// SetInternalForces sets the joint torques held until the next call.
func (s *Skeleton) SetInternalForces(tau []float64) {
	copy(s.tau, tau)
}

// SetPose overwrites the joint positions, for initial conditions.
func (s *Skeleton) SetPose(q []float64) {
	copy(s.q, q)
}

func (s *Skeleton) integrate(dt float64) {
	for i := range s.q {
		acc := (s.tau[i] - s.damping[i]*s.qd[i]) / s.inertia[i]
		s.qd[i] += acc * dt
		s.q[i] += s.qd[i] * dt
	}
}
