package bridge

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// State is the emulator lifecycle state.
type State int

const (
	StateUnloaded State = iota
	StateInitializing
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Gains are the uniform PID gains applied to every closed-loop DOF.
type Gains struct {
	Kp              float64
	Ki              float64
	Kd              float64
	PassiveRootDofs int // leading DOFs (floating base) left out of the loop
}

// Options configure an Emulator.
type Options struct {
	Transport    Transport
	RefChannel   string
	StateChannel string

	Catalog   *Catalog   // nil = DefaultCatalog()
	Aliases   AliasTable // nil = HuboAliases
	Skeletons []string   // skeleton names to search, later names win

	WaistBody     string
	LeftFootBody  string
	RightFootBody string

	Gains Gains
}

// DefaultOptions returns the stock Hubo+ settings without a transport.
func DefaultOptions() Options {
	return Options{
		RefChannel:    "hubo-ref",
		StateChannel:  "hubo-state",
		Skeletons:     []string{"huboplus", "GolemHubo"},
		WaistBody:     "Body_Hip",
		LeftFootBody:  "Body_LAR",
		RightFootBody: "Body_RAR",
		Gains:         Gains{Kp: 1000, Ki: 100, Kd: 100, PassiveRootDofs: 5},
	}
}

// StateObserver receives every published state frame. It is called on the
// step path and must not block or retain msg.
type StateObserver interface {
	ObserveState(msg *StateMessage)
}

// StepStats counts per-step outcomes since the model was loaded.
type StepStats struct {
	Steps         uint64
	RefsApplied   uint64
	RefsStale     uint64
	ReadErrors    uint64
	PublishErrors uint64
}

// Emulator drives one simulated robot against the hubo-ach channels. The
// host calls ModelLoaded / ModelUnloaded around a model's lifetime and
// BeforeStep / AfterStep around every integration step, all from a single
// goroutine.
type Emulator struct {
	opts     Options
	catalog  *Catalog
	aliases  AliasTable
	state    State
	id       string
	log      *logrus.Entry
	observer StateObserver

	world   World
	skel    Skeleton
	corr    *Correspondence
	session *Session
	contr   Controller

	waist, leftFoot, rightFoot int

	refMsg   ReferenceMessage
	stateMsg StateMessage
	stats    StepStats
}

// NewEmulator returns an emulator in the Unloaded state.
func NewEmulator(opts Options) *Emulator {
	e := &Emulator{
		opts:    opts,
		catalog: opts.Catalog,
		aliases: opts.Aliases,
		state:   StateUnloaded,
		log:     logrus.WithField("component", "emulator"),
	}
	if e.catalog == nil {
		e.catalog = DefaultCatalog()
	}
	if e.aliases == nil {
		e.aliases = HuboAliases
	}
	return e
}

// SetObserver installs o to receive published state frames.
func (e *Emulator) SetObserver(o StateObserver) { e.observer = o }

// State returns the lifecycle state.
func (e *Emulator) State() State { return e.state }

// SessionID identifies the current model session; empty when unloaded.
func (e *Emulator) SessionID() string { return e.id }

// Correspondence returns the joint map of the loaded model, or nil.
func (e *Emulator) Correspondence() *Correspondence { return e.corr }

// Skeleton returns the robot skeleton of the loaded model, or nil.
func (e *Emulator) Skeleton() Skeleton { return e.skel }

// Controller returns the active feedback controller, or nil.
func (e *Emulator) Controller() Controller { return e.contr }

// SensorBodies returns the waist, left foot and right foot body indices.
func (e *Emulator) SensorBodies() (waist, leftFoot, rightFoot int) {
	return e.waist, e.leftFoot, e.rightFoot
}

// Stats returns the step counters of the current session.
func (e *Emulator) Stats() StepStats { return e.stats }

// ModelLoaded initializes the emulator for w: catalog check, joint map,
// sensor bodies, channels, controller. Any failure tears down what was built
// and leaves the emulator Unloaded. Loading over a running model unloads it
// first.
func (e *Emulator) ModelLoaded(w World) error {
	if e.state != StateUnloaded {
		if err := e.ModelUnloaded(); err != nil {
			e.log.WithError(err).Warn("unloading previous model")
		}
	}
	e.state = StateInitializing
	e.id = uuid.NewString()
	e.log = logrus.WithFields(logrus.Fields{"component": "emulator", "session": e.id})
	e.refMsg = ReferenceMessage{}
	e.stateMsg = StateMessage{}
	e.stats = StepStats{}

	if err := e.initialize(w); err != nil {
		e.teardown()
		return err
	}
	e.state = StateRunning
	e.log.Infof("emulating %s: %d/%d joints mapped to %d DOFs",
		e.skel.Name(), e.corr.Len(), JointCount, e.skel.NumDofs())
	return nil
}

func (e *Emulator) initialize(w World) error {
	if err := e.catalog.Validate(); err != nil {
		return err
	}
	skel, err := FindSkeleton(w, e.opts.Skeletons)
	if err != nil {
		return err
	}
	e.world = w
	e.skel = skel

	dofs := Dofs(skel)
	corr, err := BuildCorrespondence(e.catalog.Joints[:], dofs, e.aliases)
	if err != nil {
		return fmt.Errorf("mapping %s joints: %w", skel.Name(), err)
	}
	e.corr = corr
	for p := range e.catalog.Joints {
		if _, ok := corr.Virtual(p); !ok && e.catalog.Joints[p].Active {
			e.log.Debugf("joint %s has no DOF in %s", e.catalog.Joints[p].Name, skel.Name())
		}
	}

	bodies := []struct {
		role string
		name string
		dst  *int
	}{
		{"waist", e.opts.WaistBody, &e.waist},
		{"left foot", e.opts.LeftFootBody, &e.leftFoot},
		{"right foot", e.opts.RightFootBody, &e.rightFoot},
	}
	for _, b := range bodies {
		idx := FindBody(skel, b.name)
		if idx == Unmapped {
			return &BodyNotFoundError{Role: b.role, Name: b.name}
		}
		*b.dst = idx
	}

	if e.opts.Transport == nil {
		return errors.New("no channel transport configured")
	}
	session, err := OpenSession(e.opts.Transport, e.opts.RefChannel, e.opts.StateChannel)
	if err != nil {
		return err
	}
	e.session = session

	if NewControllerFunc == nil {
		return errors.New("no feedback controller registered")
	}
	contr, err := NewControllerFunc(e.controllerConfig(skel.NumDofs(), w))
	if err != nil {
		return fmt.Errorf("constructing controller: %w", err)
	}
	e.contr = contr
	return nil
}

func (e *Emulator) controllerConfig(n int, w World) ControllerConfig {
	cfg := ControllerConfig{
		Kp:        make([]float64, n),
		Ki:        make([]float64, n),
		Kd:        make([]float64, n),
		Mask:      make([]bool, n),
		StartTime: w.Time() - w.TimeStep(),
	}
	for i := 0; i < n; i++ {
		cfg.Kp[i] = e.opts.Gains.Kp
		cfg.Ki[i] = e.opts.Gains.Ki
		cfg.Kd[i] = e.opts.Gains.Kd
		cfg.Mask[i] = i >= e.opts.Gains.PassiveRootDofs
	}
	return cfg
}

// ModelUnloaded closes both channels and releases the controller. It is safe
// to call in any state and more than once.
func (e *Emulator) ModelUnloaded() error {
	if e.state == StateUnloaded {
		return nil
	}
	err := e.teardown()
	e.log.WithField("steps", e.stats.Steps).Info("model unloaded")
	return err
}

func (e *Emulator) teardown() error {
	var err error
	if e.session != nil {
		err = e.session.Close()
		e.session = nil
	}
	e.contr = nil
	e.corr = nil
	e.skel = nil
	e.world = nil
	e.id = ""
	e.state = StateUnloaded
	return err
}

// BeforeStep reads the latest references into the controller targets and
// applies the resulting torques to the skeleton. Read problems are logged
// and the step continues on the held targets.
func (e *Emulator) BeforeStep() {
	if e.state != StateRunning {
		return
	}
	switch err := e.session.ReadLatest(&e.refMsg); {
	case err == nil:
		ApplyReference(&e.refMsg, e.corr, e.contr.Targets())
		e.stats.RefsApplied++
	case errors.Is(err, ErrNoNewData):
		e.stats.RefsStale++
	default:
		e.stats.ReadErrors++
		e.log.WithFields(logrus.Fields{"step": e.stats.Steps, "channel": e.opts.RefChannel}).Warn(err.Error())
	}
	tau := e.contr.Torques(e.skel.Pose(), e.skel.Velocity(), e.world.Time())
	e.skel.SetInternalForces(tau)
}

// AfterStep publishes the integrated state. Publish failures are logged and
// do not stop the simulation.
func (e *Emulator) AfterStep() {
	if e.state != StateRunning {
		return
	}
	RenderState(&e.stateMsg, e.corr, e.skel.Pose(), e.skel.Velocity(), e.contr.Targets(), e.world.Time())
	if err := e.session.Publish(&e.stateMsg); err != nil {
		e.stats.PublishErrors++
		e.log.WithFields(logrus.Fields{"step": e.stats.Steps, "channel": e.opts.StateChannel}).Warn(err.Error())
	}
	if e.observer != nil {
		e.observer.ObserveState(&e.stateMsg)
	}
	e.stats.Steps++
}
