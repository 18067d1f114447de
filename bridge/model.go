package bridge

// World is the model host: it owns the loaded skeletons and advances
// simulated time.
type World interface {
	NumSkeletons() int
	Skeleton(i int) Skeleton
	Time() float64
	TimeStep() float64
}

// Skeleton is one articulated model. Pose and Velocity return DOF-ordered
// views that stay valid until the next integration step; callers must not
// retain or modify them.
type Skeleton interface {
	Name() string
	NumDofs() int
	DofName(i int) string
	NumBodies() int
	BodyName(i int) string
	Pose() []float64
	Velocity() []float64
	SetInternalForces(tau []float64)
}

// Dofs lists a skeleton's DOFs in index order.
func Dofs(s Skeleton) []DofDescriptor {
	out := make([]DofDescriptor, s.NumDofs())
	for i := range out {
		out[i] = DofDescriptor{Index: i, Name: s.DofName(i)}
	}
	return out
}

// FindSkeleton searches the world for each name in turn. A later name in the
// list overrides an earlier match.
func FindSkeleton(w World, names []string) (Skeleton, error) {
	var found Skeleton
	for _, name := range names {
		for i := 0; i < w.NumSkeletons(); i++ {
			if s := w.Skeleton(i); s.Name() == name {
				found = s
			}
		}
	}
	if found == nil {
		return nil, &SkeletonNotFoundError{Searched: names}
	}
	return found, nil
}

// FindBody returns the index of the first body named name, or Unmapped.
func FindBody(s Skeleton, name string) int {
	for i := 0; i < s.NumBodies(); i++ {
		if s.BodyName(i) == name {
			return i
		}
	}
	return Unmapped
}

// ControllerConfig carries per-DOF gains and the closed-loop mask. All slices
// have the skeleton's DOF count.
type ControllerConfig struct {
	Kp, Ki, Kd []float64
	Mask       []bool
	StartTime  float64 // time of the step preceding the first Torques call
}

// Controller turns the model state and its targets into joint torques.
type Controller interface {
	// Targets returns the mutable DOF-ordered target positions.
	Targets() []float64
	// Torques computes torques for the current pose and velocity. The
	// returned slice is reused on the next call.
	Torques(pose, vel []float64, t float64) []float64
}

// NewControllerFunc constructs the feedback controller. Set by bridge/pid's
// init().
var NewControllerFunc func(cfg ControllerConfig) (Controller, error)
