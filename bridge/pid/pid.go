// Package pid implements the joint-space PID controller that drives the
// simulated robot toward the commanded references.
package pid

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/golems/hubo-ach-sim/bridge"
)

// Controller is a per-DOF PID loop:
//
//	tau = mask .* (Kp .* e + Ki .* ∫e dt - Kd .* qdot),  e = target - q
//
// The derivative acts on the measured velocity so target jumps do not kick
// the output. All vectors are allocated once; Torques allocates nothing.
type Controller struct {
	n int

	kp, ki, kd *mat.VecDense
	mask       *mat.VecDense // 1 = closed loop, 0 = passive

	target *mat.VecDense
	integ  *mat.VecDense
	pose   *mat.VecDense
	vel    *mat.VecDense
	err    *mat.VecDense
	tmp    *mat.VecDense
	tau    *mat.VecDense

	prevTime float64
}

// New builds a controller from cfg. Gains and mask must all have the same,
// non-zero length.
func New(cfg bridge.ControllerConfig) (*Controller, error) {
	n := len(cfg.Kp)
	if n == 0 {
		return nil, fmt.Errorf("pid: no DOFs")
	}
	if len(cfg.Ki) != n || len(cfg.Kd) != n || len(cfg.Mask) != n {
		return nil, fmt.Errorf("pid: gain/mask lengths differ (kp=%d ki=%d kd=%d mask=%d)",
			n, len(cfg.Ki), len(cfg.Kd), len(cfg.Mask))
	}
	mask := make([]float64, n)
	for i, on := range cfg.Mask {
		if on {
			mask[i] = 1
		}
	}
	c := &Controller{
		n:        n,
		kp:       mat.NewVecDense(n, append([]float64(nil), cfg.Kp...)),
		ki:       mat.NewVecDense(n, append([]float64(nil), cfg.Ki...)),
		kd:       mat.NewVecDense(n, append([]float64(nil), cfg.Kd...)),
		mask:     mat.NewVecDense(n, mask),
		target:   mat.NewVecDense(n, nil),
		integ:    mat.NewVecDense(n, nil),
		pose:     mat.NewVecDense(n, nil),
		vel:      mat.NewVecDense(n, nil),
		err:      mat.NewVecDense(n, nil),
		tmp:      mat.NewVecDense(n, nil),
		tau:      mat.NewVecDense(n, nil),
		prevTime: cfg.StartTime,
	}
	return c, nil
}

// Targets returns the DOF-ordered target positions. Writes through the slice
// change the controller's setpoint.
func (c *Controller) Targets() []float64 {
	return c.target.RawVector().Data
}

// Torques advances the integral by the time since the previous call and
// returns the control torques. The slice is reused by the next call.
func (c *Controller) Torques(pose, vel []float64, t float64) []float64 {
	copy(c.pose.RawVector().Data, pose)
	copy(c.vel.RawVector().Data, vel)

	c.err.SubVec(c.target, c.pose)
	if dt := t - c.prevTime; dt > 0 {
		c.integ.AddScaledVec(c.integ, dt, c.err)
	}
	c.prevTime = t

	c.tau.MulElemVec(c.kp, c.err)
	c.tmp.MulElemVec(c.ki, c.integ)
	c.tau.AddVec(c.tau, c.tmp)
	c.tmp.MulElemVec(c.kd, c.vel)
	c.tau.SubVec(c.tau, c.tmp)
	c.tau.MulElemVec(c.tau, c.mask)

	return c.tau.RawVector().Data
}

// Reset clears the integral and sets every target to zero.
func (c *Controller) Reset(t float64) {
	c.integ.Zero()
	c.target.Zero()
	c.prevTime = t
}

// Len returns the number of DOFs.
func (c *Controller) Len() int { return c.n }
