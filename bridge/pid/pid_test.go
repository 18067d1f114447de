package pid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golems/hubo-ach-sim/bridge"
)

func uniform(n int, kp, ki, kd float64, passive int) bridge.ControllerConfig {
	cfg := bridge.ControllerConfig{
		Kp:   make([]float64, n),
		Ki:   make([]float64, n),
		Kd:   make([]float64, n),
		Mask: make([]bool, n),
	}
	for i := 0; i < n; i++ {
		cfg.Kp[i], cfg.Ki[i], cfg.Kd[i] = kp, ki, kd
		cfg.Mask[i] = i >= passive
	}
	return cfg
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New(bridge.ControllerConfig{})
	assert.Error(t, err)

	cfg := uniform(3, 1, 1, 1, 0)
	cfg.Mask = cfg.Mask[:2]
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestTorques_Terms(t *testing.T) {
	// GIVEN gains Kp=10 Ki=2 Kd=3 with DOF 0 passive
	c, err := New(uniform(2, 10, 2, 3, 1))
	require.NoError(t, err)
	c.Targets()[0] = 5
	c.Targets()[1] = 1

	// WHEN torques are computed 0.5s after start with pose 0.5, velocity 0.2
	tau := c.Torques([]float64{0, 0.5}, []float64{0, 0.2}, 0.5)

	// THEN tau = 10*0.5 + 2*(0.5*0.5) - 3*0.2 on the closed DOF only
	assert.InDelta(t, 5+0.5-0.6, tau[1], 1e-12)
	assert.Equal(t, 0.0, tau[0], "passive DOF gets no torque")
}

func TestTorques_IntegralAccumulatesOnlyForward(t *testing.T) {
	c, err := New(uniform(1, 0, 1, 0, 0))
	require.NoError(t, err)
	c.Targets()[0] = 1

	pose := []float64{0}
	vel := []float64{0}
	assert.InDelta(t, 0.1, c.Torques(pose, vel, 0.1)[0], 1e-12)
	assert.InDelta(t, 0.3, c.Torques(pose, vel, 0.3)[0], 1e-12)
	// Same or earlier time adds nothing.
	assert.InDelta(t, 0.3, c.Torques(pose, vel, 0.3)[0], 1e-12)
	assert.InDelta(t, 0.3, c.Torques(pose, vel, 0.2)[0], 1e-12)

	c.Reset(0)
	assert.Equal(t, 0.0, c.Torques(pose, vel, 0)[0])
	assert.Equal(t, 1, c.Len())
}

func TestTorques_ConvergesOnUnitInertia(t *testing.T) {
	// A unit-inertia joint under the default gains settles on its target.
	c, err := New(uniform(1, 1000, 100, 100, 0))
	require.NoError(t, err)
	c.Targets()[0] = 0.5

	const dt = 0.001
	q, qd := []float64{0}, []float64{0}
	for step := 1; step <= 3000; step++ {
		tau := c.Torques(q, qd, float64(step-1)*dt)
		qd[0] += tau[0] * dt
		q[0] += qd[0] * dt
	}
	assert.InDelta(t, 0.5, q[0], 0.01)
	assert.InDelta(t, 0.0, qd[0], 0.05)
}

func TestTorques_NoAllocations(t *testing.T) {
	c, err := New(uniform(34, 1000, 100, 100, 5))
	require.NoError(t, err)
	pose := make([]float64, 34)
	vel := make([]float64, 34)
	now := 0.0
	allocs := testing.AllocsPerRun(100, func() {
		now += 0.001
		c.Torques(pose, vel, now)
	})
	assert.Zero(t, allocs)
}

func TestRegister_InstallsConstructor(t *testing.T) {
	require.NotNil(t, bridge.NewControllerFunc)
	got, err := bridge.NewControllerFunc(uniform(2, 1, 1, 1, 0))
	require.NoError(t, err)
	assert.IsType(t, &Controller{}, got)

	got, err = bridge.NewControllerFunc(bridge.ControllerConfig{})
	assert.Error(t, err)
	assert.Nil(t, got)
}
