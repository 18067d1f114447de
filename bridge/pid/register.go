// register.go wires the PID constructor into bridge.NewControllerFunc. The
// init() runs when any package imports bridge/pid; the CLI imports it
// directly, bridge's own tests install a stub controller instead.
package pid

import "github.com/golems/hubo-ach-sim/bridge"

func init() {
	bridge.NewControllerFunc = func(cfg bridge.ControllerConfig) (bridge.Controller, error) {
		c, err := New(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
