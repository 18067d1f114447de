package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/golems/hubo-ach-sim/bridge"
)

// Config represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Version    string           `yaml:"version"`
	Transport  TransportConfig  `yaml:"transport"`
	Channels   ChannelConfig    `yaml:"channels"`
	Model      ModelConfig      `yaml:"model"`
	Controller ControllerConfig `yaml:"controller"`
	Simulation SimulationConfig `yaml:"simulation"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// TransportConfig selects where channels live.
type TransportConfig struct {
	Kind string `yaml:"kind"` // "shm" or "mem"
	Dir  string `yaml:"dir"`  // shm directory
}

// ChannelConfig names the hubo-ach channels.
type ChannelConfig struct {
	Ref   string `yaml:"ref"`
	State string `yaml:"state"`
}

// ModelConfig locates the robot in the model and the catalog overrides.
type ModelConfig struct {
	File          string   `yaml:"file"`        // model file; empty = built-in Hubo+
	JointTable    string   `yaml:"joint_table"` // joint table override; empty = defaults
	Skeletons     []string `yaml:"skeletons"`
	WaistBody     string   `yaml:"waist_body"`
	LeftFootBody  string   `yaml:"left_foot_body"`
	RightFootBody string   `yaml:"right_foot_body"`
}

// ControllerConfig holds the uniform PID gains.
type ControllerConfig struct {
	Kp              float64 `yaml:"kp"`
	Ki              float64 `yaml:"ki"`
	Kd              float64 `yaml:"kd"`
	PassiveRootDofs int     `yaml:"passive_root_dofs"`
}

// SimulationConfig drives the built-in model host.
type SimulationConfig struct {
	TimeStep float64 `yaml:"timestep"` // seconds
	Duration float64 `yaml:"duration"` // seconds; 0 runs until interrupted
	Realtime bool    `yaml:"realtime"`
}

// TelemetryConfig enables the websocket state mirror.
type TelemetryConfig struct {
	Listen string `yaml:"listen"` // empty disables the mirror
	Every  int    `yaml:"every"`  // mirror every Nth step
}

// DefaultConfig matches the shipped defaults.yaml.
func DefaultConfig() Config {
	opts := bridge.DefaultOptions()
	return Config{
		Version:   "1",
		Transport: TransportConfig{Kind: "shm", Dir: "/dev/shm"},
		Channels:  ChannelConfig{Ref: opts.RefChannel, State: opts.StateChannel},
		Model: ModelConfig{
			Skeletons:     opts.Skeletons,
			WaistBody:     opts.WaistBody,
			LeftFootBody:  opts.LeftFootBody,
			RightFootBody: opts.RightFootBody,
		},
		Controller: ControllerConfig{
			Kp:              opts.Gains.Kp,
			Ki:              opts.Gains.Ki,
			Kd:              opts.Gains.Kd,
			PassiveRootDofs: opts.Gains.PassiveRootDofs,
		},
		Simulation: SimulationConfig{TimeStep: 0.001, Realtime: true},
		Telemetry:  TelemetryConfig{Every: 10},
	}
}

// LoadConfig parses a config file with strict field checking (typos must
// cause errors). Sections absent from the file keep DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// ValidTransports is the set of recognized transport kinds.
var ValidTransports = map[string]bool{"shm": true, "mem": true}

// Validate checks names and parameter ranges.
func (c *Config) Validate() error {
	if !ValidTransports[c.Transport.Kind] {
		return fmt.Errorf("unknown transport %q", c.Transport.Kind)
	}
	if c.Channels.Ref == "" || c.Channels.State == "" {
		return fmt.Errorf("reference and state channel names are required")
	}
	if c.Channels.Ref == c.Channels.State {
		return fmt.Errorf("reference and state channels must differ, both are %q", c.Channels.Ref)
	}
	if len(c.Model.Skeletons) == 0 {
		return fmt.Errorf("model.skeletons must list at least one name")
	}
	if c.Model.WaistBody == "" || c.Model.LeftFootBody == "" || c.Model.RightFootBody == "" {
		return fmt.Errorf("waist and foot body names are required")
	}
	if c.Controller.Kp < 0 || c.Controller.Ki < 0 || c.Controller.Kd < 0 {
		return fmt.Errorf("controller gains must be non-negative, got kp=%g ki=%g kd=%g",
			c.Controller.Kp, c.Controller.Ki, c.Controller.Kd)
	}
	if c.Controller.PassiveRootDofs < 0 {
		return fmt.Errorf("passive_root_dofs must be non-negative, got %d", c.Controller.PassiveRootDofs)
	}
	if c.Simulation.TimeStep <= 0 {
		return fmt.Errorf("timestep must be positive, got %g", c.Simulation.TimeStep)
	}
	if c.Simulation.Duration < 0 {
		return fmt.Errorf("duration must be non-negative, got %g", c.Simulation.Duration)
	}
	if c.Telemetry.Every < 0 {
		return fmt.Errorf("telemetry.every must be non-negative, got %d", c.Telemetry.Every)
	}
	return nil
}

// EmulatorOptions converts the config into bridge options. The transport
// is filled in by the caller.
func (c *Config) EmulatorOptions(catalog *bridge.Catalog) bridge.Options {
	return bridge.Options{
		RefChannel:    c.Channels.Ref,
		StateChannel:  c.Channels.State,
		Catalog:       catalog,
		Skeletons:     c.Model.Skeletons,
		WaistBody:     c.Model.WaistBody,
		LeftFootBody:  c.Model.LeftFootBody,
		RightFootBody: c.Model.RightFootBody,
		Gains: bridge.Gains{
			Kp:              c.Controller.Kp,
			Ki:              c.Controller.Ki,
			Kd:              c.Controller.Kd,
			PassiveRootDofs: c.Controller.PassiveRootDofs,
		},
	}
}
