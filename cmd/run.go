package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/golems/hubo-ach-sim/bridge"
	"github.com/golems/hubo-ach-sim/bridge/ach"
	"github.com/golems/hubo-ach-sim/bridge/memchan"
	_ "github.com/golems/hubo-ach-sim/bridge/pid"
	"github.com/golems/hubo-ach-sim/bridge/rigid"
	"github.com/golems/hubo-ach-sim/bridge/telemetry"
)

var (
	transportKind  string  // "shm" or "mem"
	shmDir         string  // Directory holding shm channel files
	refChannel     string  // Reference channel name
	stateChannel   string  // State channel name
	modelFile      string  // Model file; empty = built-in Hubo+
	jointTable     string  // Joint table override
	duration       float64 // Simulated seconds; 0 = until interrupted
	realtime       bool    // Pace steps to the wall clock
	createChannels bool    // Create missing shm channels before opening
	telemetryAddr  string  // Websocket mirror listen address
)

// runCmd loads the model, initializes the emulator and steps the simulation
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the emulator against the hubo-ach channels",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		applyRunFlags(cmd, &cfg)
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid config: %v", err)
		}

		catalog, err := bridge.LoadCatalog(cfg.Model.JointTable)
		if err != nil {
			logrus.Fatalf("Could not load joint catalog: %v", err)
		}
		world, err := buildWorld(&cfg)
		if err != nil {
			logrus.Fatalf("Could not load model: %v", err)
		}
		transport, err := buildTransport(&cfg, createChannels)
		if err != nil {
			logrus.Fatalf("Could not set up channels: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := cfg.EmulatorOptions(catalog)
		opts.Transport = transport
		emu := bridge.NewEmulator(opts)

		if cfg.Telemetry.Listen != "" {
			hub := telemetry.NewHub(catalog, cfg.Telemetry.Every)
			emu.SetObserver(hub)
			go hub.Run(ctx)
			go func() {
				if err := telemetry.ListenAndServe(ctx, cfg.Telemetry.Listen, hub); err != nil {
					logrus.Errorf("telemetry server: %v", err)
				}
			}()
		}

		if err := emu.ModelLoaded(world); err != nil {
			logrus.Fatalf("Could not initialize hubo: %v", err)
		}

		steps := 0
		if cfg.Simulation.Duration > 0 {
			steps = int(cfg.Simulation.Duration/world.TimeStep() + 0.5)
		}
		logrus.Infof("Automatically starting simulation: dt=%gs steps=%d realtime=%v", world.TimeStep(), steps, cfg.Simulation.Realtime)

		startTime := time.Now()
		simErr := world.Simulate(ctx, emu, steps, cfg.Simulation.Realtime)
		stats := emu.Stats()
		if err := emu.ModelUnloaded(); err != nil {
			logrus.Warnf("closing channels: %v", err)
		}
		if simErr != nil && !errors.Is(simErr, context.Canceled) {
			logrus.Fatalf("Simulation failed: %v", simErr)
		}

		fmt.Printf("Steps: %d (%.3fs simulated, %.3fs wall)\n", stats.Steps, world.Time(), time.Since(startTime).Seconds())
		fmt.Printf("References applied: %d, stale: %d, read errors: %d\n", stats.RefsApplied, stats.RefsStale, stats.ReadErrors)
		fmt.Printf("Publish errors: %d\n", stats.PublishErrors)
	},
}

// applyRunFlags overrides config values with flags the user actually set.
func applyRunFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("transport") {
		cfg.Transport.Kind = transportKind
	}
	if flags.Changed("shm-dir") {
		cfg.Transport.Dir = shmDir
	}
	if flags.Changed("ref-chan") {
		cfg.Channels.Ref = refChannel
	}
	if flags.Changed("state-chan") {
		cfg.Channels.State = stateChannel
	}
	if flags.Changed("model") {
		cfg.Model.File = modelFile
	}
	if flags.Changed("joint-table") {
		cfg.Model.JointTable = jointTable
	}
	if flags.Changed("duration") {
		cfg.Simulation.Duration = duration
	}
	if flags.Changed("realtime") {
		cfg.Simulation.Realtime = realtime
	}
	if flags.Changed("telemetry") {
		cfg.Telemetry.Listen = telemetryAddr
	}
}

// buildWorld loads the model file, or the built-in Hubo+ when none is set.
// A model file without a timestep inherits the configured one.
func buildWorld(cfg *Config) (*rigid.World, error) {
	if cfg.Model.File == "" {
		return rigid.NewWorld(rigid.HuboPlusWorld(cfg.Simulation.TimeStep))
	}
	spec, err := rigid.LoadWorldSpec(cfg.Model.File)
	if err != nil {
		return nil, err
	}
	if spec.TimeStep == 0 {
		spec.TimeStep = cfg.Simulation.TimeStep
	}
	return rigid.NewWorld(*spec)
}

// buildTransport returns the configured transport. The in-memory transport
// always gets both channels; shm channels are created only when asked, since
// hubo-ach normally owns them.
func buildTransport(cfg *Config, create bool) (bridge.Transport, error) {
	switch cfg.Transport.Kind {
	case "mem":
		t := memchan.New()
		if err := t.Create(cfg.Channels.Ref, bridge.RefFrameSize); err != nil {
			return nil, err
		}
		if err := t.Create(cfg.Channels.State, bridge.StateFrameSize); err != nil {
			return nil, err
		}
		return t, nil
	case "shm":
		t := ach.New(cfg.Transport.Dir)
		if create {
			if err := createShmChannels(t, cfg, false); err != nil {
				return nil, err
			}
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport.Kind)
	}
}

func init() {
	runCmd.Flags().StringVar(&transportKind, "transport", "shm", "Channel transport (shm, mem)")
	runCmd.Flags().StringVar(&shmDir, "shm-dir", ach.DefaultDir, "Directory holding shm channel files")
	runCmd.Flags().StringVar(&refChannel, "ref-chan", "hubo-ref", "Reference channel name")
	runCmd.Flags().StringVar(&stateChannel, "state-chan", "hubo-state", "State channel name")
	runCmd.Flags().StringVar(&modelFile, "model", "", "Model file (YAML); empty loads the built-in Hubo+")
	runCmd.Flags().StringVar(&jointTable, "joint-table", "", "Joint table overriding the default catalog")
	runCmd.Flags().Float64Var(&duration, "duration", 0, "Simulated seconds to run; 0 runs until interrupted")
	runCmd.Flags().BoolVar(&realtime, "realtime", true, "Pace simulation steps to the wall clock")
	runCmd.Flags().BoolVar(&createChannels, "create-channels", false, "Create missing shm channels before opening them")
	runCmd.Flags().StringVar(&telemetryAddr, "telemetry", "", "Serve a websocket state mirror on this address (e.g. :8765)")

	rootCmd.AddCommand(runCmd)
}
