package cmd

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/golems/hubo-ach-sim/bridge"
	"github.com/golems/hubo-ach-sim/bridge/ach"
)

var truncateChannels bool // Reinitialize channels that already exist

// createShmChannels makes the reference and state channels. Existing channels
// are left alone unless truncate is set.
func createShmChannels(t *ach.Transport, cfg *Config, truncate bool) error {
	channels := []struct {
		name string
		size int
	}{
		{cfg.Channels.Ref, bridge.RefFrameSize},
		{cfg.Channels.State, bridge.StateFrameSize},
	}
	for _, c := range channels {
		err := t.Create(c.name, c.size, truncate)
		switch {
		case err == nil:
			logrus.Infof("created channel %s (%d byte frames)", c.name, c.size)
		case errors.Is(err, ach.ErrExists):
			logrus.Debugf("channel %s already exists", c.name)
		default:
			return err
		}
	}
	return nil
}

// mkchanCmd creates the hubo-ach channels, like `ach mk`
var mkchanCmd = &cobra.Command{
	Use:   "mkchan",
	Short: "Create the reference and state shm channels",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		if cmd.Flags().Changed("shm-dir") {
			cfg.Transport.Dir = shmDir
		}
		if err := createShmChannels(ach.New(cfg.Transport.Dir), &cfg, truncateChannels); err != nil {
			logrus.Fatalf("Could not create channels: %v", err)
		}
	},
}

// rmchanCmd removes the hubo-ach channels, like `ach rm`
var rmchanCmd = &cobra.Command{
	Use:   "rmchan",
	Short: "Remove the reference and state shm channels",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		if cmd.Flags().Changed("shm-dir") {
			cfg.Transport.Dir = shmDir
		}
		t := ach.New(cfg.Transport.Dir)
		failed := false
		for _, name := range []string{cfg.Channels.Ref, cfg.Channels.State} {
			if err := t.Remove(name); err != nil {
				logrus.Errorf("%v", err)
				failed = true
				continue
			}
			fmt.Printf("removed %s\n", name)
		}
		if failed {
			logrus.Fatalf("Could not remove every channel")
		}
	},
}

func init() {
	mkchanCmd.Flags().BoolVar(&truncateChannels, "truncate", false, "Reinitialize channels that already exist")
	mkchanCmd.Flags().StringVar(&shmDir, "shm-dir", ach.DefaultDir, "Directory holding shm channel files")
	rmchanCmd.Flags().StringVar(&shmDir, "shm-dir", ach.DefaultDir, "Directory holding shm channel files")

	rootCmd.AddCommand(mkchanCmd)
	rootCmd.AddCommand(rmchanCmd)
}
