// Shared-memory channels need mmap and flock. This stub keeps the CLI
// building on other platforms, where only the in-memory transport works.

//go:build !unix

package ach

import "github.com/golems/hubo-ach-sim/bridge"

// Create is not supported on this platform.
func (t *Transport) Create(name string, frameSize int, truncate bool) error {
	return ErrUnsupported
}

// Open is not supported on this platform.
func (t *Transport) Open(name string) (bridge.Channel, error) {
	return nil, ErrUnsupported
}
