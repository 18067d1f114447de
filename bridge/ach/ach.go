// Package ach provides hubo-ach style shared-memory channels.
//
// A channel is a file in a shared-memory directory (default /dev/shm) named
// "achshm-<channel>". The file holds a fixed header followed by a single frame
// slot. Writers bump a sequence counter to odd, copy the frame and bump it to
// even; readers retry until they copy a frame with the same even sequence
// before and after. A reader therefore always gets the most recent complete
// frame and never sees older frames it skipped.
//
// Header layout (little-endian):
//
//	0   uint32  magic "ACHF"
//	4   uint32  version
//	8   uint64  frame size in bytes
//	16  uint64  sequence (0 = never written, odd = write in progress)
//	24  ...     reserved up to HeaderSize
package ach

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDir is where channel files live.
	DefaultDir = "/dev/shm"
	// FilePrefix is prepended to channel names.
	FilePrefix = "achshm-"
	// HeaderSize precedes the frame slot.
	HeaderSize = 64

	magic   uint32 = 0x46484341 // "ACHF"
	version uint32 = 1

	offMagic     = 0
	offVersion   = 4
	offFrameSize = 8
	offSeq       = 16

	// readRetries bounds the seqlock loop so Get never spins forever on a
	// stalled writer.
	readRetries = 16
)

var (
	ErrNoChannel   = errors.New("ach: channel does not exist")
	ErrExists      = errors.New("ach: channel exists")
	ErrBadName     = errors.New("ach: invalid channel name")
	ErrCorrupt     = errors.New("ach: channel file corrupt")
	ErrFrameSize   = errors.New("ach: frame size mismatch")
	ErrBufTooSmall = errors.New("ach: receive buffer too small")
	ErrTorn        = errors.New("ach: frame changed during every read attempt")
	ErrClosed      = errors.New("ach: channel closed")
	ErrUnsupported = errors.New("ach: shared-memory channels not supported on this platform")
)

// Transport opens channels in Dir.
type Transport struct {
	Dir string
}

// New returns a transport rooted at dir, or DefaultDir when dir is empty.
func New(dir string) *Transport {
	if dir == "" {
		dir = DefaultDir
	}
	return &Transport{Dir: dir}
}

// Path returns the backing file for a channel name.
func (t *Transport) Path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return filepath.Join(t.Dir, FilePrefix+name), nil
}

// Remove deletes a channel file. Handles already open keep their mapping.
func (t *Transport) Remove(name string) error {
	path, err := t.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %q", ErrNoChannel, name)
		}
		return fmt.Errorf("ach: remove %q: %w", name, err)
	}
	return nil
}

// Exists reports whether a channel file is present.
func (t *Transport) Exists(name string) bool {
	path, err := t.Path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
