// Package memchan is an in-process channel transport with the same
// latest-frame semantics as the shared-memory channels. It backs dry runs
// without /dev/shm and lets tests observe handle lifetimes.
package memchan

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golems/hubo-ach-sim/bridge"
)

var (
	ErrNoChannel   = errors.New("memchan: no such channel")
	ErrExists      = errors.New("memchan: channel exists")
	ErrBusy        = errors.New("memchan: channel already open")
	ErrClosed      = errors.New("memchan: handle closed")
	ErrFrameSize   = errors.New("memchan: frame size mismatch")
	ErrBufTooSmall = errors.New("memchan: receive buffer too small")
)

// Transport holds named channels. With exclusive set, a channel accepts one
// open handle at a time, so a leaked handle makes the next Open fail.
type Transport struct {
	mu        sync.Mutex
	channels  map[string]*channel
	exclusive bool
}

// New returns an empty transport.
func New() *Transport {
	return &Transport{channels: make(map[string]*channel)}
}

// NewExclusive returns a transport whose channels allow a single open handle.
func NewExclusive() *Transport {
	t := New()
	t.exclusive = true
	return t
}

type channel struct {
	mu        sync.Mutex
	frameSize int
	frame     []byte
	seq       uint64
	handles   int
}

// Create makes a channel carrying frames of exactly frameSize bytes.
func (t *Transport) Create(name string, frameSize int) error {
	if frameSize <= 0 {
		return fmt.Errorf("memchan: create %q: frame size %d", name, frameSize)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.channels[name]; ok {
		return fmt.Errorf("%w: %q", ErrExists, name)
	}
	t.channels[name] = &channel{frameSize: frameSize, frame: make([]byte, frameSize)}
	return nil
}

// Remove deletes a channel. Open handles keep working on the orphaned
// channel, as with an unlinked shm file.
func (t *Transport) Remove(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.channels[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNoChannel, name)
	}
	delete(t.channels, name)
	return nil
}

// Open returns a new handle. Its first Get returns the latest frame if one
// was ever published.
func (t *Transport) Open(name string) (bridge.Channel, error) {
	t.mu.Lock()
	ch, ok := t.channels[name]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoChannel, name)
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if t.exclusive && ch.handles > 0 {
		return nil, fmt.Errorf("%w: %q", ErrBusy, name)
	}
	ch.handles++
	return &handle{ch: ch}, nil
}

// OpenHandles reports how many handles are open on name.
func (t *Transport) OpenHandles(name string) int {
	t.mu.Lock()
	ch, ok := t.channels[name]
	t.mu.Unlock()
	if !ok {
		return 0
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.handles
}

type handle struct {
	ch      *channel
	lastSeq uint64
	closed  bool
}

func (h *handle) Get(buf []byte) (int, error) {
	if h.closed {
		return 0, ErrClosed
	}
	ch := h.ch
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.seq == h.lastSeq {
		return 0, bridge.ErrNoNewData
	}
	if len(buf) < ch.frameSize {
		return 0, fmt.Errorf("%w: %d < %d", ErrBufTooSmall, len(buf), ch.frameSize)
	}
	h.lastSeq = ch.seq
	return copy(buf, ch.frame), nil
}

func (h *handle) Put(frame []byte) error {
	if h.closed {
		return ErrClosed
	}
	ch := h.ch
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if len(frame) != ch.frameSize {
		return fmt.Errorf("%w: got %d, channel carries %d", ErrFrameSize, len(frame), ch.frameSize)
	}
	copy(ch.frame, frame)
	ch.seq++
	return nil
}

func (h *handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.ch.mu.Lock()
	h.ch.handles--
	h.ch.mu.Unlock()
	return nil
}
