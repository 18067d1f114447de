//go:build unix

package ach

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/golems/hubo-ach-sim/bridge"
)

// Create makes a channel for frames of exactly frameSize bytes. With
// truncate set an existing channel is reinitialized, otherwise it is an
// ErrExists error.
func (t *Transport) Create(name string, frameSize int, truncate bool) error {
	if frameSize <= 0 {
		return fmt.Errorf("ach: create %q: frame size %d", name, frameSize)
	}
	path, err := t.Path(name)
	if err != nil {
		return err
	}
	flags := os.O_RDWR | os.O_CREATE
	if !truncate {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o666)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %q", ErrExists, name)
		}
		return fmt.Errorf("ach: create %q: %w", name, err)
	}
	defer f.Close()

	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return fmt.Errorf("ach: lock %q: %w", name, err)
	}
	defer unix.Flock(fd, unix.LOCK_UN)

	size := HeaderSize + frameSize
	if err := unix.Ftruncate(fd, 0); err != nil {
		return fmt.Errorf("ach: truncate %q: %w", name, err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return fmt.Errorf("ach: size %q: %w", name, err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("ach: mmap %q: %w", name, err)
	}
	binary.LittleEndian.PutUint32(data[offMagic:], magic)
	binary.LittleEndian.PutUint32(data[offVersion:], version)
	binary.LittleEndian.PutUint64(data[offFrameSize:], uint64(frameSize))
	atomic.StoreUint64(seqWord(data), 0)
	return unix.Munmap(data)
}

// Open maps an existing channel.
func (t *Transport) Open(name string) (bridge.Channel, error) {
	path, err := t.Path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrNoChannel, name)
		}
		return nil, fmt.Errorf("ach: open %q: %w", name, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ach: stat %q: %w", name, err)
	}
	if st.Size() < HeaderSize {
		f.Close()
		return nil, fmt.Errorf("%w: %q is %d bytes", ErrCorrupt, name, st.Size())
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ach: mmap %q: %w", name, err)
	}
	c := &Channel{name: name, file: f, data: data}
	if err := c.checkHeader(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Channel is an open, mapped channel file.
type Channel struct {
	name      string
	file      *os.File
	data      []byte
	frameSize int
	lastSeq   uint64
	closed    bool
}

func (c *Channel) checkHeader() error {
	if binary.LittleEndian.Uint32(c.data[offMagic:]) != magic {
		return fmt.Errorf("%w: %q has bad magic", ErrCorrupt, c.name)
	}
	if v := binary.LittleEndian.Uint32(c.data[offVersion:]); v != version {
		return fmt.Errorf("%w: %q has version %d", ErrCorrupt, c.name, v)
	}
	fs := binary.LittleEndian.Uint64(c.data[offFrameSize:])
	if fs == 0 || HeaderSize+fs != uint64(len(c.data)) {
		return fmt.Errorf("%w: %q frame size %d does not fit %d byte file", ErrCorrupt, c.name, fs, len(c.data))
	}
	c.frameSize = int(fs)
	return nil
}

func seqWord(data []byte) *uint64 {
	return (*uint64)(unsafe.Pointer(&data[offSeq]))
}

// FrameSize returns the channel's frame size.
func (c *Channel) FrameSize() int { return c.frameSize }

// Get copies the latest frame into buf. It returns bridge.ErrNoNewData when
// the sequence has not moved since the last successful Get.
func (c *Channel) Get(buf []byte) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	if len(buf) < c.frameSize {
		return 0, fmt.Errorf("%w: %d < %d", ErrBufTooSmall, len(buf), c.frameSize)
	}
	seq := seqWord(c.data)
	frame := c.data[HeaderSize : HeaderSize+c.frameSize]
	for i := 0; i < readRetries; i++ {
		before := atomic.LoadUint64(seq)
		if before&1 == 1 {
			continue
		}
		if before == c.lastSeq {
			return 0, bridge.ErrNoNewData
		}
		n := copy(buf, frame)
		if atomic.LoadUint64(seq) == before {
			c.lastSeq = before
			return n, nil
		}
	}
	return 0, ErrTorn
}

// Put publishes frame. Concurrent writers are serialized with flock.
func (c *Channel) Put(frame []byte) error {
	if c.closed {
		return ErrClosed
	}
	if len(frame) != c.frameSize {
		return fmt.Errorf("%w: got %d, channel carries %d", ErrFrameSize, len(frame), c.frameSize)
	}
	fd := int(c.file.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return fmt.Errorf("ach: lock %q: %w", c.name, err)
	}
	seq := seqWord(c.data)
	atomic.AddUint64(seq, 1)
	copy(c.data[HeaderSize:], frame)
	atomic.AddUint64(seq, 1)
	return unix.Flock(fd, unix.LOCK_UN)
}

// Close unmaps the channel. Safe to call more than once.
func (c *Channel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	if c.data != nil {
		if err := unix.Munmap(c.data); err != nil {
			errs = append(errs, err)
		}
		c.data = nil
	}
	if err := c.file.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
