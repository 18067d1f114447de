package bridge

import (
	"errors"
	"fmt"
)

// Channel is one opened, named, fixed-frame transport handle.
type Channel interface {
	// Get copies the most recent frame into buf, discarding older unread
	// frames, and returns its size. It never blocks. When nothing newer than
	// the previous Get has been published it returns ErrNoNewData.
	Get(buf []byte) (int, error)

	// Put publishes one frame. It never waits for readers.
	Put(frame []byte) error

	// Close releases the handle.
	Close() error
}

// Transport opens named channels.
type Transport interface {
	Open(name string) (Channel, error)
}

// Session owns the reference (inbound) and state (outbound) channels of one
// loaded model. Not safe for concurrent use.
type Session struct {
	refName   string
	stateName string
	ref       Channel
	state     Channel
	closed    bool

	refBuf   [RefFrameSize + 8]byte // one spare byte detects oversized frames
	stateBuf [StateFrameSize]byte
	scratch  ReferenceMessage
}

// OpenSession opens the reference channel then the state channel. If either
// fails, every channel opened by this call is closed before the
// *ChannelUnavailableError is returned.
func OpenSession(t Transport, refName, stateName string) (*Session, error) {
	s := &Session{refName: refName, stateName: stateName}

	ref, err := t.Open(refName)
	if err != nil {
		return nil, &ChannelUnavailableError{Which: "reference", Name: refName, Err: err}
	}
	s.ref = ref

	state, err := t.Open(stateName)
	if err != nil {
		s.Close()
		return nil, &ChannelUnavailableError{Which: "state", Name: stateName, Err: err}
	}
	s.state = state
	return s, nil
}

// ReadLatest fetches the newest reference frame into msg. It returns
// ErrNoNewData when nothing new arrived, or a *ReadFailedError on transport
// failure or a malformed frame. msg is only written when the whole frame
// decoded and validated.
func (s *Session) ReadLatest(msg *ReferenceMessage) error {
	if s.closed || s.ref == nil {
		return ErrSessionClosed
	}
	n, err := s.ref.Get(s.refBuf[:])
	if err != nil {
		if errors.Is(err, ErrNoNewData) {
			return ErrNoNewData
		}
		return &ReadFailedError{Channel: s.refName, Reason: "transport", Err: err}
	}
	if n != RefFrameSize {
		return &ReadFailedError{Channel: s.refName, Reason: fmt.Sprintf("frame is %d bytes, want %d", n, RefFrameSize)}
	}
	if err := s.scratch.Decode(s.refBuf[:n]); err != nil {
		return &ReadFailedError{Channel: s.refName, Reason: "malformed frame", Err: err}
	}
	*msg = s.scratch
	return nil
}

// Publish encodes msg and writes it to the state channel.
func (s *Session) Publish(msg *StateMessage) error {
	if s.closed || s.state == nil {
		return ErrSessionClosed
	}
	if err := msg.Encode(s.stateBuf[:]); err != nil {
		return &WriteFailedError{Channel: s.stateName, Err: err}
	}
	if err := s.state.Put(s.stateBuf[:]); err != nil {
		return &WriteFailedError{Channel: s.stateName, Err: err}
	}
	return nil
}

// Close releases both channels. It is idempotent and safe on a session whose
// open only partly succeeded.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	if s.ref != nil {
		if err := s.ref.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", s.refName, err))
		}
		s.ref = nil
	}
	if s.state != nil {
		if err := s.state.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", s.stateName, err))
		}
		s.state = nil
	}
	return errors.Join(errs...)
}

// Names returns the reference and state channel names.
func (s *Session) Names() (ref, state string) { return s.refName, s.stateName }
