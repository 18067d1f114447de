package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCorrespondence is returned when no physical joint could be paired
	// with a model DOF. The model is unusable; there is no identity fallback.
	ErrNoCorrespondence = errors.New("no joint/DOF names correspond")

	// ErrNoNewData reports that a channel has nothing newer than the last read.
	// It is a normal outcome, not a failure.
	ErrNoNewData = errors.New("no new data on channel")

	// ErrSessionClosed is returned by Session operations after Close.
	ErrSessionClosed = errors.New("channel session closed")
)

// CatalogError reports a malformed joint catalog or joint table entry.
type CatalogError struct {
	Joint  string // joint name, or "#<id>" when the name is empty
	Reason string
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("joint catalog: %s: %s", e.Joint, e.Reason)
}

// SkeletonNotFoundError is returned when none of the searched skeleton names
// exist in the loaded world.
type SkeletonNotFoundError struct {
	Searched []string
}

func (e *SkeletonNotFoundError) Error() string {
	return fmt.Sprintf("could not find robot skeleton (searched %v)", e.Searched)
}

// BodyNotFoundError is returned when a sensor-mount body is missing from the
// skeleton.
type BodyNotFoundError struct {
	Role string // "waist", "left foot", "right foot"
	Name string
}

func (e *BodyNotFoundError) Error() string {
	return fmt.Sprintf("could not find %s body %q", e.Role, e.Name)
}

// ChannelUnavailableError is returned when a channel cannot be opened.
type ChannelUnavailableError struct {
	Which string // "reference" or "state"
	Name  string
	Err   error
}

func (e *ChannelUnavailableError) Error() string {
	return fmt.Sprintf("failed to open %s channel %q: %v", e.Which, e.Name, e.Err)
}

func (e *ChannelUnavailableError) Unwrap() error { return e.Err }

// ReadFailedError is a hard read failure: transport error or malformed frame.
type ReadFailedError struct {
	Channel string
	Reason  string
	Err     error
}

func (e *ReadFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("get reference from %q failed: %s: %v", e.Channel, e.Reason, e.Err)
	}
	return fmt.Sprintf("get reference from %q failed: %s", e.Channel, e.Reason)
}

func (e *ReadFailedError) Unwrap() error { return e.Err }

// WriteFailedError is returned when a state frame could not be published.
type WriteFailedError struct {
	Channel string
	Err     error
}

func (e *WriteFailedError) Error() string {
	return fmt.Sprintf("put state to %q failed: %v", e.Channel, e.Err)
}

func (e *WriteFailedError) Unwrap() error { return e.Err }
