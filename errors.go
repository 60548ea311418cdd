package dualcam

import (
	"errors"
	"fmt"
)

// Common errors surfaced by the recording pipeline.
var (
	// ErrNotWriting is returned when an append or stop arrives while the
	// session is not in the writing state.
	ErrNotWriting = errors.New("session is not writing")

	// ErrAlreadyWriting is returned when configure or start is called while
	// a session is actively writing.
	ErrAlreadyWriting = errors.New("session is already writing")

	// ErrNotConfigured is returned when start is called before configure.
	ErrNotConfigured = errors.New("session is not configured")

	// ErrDrainTimeout indicates the stop sequence gave up waiting for
	// in-flight appends. Finalization proceeds anyway; the error is only
	// logged, never returned to the caller.
	ErrDrainTimeout = errors.New("drain barrier timed out with appends pending")

	// ErrClosed is returned when the coordinator has been shut down.
	ErrClosed = errors.New("coordinator closed")
)

// ConfigurationError reports invalid output paths or unsupported codec
// parameters. It is surfaced synchronously from Configure.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// InsufficientResourcesError reports that the output volume lacks the free
// space required to start a recording. Detected before the session
// transitions to writing.
type InsufficientResourcesError struct {
	Path      string
	Required  uint64
	Available uint64
}

func (e *InsufficientResourcesError) Error() string {
	return fmt.Sprintf("insufficient resources: %s: need %d bytes, %d available",
		e.Path, e.Required, e.Available)
}

// StartError reports that one or more sinks failed to open their output
// sessions. The whole recording fails; no partial files are retained.
type StartError struct {
	Target Target
	Err    error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start %s sink: %v", e.Target, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// AppendError reports that a specific sink rejected a sample after starting.
// The target is degraded; the other outputs continue.
type AppendError struct {
	Target Target
	Err    error
}

func (e *AppendError) Error() string {
	return fmt.Sprintf("append to %s sink: %v", e.Target, e.Err)
}

func (e *AppendError) Unwrap() error { return e.Err }

// FinalizeError reports that a sink failed to close its container. Targets
// that finalized successfully are still handed to the persistence sink.
type FinalizeError struct {
	Target Target
	Err    error
}

func (e *FinalizeError) Error() string {
	return fmt.Sprintf("finalize %s sink: %v", e.Target, e.Err)
}

func (e *FinalizeError) Unwrap() error { return e.Err }
