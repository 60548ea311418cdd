package dualcam

// SessionState is the single source of truth for where a recording session
// is in its lifecycle. All components consult it instead of keeping their
// own shutdown flags.
type SessionState int32

const (
	StateUnconfigured SessionState = iota // No sinks allocated
	StateConfiguring                      // Sinks being built
	StateReady                            // Configured, waiting for the first video frame
	StateWriting                          // Accepting samples
	StateDraining                         // Stop requested, waiting for in-flight appends
	StateFinalizing                       // Containers being closed
	StateFinished                         // All outputs finalized
	StateFailed                           // Session failed; some outputs may have survived
)

func (s SessionState) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfiguring:
		return "configuring"
	case StateReady:
		return "ready"
	case StateWriting:
		return "writing"
	case StateDraining:
		return "draining"
	case StateFinalizing:
		return "finalizing"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is an end state of the session machine.
func (s SessionState) Terminal() bool {
	return s == StateFinished || s == StateFailed
}

// Session identifies one recording from configure to finalize. Exactly one
// session is active per coordinator.
type Session struct {
	ID       string // Unique session identifier
	StartPTS int64  // Timestamp of the first accepted video frame
	EndPTS   int64  // Synchronization cutoff computed at stop
}

// Result is the definitive terminal outcome of a recording, returned from
// StopWriting. Partial success is preserved: Finished lists every output
// that produced a playable file even when others failed.
type Result struct {
	SessionID     string
	StartPTS      int64
	EndPTS        int64
	Finished      map[Target]string // Finalized output paths by target
	Failed        map[Target]error  // Per-target failures
	DrainTimedOut bool              // Drain barrier hit its bound (best-effort finalize)
}

// Success reports whether all three outputs finalized.
func (r *Result) Success() bool {
	return len(r.Failed) == 0 && len(r.Finished) == NumTargets
}
