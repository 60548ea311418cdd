package dualcam

// Target identifies one of the three output files of a recording.
type Target int

const (
	TargetFront    Target = iota // Front-camera-only output
	TargetBack                   // Back-camera-only output
	TargetCombined               // Composited output with both streams
)

// NumTargets is the fixed number of outputs per recording.
const NumTargets = 3

func (t Target) String() string {
	switch t {
	case TargetFront:
		return "front"
	case TargetBack:
		return "back"
	case TargetCombined:
		return "combined"
	default:
		return "unknown"
	}
}

// WriterState tracks the lifecycle of one sink's container writer.
type WriterState int

const (
	WriterIdle      WriterState = iota // Allocated, output not opened
	WriterWriting                      // Accepting samples
	WriterEnded                        // Session ended at the sync cutoff, no new samples
	WriterFinished                     // Container closed successfully
	WriterFailed                       // Writer rejected a sample or failed to close
	WriterCancelled                    // Aborted, partial file removed
)

func (s WriterState) String() string {
	switch s {
	case WriterIdle:
		return "idle"
	case WriterWriting:
		return "writing"
	case WriterEnded:
		return "ended"
	case WriterFinished:
		return "finished"
	case WriterFailed:
		return "failed"
	case WriterCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// SinkConfig describes one output of a recording.
type SinkConfig struct {
	Target Target      // Which of the three outputs this sink produces
	Path   string      // Destination file path
	Codec  CodecConfig // Shared encoding parameters
	Audio  bool        // Whether this output carries the audio track
}

// Sink is one encoder/output-file pair. Implementations are not safe for
// concurrent use; the coordinator serializes every call through its command
// goroutine, which is the sink's single owner.
type Sink interface {
	// Start opens the output session anchored at the first accepted
	// timestamp. All three sinks of a recording share the same anchor so the
	// files can be re-synchronized externally.
	Start(firstPTS int64) error

	// AppendVideo encodes and writes one raw frame.
	AppendVideo(frame *VideoFrame) error

	// AppendAudio encodes and writes one raw audio buffer.
	AppendAudio(samples *AudioSamples) error

	// End marks the logical end of the session at the synchronization
	// cutoff. Samples already written with a later timestamp are trimmed if
	// the container supports it; later appends are discarded.
	End(pts int64) error

	// Finalize closes the container, making the file independently playable.
	Finalize() error

	// Cancel aborts the sink and removes any partial output file.
	Cancel() error

	// State returns the writer state.
	State() WriterState

	// Path returns the destination file path.
	Path() string
}

// SinkFactory creates the sink for one output at configure time. The default
// factory builds MP4 file sinks; tests substitute in-memory fakes.
type SinkFactory func(cfg SinkConfig) (Sink, error)
