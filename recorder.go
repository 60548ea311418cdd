package dualcam

import (
	"time"

	"github.com/sirupsen/logrus"
)

// RecorderConfig wires a complete capture-to-disk pipeline.
type RecorderConfig struct {
	// OutputPaths are the destinations for the front-only, back-only, and
	// combined files, indexed by Target.
	OutputPaths [NumTargets]string

	// Codec carries the shared encoding parameters for all three outputs.
	Codec CodecConfig

	// Layout configuration for the combined output.
	Layout      Layout
	PiPCorner   PiPCorner
	PiPFraction float64
	PiPMargin   int

	// MinFrameInterval is the per-camera backpressure floor (default 1/60 s).
	MinFrameInterval time.Duration
	// MinAudioInterval optionally rate-limits audio (default disabled).
	MinAudioInterval time.Duration

	// DrainTimeout bounds the stop sequence's wait for in-flight appends.
	DrainTimeout time.Duration
	// MinFreeBytes is the disk space required to start writing.
	MinFreeBytes uint64

	// Sinks overrides the output implementation. When nil, MP4 file sinks
	// are built from the encoder factories below.
	Sinks         SinkFactory
	VideoEncoders VideoEncoderFactory
	AudioEncoders AudioEncoderFactory

	// Publisher receives each finalized file (optional).
	Publisher Publisher

	Logger *logrus.Logger
}

// Recorder is the capture-to-disk pipeline of a dual-camera recording
// session: two camera streams and one microphone in, three time-synchronized
// container files out (front-only, back-only, combined).
//
// Hardware callbacks feed OnVideoFrame/OnAudioSamples; the capture manager
// drives Configure and StopWriting. Writing begins automatically on the
// first video frame after Configure. At most one session is active per
// Recorder at a time; Configure may be called again once a session reaches
// a terminal state.
type Recorder struct {
	cfg    RecorderConfig
	clock  *Clock
	comp   *Compositor
	coord  *Coordinator
	router *Router
}

// NewRecorder builds the pipeline. The configuration is validated again at
// Configure time, when the sinks are actually allocated.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Sinks == nil {
		if cfg.VideoEncoders == nil || cfg.AudioEncoders == nil {
			return nil, &ConfigurationError{
				Field:  "sinks",
				Reason: "either Sinks or both encoder factories must be set",
			}
		}
		cfg.Sinks = NewMP4SinkFactory(cfg.VideoEncoders, cfg.AudioEncoders)
	}

	codec := cfg.Codec
	codec.normalize()

	clock := NewClock()
	comp := NewCompositor(CompositorConfig{
		Width:       codec.Width,
		Height:      codec.Height,
		Layout:      cfg.Layout,
		PiPCorner:   cfg.PiPCorner,
		PiPFraction: cfg.PiPFraction,
		PiPMargin:   cfg.PiPMargin,
	})

	coord, err := NewCoordinator(CoordinatorConfig{
		Clock:        clock,
		Compositor:   comp,
		Sinks:        cfg.Sinks,
		Publisher:    cfg.Publisher,
		DrainTimeout: cfg.DrainTimeout,
		MinFreeBytes: cfg.MinFreeBytes,
		Logger:       cfg.Logger,
	})
	if err != nil {
		comp.Close()
		return nil, err
	}

	router, err := NewRouter(RouterConfig{
		Coordinator:      coord,
		Compositor:       comp,
		Clock:            clock,
		Logger:           cfg.Logger,
		MinFrameInterval: cfg.MinFrameInterval,
		MinAudioInterval: cfg.MinAudioInterval,
	})
	if err != nil {
		coord.Close()
		comp.Close()
		return nil, err
	}

	return &Recorder{
		cfg:    cfg,
		clock:  clock,
		comp:   comp,
		coord:  coord,
		router: router,
	}, nil
}

// Configure allocates the three encoder sinks and readies a new session.
// Surfaces ConfigurationError synchronously for invalid paths or codec
// parameters.
func (r *Recorder) Configure() error {
	r.router.BeginRecording()
	return r.coord.Configure(r.cfg.OutputPaths, r.cfg.Codec)
}

// OnVideoFrame is the callback entry point for the two camera streams.
func (r *Recorder) OnVideoFrame(id StreamID, frame *VideoFrame) {
	r.router.OnVideoFrame(id, frame)
}

// OnAudioSamples is the callback entry point for the microphone.
func (r *Recorder) OnAudioSamples(samples *AudioSamples) {
	r.router.OnAudioSamples(samples)
}

// StartWriting opens the output sessions at an explicit anchor timestamp.
// Normally unnecessary: the first video frame after Configure starts the
// session automatically.
func (r *Recorder) StartWriting(firstPTS int64) error {
	return r.coord.StartWriting(firstPTS)
}

// StopWriting drains, finalizes all three outputs, and returns the
// definitive session result.
func (r *Recorder) StopWriting() (*Result, error) {
	return r.coord.StopWriting()
}

// State returns the current session state.
func (r *Recorder) State() SessionState {
	return r.coord.State()
}

// Session returns the active session, or nil before the first Configure.
func (r *Recorder) Session() *Session {
	return r.coord.Session()
}

// RouterStats returns per-stream accept/drop counters.
func (r *Recorder) RouterStats() RouterStats {
	return r.router.Stats()
}

// CompositorStats returns combined-output compose counters.
func (r *Recorder) CompositorStats() CompositorStats {
	return r.comp.Stats()
}

// Close releases the pipeline. An active session is not finalized; call
// StopWriting first.
func (r *Recorder) Close() error {
	err := r.coord.Close()
	r.comp.Close()
	return err
}
