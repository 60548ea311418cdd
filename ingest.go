package dualcam

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultMinFrameInterval is the per-video-stream rate limit floor,
// matched to 60 Hz capture.
const DefaultMinFrameInterval = time.Second / 60

// rateTolerance loosens the rate limiter so nominal-rate producers with
// timestamp jitter are not penalized.
const rateTolerance = 0.10

// RouterConfig configures the ingestion router.
type RouterConfig struct {
	Coordinator *Coordinator   // Append destination (required)
	Compositor  *Compositor    // Combined-frame producer (required)
	Clock       *Clock         // Shared synchronization clock (required)
	Logger      *logrus.Logger // Structured logger (default logrus standard logger)

	// MinFrameInterval is the minimum spacing between accepted frames per
	// video stream; closer frames are dropped. Default 1/60 s.
	MinFrameInterval time.Duration

	// MinAudioInterval optionally rate-limits the audio stream. Zero
	// disables it: microphone buffers arrive paced by the hardware.
	MinAudioInterval time.Duration
}

// RouterStats counts per-stream accept/drop decisions since session start.
type RouterStats struct {
	Accepted     [3]uint64 // Samples forwarded, indexed by StreamID
	DroppedRate  [3]uint64 // Dropped by the rate limiter
	DroppedState [3]uint64 // Dropped because the session was not writing
}

// Router is the single entry point for every hardware capture callback.
//
// The two camera streams and the microphone each invoke it from their own
// uncoordinated context at up to 60 Hz per video stream. The router checks
// session readiness, applies per-stream backpressure by dropping
// too-closely-spaced samples (never reordering), records accepted
// timestamps into the clock, and dispatches work to the coordinator. The
// very first accepted video frame performs the one-time transition into
// the writing state, anchored at that frame's timestamp.
type Router struct {
	log   *logrus.Entry
	coord *Coordinator
	comp  *Compositor
	clock *Clock

	threshold [3]int64 // Effective min spacing per stream in nanoseconds

	mu           sync.Mutex
	lastAccepted [3]int64
	hasAccepted  [3]bool
	started      bool
	stats        RouterStats
}

// NewRouter creates an ingestion router.
func NewRouter(cfg RouterConfig) (*Router, error) {
	if cfg.Coordinator == nil {
		return nil, &ConfigurationError{Field: "coordinator", Reason: "required"}
	}
	if cfg.Compositor == nil {
		return nil, &ConfigurationError{Field: "compositor", Reason: "required"}
	}
	if cfg.Clock == nil {
		return nil, &ConfigurationError{Field: "clock", Reason: "required"}
	}
	if cfg.MinFrameInterval <= 0 {
		cfg.MinFrameInterval = DefaultMinFrameInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	videoThreshold := threshold(cfg.MinFrameInterval)
	audioThreshold := int64(0)
	if cfg.MinAudioInterval > 0 {
		audioThreshold = threshold(cfg.MinAudioInterval)
	}

	return &Router{
		log:   cfg.Logger.WithField("module", "router"),
		coord: cfg.Coordinator,
		comp:  cfg.Compositor,
		clock: cfg.Clock,
		threshold: [3]int64{
			StreamFront: videoThreshold,
			StreamBack:  videoThreshold,
			StreamAudio: audioThreshold,
		},
	}, nil
}

// threshold applies the jitter tolerance to a configured interval.
func threshold(interval time.Duration) int64 {
	ns := interval.Nanoseconds()
	return ns - ns/int64(1/rateTolerance)
}

// BeginRecording clears per-stream accept state for a new session. Called
// by the recorder at configure time.
func (r *Router) BeginRecording() {
	r.mu.Lock()
	r.lastAccepted = [3]int64{}
	r.hasAccepted = [3]bool{}
	r.started = false
	r.stats = RouterStats{}
	r.mu.Unlock()
}

// Stats returns accept/drop counters for the current session.
func (r *Router) Stats() RouterStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// LastAcceptedPTS returns the timestamp of the last sample the rate
// limiter let through for a stream.
func (r *Router) LastAcceptedPTS(id StreamID) (int64, bool) {
	if id < 0 || int(id) >= len(r.lastAccepted) {
		return 0, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastAccepted[id], r.hasAccepted[id]
}

// OnVideoFrame is the hardware callback entry point for the two camera
// streams. Fire-and-forget: it never blocks on encoding.
func (r *Router) OnVideoFrame(id StreamID, frame *VideoFrame) {
	if !id.IsVideo() || frame == nil {
		return
	}

	switch r.coord.State() {
	case StateWriting:
		if !r.accept(id, frame.PTS) {
			return
		}
	case StateReady:
		// The first accepted video frame anchors the session.
		if !r.tryStart(id, frame.PTS) {
			return
		}
	default:
		r.dropForState(id)
		return
	}

	r.dispatchVideo(id, frame)
}

// OnAudioSamples is the hardware callback entry point for the microphone.
// Audio never starts a session; buffers arriving before the first video
// frame are dropped.
func (r *Router) OnAudioSamples(samples *AudioSamples) {
	if samples == nil {
		return
	}
	if r.coord.State() != StateWriting {
		r.dropForState(StreamAudio)
		return
	}
	if !r.accept(StreamAudio, samples.PTS) {
		return
	}
	r.coord.AppendAudio(samples)
}

// accept runs the per-stream rate limiter and records the timestamp.
func (r *Router) accept(id StreamID, pts int64) bool {
	r.mu.Lock()
	if r.hasAccepted[id] && r.threshold[id] > 0 && pts-r.lastAccepted[id] < r.threshold[id] {
		r.stats.DroppedRate[id]++
		r.mu.Unlock()
		return false
	}
	r.lastAccepted[id] = pts
	r.hasAccepted[id] = true
	r.stats.Accepted[id]++
	r.mu.Unlock()

	r.clock.RecordPTS(id, pts)
	return true
}

// tryStart performs the one-time writing transition on the first video
// frame. Races between the two camera callbacks are resolved under the
// router lock; the loser drops its frame and the next one flows normally.
func (r *Router) tryStart(id StreamID, pts int64) bool {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return false
	}
	r.started = true
	r.lastAccepted[id] = pts
	r.hasAccepted[id] = true
	r.stats.Accepted[id]++
	r.mu.Unlock()

	r.clock.RecordPTS(id, pts)

	if err := r.coord.StartWriting(pts); err != nil {
		r.log.WithError(err).Error("session start failed")
		// Release the latch so the next configured session can start.
		r.mu.Lock()
		r.started = false
		r.mu.Unlock()
		return false
	}
	return true
}

func (r *Router) dropForState(id StreamID) {
	r.mu.Lock()
	r.stats.DroppedState[id]++
	r.mu.Unlock()
}

// dispatchVideo forwards an accepted frame to its single-stream sink and
// through the compositor toward the combined sink.
func (r *Router) dispatchVideo(id StreamID, frame *VideoFrame) {
	switch id {
	case StreamFront:
		r.coord.AppendVideo(TargetFront, frame)
	case StreamBack:
		r.coord.AppendVideo(TargetBack, frame)
	}

	if combined := r.comp.Compose(id, frame); combined != nil {
		r.coord.AppendVideo(TargetCombined, combined)
	}
}
