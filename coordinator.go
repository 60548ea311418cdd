package dualcam

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	multierror "github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultDrainTimeout bounds how long StopWriting waits for in-flight
// appends before finalizing anyway. Tunable per target hardware.
const DefaultDrainTimeout = 2 * time.Second

// DefaultMinFreeBytes is the free disk space required before a session may
// transition to writing.
const DefaultMinFreeBytes = 256 << 20 // 256 MiB

// compositorControl is the slice of the Compositor the coordinator drives
// during the session lifecycle.
type compositorControl interface {
	BeginRecording()
	Reset()
	Flush()
}

// CoordinatorConfig configures an encoding coordinator.
type CoordinatorConfig struct {
	Clock        *Clock            // Shared synchronization clock (required)
	Compositor   compositorControl // Combined-output compositor (required)
	Sinks        SinkFactory       // Builds the three sinks at configure time (required)
	Publisher    Publisher         // Receives finalized files (optional)
	DrainTimeout time.Duration     // Drain barrier bound (default 2s)
	MinFreeBytes uint64            // Free space required to start (default 256 MiB, 0 disables)
	QueueSize    int               // Command queue depth (default 256)
	Logger       *logrus.Logger    // Structured logger (default logrus standard logger)
}

// Coordinator owns the three encoder sinks of a recording session.
//
// The underlying writer objects are not safe for concurrent mutation, so
// every sink operation is funneled through a single command goroutine: the
// coordinator's one logical owner. Configure, StartWriting and StopWriting
// run as commands and block their caller until executed; appends are
// enqueued fire-and-forget and tracked by a pending counter so the stop
// sequence can drain them before any container is finalized.
type Coordinator struct {
	log   *logrus.Entry
	clock *Clock
	comp  compositorControl

	sinkFactory  SinkFactory
	publisher    Publisher
	drainTimeout time.Duration
	minFreeBytes uint64

	state atomic.Int32 // SessionState, read lock-free by the ingestion router

	cmds      chan func()
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	pending   atomic.Int64  // Appends accepted but not yet written
	drained   chan struct{} // Signaled when pending reaches zero
	queueFull atomic.Uint64 // Accepted samples discarded on queue overflow

	// Owned by the command goroutine.
	session    *Session
	sinks      [NumTargets]Sink
	sinkFailed [NumTargets]error
	codec      CodecConfig
	paths      [NumTargets]string
}

// NewCoordinator creates a coordinator and starts its command goroutine.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Clock == nil {
		return nil, &ConfigurationError{Field: "clock", Reason: "required"}
	}
	if cfg.Compositor == nil {
		return nil, &ConfigurationError{Field: "compositor", Reason: "required"}
	}
	if cfg.Sinks == nil {
		return nil, &ConfigurationError{Field: "sinks", Reason: "required"}
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	c := &Coordinator{
		log:          cfg.Logger.WithField("module", "coordinator"),
		clock:        cfg.Clock,
		comp:         cfg.Compositor,
		sinkFactory:  cfg.Sinks,
		publisher:    cfg.Publisher,
		drainTimeout: cfg.DrainTimeout,
		minFreeBytes: cfg.MinFreeBytes,
		cmds:         make(chan func(), cfg.QueueSize),
		done:         make(chan struct{}),
		drained:      make(chan struct{}, 1),
	}
	c.state.Store(int32(StateUnconfigured))

	c.wg.Add(1)
	go c.run()

	return c, nil
}

func (c *Coordinator) run() {
	defer c.wg.Done()
	for {
		select {
		case cmd := <-c.cmds:
			cmd()
		case <-c.done:
			// Drain remaining commands so blocked callers get replies.
			for {
				select {
				case cmd := <-c.cmds:
					cmd()
				default:
					return
				}
			}
		}
	}
}

// Close shuts down the command goroutine. A session still writing is left
// un-finalized; call StopWriting first.
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
	return nil
}

// State returns the current session state.
func (c *Coordinator) State() SessionState {
	return SessionState(c.state.Load())
}

// Session returns the active session, or nil before the first Configure.
func (c *Coordinator) Session() *Session {
	var s *Session
	c.call(func() error {
		s = c.session
		return nil
	})
	return s
}

func (c *Coordinator) setState(s SessionState) {
	prev := SessionState(c.state.Swap(int32(s)))
	if prev != s {
		c.log.WithFields(logrus.Fields{"from": prev.String(), "to": s.String()}).Debug("state transition")
	}
}

// call runs fn on the command goroutine and waits for it to complete.
func (c *Coordinator) call(fn func() error) error {
	errCh := make(chan error, 1)
	select {
	case c.cmds <- func() { errCh <- fn() }:
	case <-c.done:
		return ErrClosed
	}
	select {
	case err := <-errCh:
		return err
	case <-c.done:
		// The shutdown path flushes the queue before the goroutine exits.
		// Once it has, either our command ran and left a reply, or it was
		// enqueued too late and will never run.
		c.wg.Wait()
		select {
		case err := <-errCh:
			return err
		default:
			return ErrClosed
		}
	}
}

// Configure validates the output configuration and allocates the three
// sinks. Reentrant while not writing: a prior configuration (and its sinks)
// is fully replaced, so no stale writer references survive.
func (c *Coordinator) Configure(paths [NumTargets]string, codec CodecConfig) error {
	return c.call(func() error {
		state := c.State()
		if state == StateWriting || state == StateDraining || state == StateFinalizing {
			return ErrAlreadyWriting
		}

		codec.normalize()
		if !codec.Orientation.Valid() {
			return &ConfigurationError{Field: "orientation", Reason: fmt.Sprintf("unsupported rotation %d", int(codec.Orientation))}
		}
		for t, p := range paths {
			if p == "" {
				return &ConfigurationError{Field: "path", Reason: fmt.Sprintf("empty path for %s output", Target(t))}
			}
		}

		prev := c.sinks
		c.setState(StateConfiguring)

		var sinks [NumTargets]Sink
		for t := 0; t < NumTargets; t++ {
			sink, err := c.sinkFactory(SinkConfig{
				Target: Target(t),
				Path:   paths[t],
				Codec:  codec,
				Audio:  true, // All three outputs carry the shared audio track
			})
			if err != nil {
				for i := 0; i < t; i++ {
					sinks[i].Cancel()
				}
				c.setState(state)
				return err
			}
			sinks[t] = sink
		}

		// Release the replaced sinks before the new ones take over.
		for _, s := range prev {
			if s != nil {
				s.Cancel()
			}
		}

		c.sinks = sinks
		c.sinkFailed = [NumTargets]error{}
		c.codec = codec
		c.paths = paths
		c.session = &Session{ID: uuid.NewString()}

		c.clock.Reset()
		c.comp.BeginRecording()

		c.setState(StateReady)
		c.log.WithFields(logrus.Fields{
			"session": c.session.ID,
			"size":    fmt.Sprintf("%dx%d", codec.Width, codec.Height),
			"fps":     codec.FrameRate,
		}).Info("session configured")
		return nil
	})
}

// StartWriting opens all three output sessions anchored at the timestamp of
// the first accepted video frame. All-or-nothing: if any sink fails to
// start, or an output volume lacks the required free space, every sink is
// cancelled, no partial files remain, and the session fails. A failed
// session is terminal; Configure starts a fresh one.
func (c *Coordinator) StartWriting(firstPTS int64) error {
	return c.call(func() error {
		switch c.State() {
		case StateReady:
		case StateUnconfigured:
			return ErrNotConfigured
		default:
			return fmt.Errorf("start in state %s", c.State())
		}

		if c.minFreeBytes > 0 {
			for t := 0; t < NumTargets; t++ {
				if err := checkFreeSpace(c.paths[t], c.minFreeBytes); err != nil {
					for i := 0; i < NumTargets; i++ {
						c.sinks[i].Cancel()
					}
					c.setState(StateFailed)
					return err
				}
			}
		}

		for t := 0; t < NumTargets; t++ {
			if err := c.sinks[t].Start(firstPTS); err != nil {
				// Cancel every sink, including ones already started, so no
				// output records only part of the session.
				for i := 0; i < NumTargets; i++ {
					c.sinks[i].Cancel()
				}
				c.setState(StateFailed)
				return &StartError{Target: Target(t), Err: err}
			}
		}

		c.session.StartPTS = firstPTS
		c.setState(StateWriting)
		c.log.WithFields(logrus.Fields{
			"session":   c.session.ID,
			"first_pts": firstPTS,
		}).Info("writing started")
		return nil
	})
}

// AppendVideo enqueues one raw video frame for a target. A no-op unless the
// session is writing; samples for a target whose writer already failed are
// dropped silently while the other outputs continue.
func (c *Coordinator) AppendVideo(target Target, frame *VideoFrame) {
	// Barrier registration precedes the state check: a concurrent stop
	// either observes the pending count or this callback observes the
	// swapped state, so no accepted sample can slip past the drain.
	c.pending.Add(1)
	if c.State() != StateWriting {
		c.appendDone()
		return
	}
	c.enqueueAppend(func() {
		c.execAppend(target, func(s Sink) error { return s.AppendVideo(frame) })
	})
}

// AppendAudio enqueues one raw audio buffer for every output that carries
// audio (all three in this design).
func (c *Coordinator) AppendAudio(samples *AudioSamples) {
	for t := 0; t < NumTargets; t++ {
		target := Target(t)
		c.pending.Add(1)
		if c.State() != StateWriting {
			c.appendDone()
			continue
		}
		c.enqueueAppend(func() {
			c.execAppend(target, func(s Sink) error { return s.AppendAudio(samples) })
		})
	}
}

// enqueueAppend hands one append to the command goroutine. The caller has
// already registered it with the drain barrier.
func (c *Coordinator) enqueueAppend(exec func()) {
	select {
	case c.cmds <- func() { exec(); c.appendDone() }:
	case <-c.done:
		c.appendDone()
	default:
		// Queue full: the encoder has fallen behind the rate limiter.
		// Dropping here bounds memory instead of blocking a callback.
		c.appendDone()
		c.queueFull.Add(1)
		c.log.WithField("dropped", c.queueFull.Load()).Warn("append queue full, sample dropped")
	}
}

func (c *Coordinator) appendDone() {
	if c.pending.Add(-1) == 0 {
		select {
		case c.drained <- struct{}{}:
		default:
		}
	}
}

// execAppend runs one append on the command goroutine.
func (c *Coordinator) execAppend(target Target, write func(Sink) error) {
	// Appends left over after a drain timeout must not touch sinks that
	// finish has already ended or finalized.
	if s := c.State(); s != StateWriting && s != StateDraining {
		return
	}
	if c.sinkFailed[target] != nil || c.sinks[target] == nil {
		return
	}
	if err := write(c.sinks[target]); err != nil {
		// Degrade this target only; the other outputs keep recording.
		c.sinkFailed[target] = &AppendError{Target: target, Err: err}
		c.log.WithError(err).WithFields(logrus.Fields{
			"session": c.session.ID,
			"target":  target.String(),
		}).Warn("sink degraded, continuing with remaining outputs")
	}
}

// PendingAppends returns the number of accepted-but-unwritten samples.
func (c *Coordinator) PendingAppends() int64 {
	return c.pending.Load()
}

// DroppedAppends returns the number of accepted samples discarded because
// the append queue overflowed.
func (c *Coordinator) DroppedAppends() uint64 {
	return c.queueFull.Load()
}

// StopWriting drains in-flight appends, ends every sink at the
// synchronization cutoff, flushes the compositor, finalizes the containers,
// and hands finished files to the persistence sink. It always produces a
// definitive terminal Result.
func (c *Coordinator) StopWriting() (*Result, error) {
	// Stop accepting new samples first; the router's state check enforces
	// this from the moment the swap lands.
	if !c.state.CompareAndSwap(int32(StateWriting), int32(StateDraining)) {
		return nil, ErrNotWriting
	}
	c.log.Debug("draining")

	// Drain barrier: every accepted sample is written before finalization,
	// bounded so stop can never hang on a wedged encoder.
	timedOut := c.waitDrained(c.drainTimeout)
	if timedOut {
		c.log.WithFields(logrus.Fields{
			"pending": c.pending.Load(),
			"timeout": c.drainTimeout.String(),
		}).Warn(ErrDrainTimeout.Error())
	}

	var result *Result
	err := c.call(func() error {
		result = c.finish(timedOut)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Coordinator) waitDrained(timeout time.Duration) bool {
	if c.pending.Load() == 0 {
		return false
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-c.drained:
			if c.pending.Load() == 0 {
				return false
			}
		case <-timer.C:
			return c.pending.Load() > 0
		}
	}
}

// finish runs on the command goroutine, strictly after every drained append.
func (c *Coordinator) finish(drainTimedOut bool) *Result {
	endPTS, ok := c.clock.SafeEndPTS()
	if !ok {
		endPTS = c.session.StartPTS
	}
	c.session.EndPTS = endPTS

	// End every healthy sink at the cutoff so no output carries a frozen
	// video tail or unmatched audio beyond the other streams' last sample.
	for t := 0; t < NumTargets; t++ {
		if c.sinkFailed[t] != nil {
			continue
		}
		if err := c.sinks[t].End(endPTS); err != nil {
			c.sinkFailed[t] = &AppendError{Target: Target(t), Err: err}
			c.log.WithError(err).WithField("target", Target(t).String()).Warn("end session failed")
		}
	}

	// Invalidate the compositor cache before the writers close, and wait for
	// any accelerated work so no in-flight render is discarded.
	c.comp.Reset()
	c.comp.Flush()

	c.setState(StateFinalizing)

	result := &Result{
		SessionID:     c.session.ID,
		StartPTS:      c.session.StartPTS,
		EndPTS:        endPTS,
		Finished:      make(map[Target]string),
		Failed:        make(map[Target]error),
		DrainTimedOut: drainTimedOut,
	}

	// Containers close concurrently; the sinks are independent from here on.
	var mu sync.Mutex
	var g errgroup.Group
	for t := 0; t < NumTargets; t++ {
		target := Target(t)
		sink := c.sinks[t]
		failed := c.sinkFailed[t]
		g.Go(func() error {
			if failed != nil {
				sink.Cancel()
				mu.Lock()
				result.Failed[target] = failed
				mu.Unlock()
				return nil
			}
			if err := sink.Finalize(); err != nil {
				mu.Lock()
				result.Failed[target] = &FinalizeError{Target: target, Err: err}
				mu.Unlock()
				return nil
			}
			mu.Lock()
			result.Finished[target] = sink.Path()
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	if result.Success() {
		c.setState(StateFinished)
	} else {
		c.setState(StateFailed)
		var errs error
		for t, err := range result.Failed {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", t, err))
		}
		c.log.WithError(errs).Warn("session finished with failed outputs")
	}

	// Hand every finished file over, even on partial failure.
	if c.publisher != nil {
		for target, path := range result.Finished {
			if err := c.publisher.Publish(path); err != nil {
				c.log.WithError(err).WithFields(logrus.Fields{
					"target": target.String(),
					"path":   path,
				}).Error("publish failed")
			}
		}
	}

	c.log.WithFields(logrus.Fields{
		"session":  c.session.ID,
		"end_pts":  endPTS,
		"finished": len(result.Finished),
		"failed":   len(result.Failed),
	}).Info("session stopped")

	return result
}
