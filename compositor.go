package dualcam

import (
	"sync"
)

// Layout selects how the two camera streams are placed on the combined canvas.
type Layout int

const (
	// LayoutStack places the front camera on the top half of the canvas and
	// the back camera on the bottom half.
	LayoutStack Layout = iota
	// LayoutPiP renders the back camera full-canvas with the front camera
	// inset at a corner.
	LayoutPiP
)

func (l Layout) String() string {
	switch l {
	case LayoutStack:
		return "stack"
	case LayoutPiP:
		return "pip"
	default:
		return "unknown"
	}
}

// PiPCorner selects the corner for the picture-in-picture inset.
type PiPCorner int

const (
	PiPBottomRight PiPCorner = iota
	PiPBottomLeft
	PiPTopRight
	PiPTopLeft
)

// CompositorConfig configures the combined-output compositor.
type CompositorConfig struct {
	Width       int       // Canvas width
	Height      int       // Canvas height
	Layout      Layout    // Placement of the two streams
	PiPCorner   PiPCorner // Corner for the inset (LayoutPiP only)
	PiPFraction float64   // Inset width as a fraction of canvas width (default 0.33)
	PiPMargin   int       // Margin from the canvas edge in pixels (default 24)
	Background  [3]byte   // Canvas background color (Y, U, V)
}

// DefaultCompositorConfig returns a default compositor configuration.
func DefaultCompositorConfig() CompositorConfig {
	return CompositorConfig{
		Width:      1080,
		Height:     1920,
		Layout:     LayoutStack,
		PiPCorner:  PiPBottomRight,
		Background: [3]byte{16, 128, 128}, // Black in YUV
	}
}

// CompositorStats counts compose outcomes since the last BeginRecording.
type CompositorStats struct {
	Composited      uint64 // Combined frames emitted
	DroppedNoSource uint64 // Back frames dropped for lack of a front buffer
	DroppedShutdown uint64 // Frames refused while shutdown mode was armed
	DroppedStale    uint64 // Frames older than the last emitted composite
}

// cacheEntry holds the most recent buffer seen for one video stream.
// fresh marks entries delivered after the last Reset; while shutdown mode
// is armed only fresh entries may contribute to a composite.
type cacheEntry struct {
	frame *VideoFrame
	pts   int64
	valid bool
	fresh bool
}

// Compositor combines the two camera streams into one I420 canvas.
//
// It caches the last buffer per stream to tolerate delivery jitter between
// the independent camera callbacks, and emits one combined frame per back
// camera frame. Reset arms shutdown mode: from that instant a composite is
// only produced from buffers delivered after the reset, never synthesized
// from a cached one, so the combined output cannot end on a repeated stale
// frame when one camera stops delivering first.
//
// Compose is called concurrently from both video ingestion paths; the cache
// is guarded by a single mutex with no I/O inside the critical section.
type Compositor struct {
	config CompositorConfig

	mu       sync.Mutex
	cache    [2]cacheEntry // Indexed by StreamID (front, back)
	shutdown bool
	lastPTS  int64
	emitted  bool
	stats    CompositorStats

	accel *accelBackend // Optional native acceleration, nil when unavailable
}

// NewCompositor creates a compositor for the given canvas configuration.
// Native acceleration is used when the accelerator library is loadable;
// otherwise composition runs on the pure Go path.
func NewCompositor(config CompositorConfig) *Compositor {
	if config.Width <= 0 {
		config.Width = 1080
	}
	if config.Height <= 0 {
		config.Height = 1920
	}
	// Ensure even dimensions
	config.Width = (config.Width + 1) &^ 1
	config.Height = (config.Height + 1) &^ 1
	if config.PiPFraction <= 0 || config.PiPFraction >= 1 {
		config.PiPFraction = 0.33
	}
	if config.PiPMargin <= 0 {
		config.PiPMargin = 24
	}

	c := &Compositor{config: config}
	if accel, err := newAccelBackend(config.Width, config.Height); err == nil {
		c.accel = accel
	}
	return c
}

// Config returns the compositor configuration.
func (c *Compositor) Config() CompositorConfig {
	return c.config
}

// Accelerated reports whether the native acceleration backend is active.
func (c *Compositor) Accelerated() bool {
	return c.accel != nil
}

// BeginRecording clears the cache and disarms shutdown mode. Called at
// session start so no frame from a previous recording can bleed into a
// new one.
func (c *Compositor) BeginRecording() {
	c.mu.Lock()
	c.clearCacheLocked()
	c.shutdown = false
	c.lastPTS = 0
	c.emitted = false
	c.stats = CompositorStats{}
	c.mu.Unlock()
}

// Reset clears the cache and arms shutdown mode. While armed, Compose
// requires both streams to have delivered since the reset and never reuses
// a pre-reset buffer.
func (c *Compositor) Reset() {
	c.mu.Lock()
	c.clearCacheLocked()
	c.shutdown = true
	c.mu.Unlock()
}

// Flush blocks until the acceleration backend has completed all outstanding
// work. Called once after Reset, before the encoder inputs are marked
// finished, so no in-flight render is discarded by closing the writer.
// A no-op on the pure Go path.
func (c *Compositor) Flush() {
	if c.accel != nil {
		c.accel.finish()
	}
}

// Close releases the acceleration backend, if any.
func (c *Compositor) Close() error {
	c.mu.Lock()
	c.clearCacheLocked()
	c.mu.Unlock()
	if c.accel != nil {
		c.accel.destroy()
		c.accel = nil
	}
	return nil
}

// Stats returns compose counters for the current recording.
func (c *Compositor) Stats() CompositorStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Compositor) clearCacheLocked() {
	for i := range c.cache {
		c.cache[i] = cacheEntry{}
	}
}

// Compose feeds one video frame into the compositor and returns the combined
// frame when one can be produced, or nil when the frame only updated the
// cache (or was dropped). The back camera drives emission: each accepted
// back frame is combined with the most recent front buffer.
func (c *Compositor) Compose(id StreamID, frame *VideoFrame) *VideoFrame {
	if !id.IsVideo() || frame == nil {
		return nil
	}
	if frame.Format == PixelFormatNV12 {
		frame = NV12ToI420(frame)
	}
	if frame.Format != PixelFormatI420 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// The cache retains the buffer past this callback, so it keeps its own
	// copy. The caller's frame is only read within this call.
	c.cache[id] = cacheEntry{
		frame: frame.Clone(),
		pts:   frame.PTS,
		valid: true,
		fresh: true,
	}

	if id != StreamBack {
		return nil
	}

	front := &c.cache[StreamFront]
	if c.shutdown {
		if !front.fresh {
			c.stats.DroppedShutdown++
			return nil
		}
	} else if !front.valid {
		c.stats.DroppedNoSource++
		return nil
	}

	// A composite must never be older than one already emitted.
	if c.emitted && frame.PTS < c.lastPTS {
		c.stats.DroppedStale++
		return nil
	}

	out := c.render(front.frame, frame)

	if c.shutdown {
		// Freshness is consumed: the next composite needs a newer front
		// buffer again.
		front.fresh = false
		c.cache[StreamBack].fresh = false
	}
	c.lastPTS = frame.PTS
	c.emitted = true
	c.stats.Composited++

	return out
}

// render draws both streams onto a new canvas. The output frame carries the
// back camera's timestamp.
func (c *Compositor) render(front, back *VideoFrame) *VideoFrame {
	frontR, backR := c.regions()

	if c.accel != nil {
		if out := c.renderAccel(front, back, frontR, backR); out != nil {
			return out
		}
		// Backend refused the frame; fall through to the Go path.
	}

	out := NewI420Frame(c.config.Width, c.config.Height, back.PTS)
	out.Duration = back.Duration
	clearI420(out, c.config.Background[0], c.config.Background[1], c.config.Background[2])

	switch c.config.Layout {
	case LayoutPiP:
		// Back first, inset on top.
		drawRegion(out, backR, back)
		drawRegion(out, frontR, front)
	default:
		drawRegion(out, frontR, front)
		drawRegion(out, backR, back)
	}
	return out
}

func (c *Compositor) renderAccel(front, back *VideoFrame, frontR, backR region) *VideoFrame {
	c.accel.clear(c.config.Background[0], c.config.Background[1], c.config.Background[2])
	switch c.config.Layout {
	case LayoutPiP:
		c.accel.blendScaled(back, backR)
		c.accel.blendScaled(front, frontR)
	default:
		c.accel.blendScaled(front, frontR)
		c.accel.blendScaled(back, backR)
	}

	y, u, v, strideY, strideUV := c.accel.result()
	if y == nil {
		return nil
	}
	return &VideoFrame{
		Data:     [][]byte{y, u, v},
		Stride:   []int{strideY, strideUV, strideUV},
		Width:    c.config.Width,
		Height:   c.config.Height,
		Format:   PixelFormatI420,
		PTS:      back.PTS,
		Duration: back.Duration,
	}
}

// regions returns the placement rectangles for the front and back streams.
func (c *Compositor) regions() (front, back region) {
	w, h := c.config.Width, c.config.Height

	switch c.config.Layout {
	case LayoutPiP:
		back = region{X: 0, Y: 0, W: w, H: h}

		pipW := int(float64(w) * c.config.PiPFraction)
		pipH := pipW * h / w
		margin := c.config.PiPMargin

		var x, y int
		switch c.config.PiPCorner {
		case PiPTopLeft:
			x, y = margin, margin
		case PiPTopRight:
			x, y = w-pipW-margin, margin
		case PiPBottomLeft:
			x, y = margin, h-pipH-margin
		default: // bottom-right
			x, y = w-pipW-margin, h-pipH-margin
		}
		front = region{X: x, Y: y, W: pipW, H: pipH}

	default: // LayoutStack
		front = region{X: 0, Y: 0, W: w, H: h / 2}
		back = region{X: 0, Y: h / 2, W: w, H: h / 2}
	}
	return front, back
}
