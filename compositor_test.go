package dualcam

import "testing"

// solidFrame builds an I420 frame filled with one YUV color.
func solidFrame(w, h int, y, u, v byte, pts int64) *VideoFrame {
	f := NewI420Frame(w, h, pts)
	clearI420(f, y, u, v)
	return f
}

func newTestCompositor(layout Layout) *Compositor {
	return NewCompositor(CompositorConfig{
		Width:  64,
		Height: 64,
		Layout: layout,
	})
}

func TestCompositorConfigDefaults(t *testing.T) {
	c := NewCompositor(CompositorConfig{Width: 99, Height: 33, PiPFraction: 2})
	cfg := c.Config()
	if cfg.Width != 100 || cfg.Height != 34 {
		t.Fatalf("dimensions = %dx%d, want rounded even 100x34", cfg.Width, cfg.Height)
	}
	if cfg.PiPFraction != 0.33 {
		t.Fatalf("PiPFraction = %v, want default 0.33", cfg.PiPFraction)
	}
	if cfg.PiPMargin != 24 {
		t.Fatalf("PiPMargin = %d, want default 24", cfg.PiPMargin)
	}
}

func TestCompositorFrontOnlyCaches(t *testing.T) {
	c := newTestCompositor(LayoutStack)
	defer c.Close()
	c.BeginRecording()

	// Only the back camera drives emission.
	if out := c.Compose(StreamFront, solidFrame(32, 32, 100, 128, 128, 10)); out != nil {
		t.Fatal("front frame emitted a composite")
	}
	if s := c.Stats(); s.Composited != 0 {
		t.Fatalf("Composited = %d, want 0", s.Composited)
	}
}

func TestCompositorBackWithoutFrontDrops(t *testing.T) {
	c := newTestCompositor(LayoutStack)
	defer c.Close()
	c.BeginRecording()

	if out := c.Compose(StreamBack, solidFrame(32, 32, 100, 128, 128, 10)); out != nil {
		t.Fatal("composite produced without a front buffer")
	}
	if s := c.Stats(); s.DroppedNoSource != 1 {
		t.Fatalf("DroppedNoSource = %d, want 1", s.DroppedNoSource)
	}
}

func TestCompositorStackLayout(t *testing.T) {
	c := newTestCompositor(LayoutStack)
	defer c.Close()
	c.BeginRecording()

	c.Compose(StreamFront, solidFrame(32, 32, 200, 128, 128, 10))
	out := c.Compose(StreamBack, solidFrame(32, 32, 50, 128, 128, 12))
	if out == nil {
		t.Fatal("no composite emitted")
	}
	if out.Width != 64 || out.Height != 64 {
		t.Fatalf("composite = %dx%d, want 64x64", out.Width, out.Height)
	}
	if out.PTS != 12 {
		t.Fatalf("composite pts = %d, want the back frame's 12", out.PTS)
	}

	// Front on the top half, back on the bottom half.
	if got := out.Data[0][16*64+32]; got != 200 {
		t.Errorf("top-half Y = %d, want front color 200", got)
	}
	if got := out.Data[0][48*64+32]; got != 50 {
		t.Errorf("bottom-half Y = %d, want back color 50", got)
	}

	if s := c.Stats(); s.Composited != 1 {
		t.Fatalf("Composited = %d, want 1", s.Composited)
	}
}

func TestCompositorPiPLayout(t *testing.T) {
	c := NewCompositor(CompositorConfig{
		Width:     128,
		Height:    128,
		Layout:    LayoutPiP,
		PiPCorner: PiPBottomRight,
	})
	defer c.Close()
	c.BeginRecording()

	c.Compose(StreamFront, solidFrame(32, 32, 210, 128, 128, 10))
	out := c.Compose(StreamBack, solidFrame(32, 32, 60, 128, 128, 12))
	if out == nil {
		t.Fatal("no composite emitted")
	}

	// The back camera fills the canvas; the inset sits at the bottom-right
	// (width 128*0.33 = 42, margin 24, so the inset starts at 62,62).
	if got := out.Data[0][5*128+5]; got != 60 {
		t.Errorf("canvas Y = %d, want back color 60", got)
	}
	if got := out.Data[0][80*128+80]; got != 210 {
		t.Errorf("inset Y = %d, want front color 210", got)
	}
}

func TestCompositorShutdownRequiresFreshFrames(t *testing.T) {
	c := newTestCompositor(LayoutStack)
	defer c.Close()
	c.BeginRecording()

	c.Compose(StreamFront, solidFrame(32, 32, 200, 128, 128, 10))
	if out := c.Compose(StreamBack, solidFrame(32, 32, 50, 128, 128, 12)); out == nil {
		t.Fatal("no composite before shutdown")
	}

	// Arming shutdown invalidates the cache: the front buffer from before
	// the reset must never be repeated into a composite.
	c.Reset()
	if out := c.Compose(StreamBack, solidFrame(32, 32, 50, 128, 128, 20)); out != nil {
		t.Fatal("composite synthesized from a pre-reset front buffer")
	}
	if s := c.Stats(); s.DroppedShutdown != 1 {
		t.Fatalf("DroppedShutdown = %d, want 1", s.DroppedShutdown)
	}

	// A front frame delivered after the reset makes exactly one composite
	// possible.
	c.Compose(StreamFront, solidFrame(32, 32, 200, 128, 128, 22))
	if out := c.Compose(StreamBack, solidFrame(32, 32, 50, 128, 128, 24)); out == nil {
		t.Fatal("fresh frames did not compose during shutdown")
	}

	// Freshness is consumed: the next back frame needs a newer front again.
	if out := c.Compose(StreamBack, solidFrame(32, 32, 50, 128, 128, 26)); out != nil {
		t.Fatal("stale front buffer reused during shutdown")
	}
}

func TestCompositorStalePTSDropped(t *testing.T) {
	c := newTestCompositor(LayoutStack)
	defer c.Close()
	c.BeginRecording()

	c.Compose(StreamFront, solidFrame(32, 32, 200, 128, 128, 10))
	if out := c.Compose(StreamBack, solidFrame(32, 32, 50, 128, 128, 100)); out == nil {
		t.Fatal("no composite emitted")
	}

	// A composite must never be older than one already emitted.
	if out := c.Compose(StreamBack, solidFrame(32, 32, 50, 128, 128, 90)); out != nil {
		t.Fatal("stale composite emitted")
	}
	if s := c.Stats(); s.DroppedStale != 1 {
		t.Fatalf("DroppedStale = %d, want 1", s.DroppedStale)
	}
}

func TestCompositorNV12Input(t *testing.T) {
	c := newTestCompositor(LayoutStack)
	defer c.Close()
	c.BeginRecording()

	nv12 := func(y byte, pts int64) *VideoFrame {
		f := &VideoFrame{
			Data:   [][]byte{make([]byte, 16*16), make([]byte, 16*8)},
			Stride: []int{16, 16},
			Width:  16,
			Height: 16,
			Format: PixelFormatNV12,
			PTS:    pts,
		}
		for i := range f.Data[0] {
			f.Data[0][i] = y
		}
		for i := range f.Data[1] {
			f.Data[1][i] = 128
		}
		return f
	}

	c.Compose(StreamFront, nv12(200, 10))
	out := c.Compose(StreamBack, nv12(50, 12))
	if out == nil {
		t.Fatal("NV12 input did not compose")
	}
	if out.Format != PixelFormatI420 {
		t.Fatalf("composite format = %s, want I420", out.Format)
	}
	if got := out.Data[0][16*64+32]; got != 200 {
		t.Errorf("top-half Y = %d, want 200", got)
	}
}

func TestCompositorBeginRecordingClearsState(t *testing.T) {
	c := newTestCompositor(LayoutStack)
	defer c.Close()
	c.BeginRecording()

	c.Compose(StreamFront, solidFrame(32, 32, 200, 128, 128, 10))
	c.Compose(StreamBack, solidFrame(32, 32, 50, 128, 128, 100))
	c.Reset()

	// A new session starts with an empty cache, disarmed shutdown mode,
	// and fresh counters.
	c.BeginRecording()
	if s := c.Stats(); s != (CompositorStats{}) {
		t.Fatalf("stats after BeginRecording = %+v, want zero", s)
	}
	if out := c.Compose(StreamBack, solidFrame(32, 32, 50, 128, 128, 5)); out != nil {
		t.Fatal("composite produced from a previous session's cache")
	}
	if s := c.Stats(); s.DroppedNoSource != 1 {
		t.Fatalf("DroppedNoSource = %d, want 1", s.DroppedNoSource)
	}

	// PTS monotonicity also reset: the old session's timestamps are gone.
	c.Compose(StreamFront, solidFrame(32, 32, 200, 128, 128, 6))
	if out := c.Compose(StreamBack, solidFrame(32, 32, 50, 128, 128, 7)); out == nil {
		t.Fatal("new session rejected a composite below the old session's pts")
	}
}

func TestCompositorAccelerated(t *testing.T) {
	if !AccelAvailable() {
		t.Skip("acceleration library not available")
	}
	c := newTestCompositor(LayoutStack)
	defer c.Close()
	if !c.Accelerated() {
		t.Fatal("accelerator library loadable but backend not active")
	}
	c.BeginRecording()
	c.Compose(StreamFront, solidFrame(32, 32, 200, 128, 128, 10))
	out := c.Compose(StreamBack, solidFrame(32, 32, 50, 128, 128, 12))
	if out == nil {
		t.Fatal("accelerated path emitted no composite")
	}
	c.Flush()
}

func TestCompositorRejectsInvalidInput(t *testing.T) {
	c := newTestCompositor(LayoutStack)
	defer c.Close()
	c.BeginRecording()

	if out := c.Compose(StreamAudio, solidFrame(32, 32, 0, 128, 128, 1)); out != nil {
		t.Fatal("audio stream composed")
	}
	if out := c.Compose(StreamBack, nil); out != nil {
		t.Fatal("nil frame composed")
	}
}
