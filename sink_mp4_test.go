package dualcam

import (
	"errors"
	"testing"
)

// stubVideoEncoder satisfies VideoEncoder for construction-level tests.
// The MP4 container paths themselves need a real codec session to produce
// valid configuration records, so they are exercised by integration tooling
// rather than unit tests.
type stubVideoEncoder struct{}

func (stubVideoEncoder) Encode(*VideoFrame) (*EncodedFrame, error) { return nil, nil }
func (stubVideoEncoder) Drain() ([]*EncodedFrame, error)           { return nil, nil }
func (stubVideoEncoder) ExtraData() ([]byte, error)                { return nil, errors.New("no session") }
func (stubVideoEncoder) Codec() VideoCodec                         { return VideoCodecH264 }
func (stubVideoEncoder) Close() error                              { return nil }

type stubAudioEncoder struct{}

func (stubAudioEncoder) Encode(*AudioSamples) (*EncodedAudio, error) { return nil, nil }
func (stubAudioEncoder) Drain() ([]*EncodedAudio, error)             { return nil, nil }
func (stubAudioEncoder) ExtraData() ([]byte, error)                  { return nil, errors.New("no session") }
func (stubAudioEncoder) Codec() AudioCodec                           { return AudioCodecAAC }
func (stubAudioEncoder) Close() error                                { return nil }

func validSinkConfig(t *testing.T) SinkConfig {
	t.Helper()
	codec := DefaultCodecConfig()
	return SinkConfig{
		Target: TargetFront,
		Path:   t.TempDir() + "/out.mp4",
		Codec:  codec,
		Audio:  true,
	}
}

func TestNewMP4SinkValidation(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*SinkConfig)
		vid  VideoEncoder
		aud  AudioEncoder
	}{
		{
			name: "empty path",
			mut:  func(cfg *SinkConfig) { cfg.Path = "" },
			vid:  stubVideoEncoder{},
			aud:  stubAudioEncoder{},
		},
		{
			name: "missing output directory",
			mut:  func(cfg *SinkConfig) { cfg.Path = "/nonexistent-dir-for-test/out.mp4" },
			vid:  stubVideoEncoder{},
			aud:  stubAudioEncoder{},
		},
		{
			name: "unsupported video codec",
			mut:  func(cfg *SinkConfig) { cfg.Codec.Video = VideoCodecH265 },
			vid:  stubVideoEncoder{},
			aud:  stubAudioEncoder{},
		},
		{
			name: "unsupported audio codec",
			mut:  func(cfg *SinkConfig) { cfg.Codec.Audio = AudioCodecUnknown },
			vid:  stubVideoEncoder{},
			aud:  stubAudioEncoder{},
		},
		{
			name: "nil video encoder",
			mut:  func(cfg *SinkConfig) {},
			vid:  nil,
			aud:  stubAudioEncoder{},
		},
		{
			name: "nil audio encoder with audio enabled",
			mut:  func(cfg *SinkConfig) {},
			vid:  stubVideoEncoder{},
			aud:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validSinkConfig(t)
			tt.mut(&cfg)
			_, err := NewMP4Sink(cfg, tt.vid, tt.aud)
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("NewMP4Sink = %v, want ConfigurationError", err)
			}
		})
	}
}

func TestNewMP4SinkVideoOnly(t *testing.T) {
	cfg := validSinkConfig(t)
	cfg.Audio = false
	// Without an audio track a nil audio encoder is acceptable.
	sink, err := NewMP4Sink(cfg, stubVideoEncoder{}, nil)
	if err != nil {
		t.Fatalf("NewMP4Sink: %v", err)
	}
	if sink.State() != WriterIdle {
		t.Fatalf("state = %s, want idle", sink.State())
	}
	if sink.Path() != cfg.Path {
		t.Fatalf("Path = %q, want %q", sink.Path(), cfg.Path)
	}
}

func TestMP4SinkLifecycleGuards(t *testing.T) {
	sink, err := NewMP4Sink(validSinkConfig(t), stubVideoEncoder{}, stubAudioEncoder{})
	if err != nil {
		t.Fatalf("NewMP4Sink: %v", err)
	}

	// Appends and End need an open writing session.
	if err := sink.AppendVideo(NewI420Frame(32, 32, 0)); !errors.Is(err, ErrNotWriting) {
		t.Fatalf("AppendVideo before start = %v, want ErrNotWriting", err)
	}
	if err := sink.AppendAudio(&AudioSamples{}); !errors.Is(err, ErrNotWriting) {
		t.Fatalf("AppendAudio before start = %v, want ErrNotWriting", err)
	}
	if err := sink.End(0); !errors.Is(err, ErrNotWriting) {
		t.Fatalf("End before start = %v, want ErrNotWriting", err)
	}
	if err := sink.Finalize(); err == nil {
		t.Fatal("Finalize before start succeeded")
	}
}

func TestMP4SinkStartRequiresExtraData(t *testing.T) {
	sink, err := NewMP4Sink(validSinkConfig(t), stubVideoEncoder{}, stubAudioEncoder{})
	if err != nil {
		t.Fatalf("NewMP4Sink: %v", err)
	}
	// The stub session produces no configuration record, so the container
	// header cannot be written and no file may be created.
	if err := sink.Start(0); err == nil {
		t.Fatal("Start succeeded without encoder extradata")
	}
	if sink.State() != WriterIdle {
		t.Fatalf("state after failed start = %s, want idle", sink.State())
	}
}

func TestMP4SinkCancelIdempotent(t *testing.T) {
	sink, err := NewMP4Sink(validSinkConfig(t), stubVideoEncoder{}, stubAudioEncoder{})
	if err != nil {
		t.Fatalf("NewMP4Sink: %v", err)
	}
	if err := sink.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if sink.State() != WriterCancelled {
		t.Fatalf("state = %s, want cancelled", sink.State())
	}
	if err := sink.Cancel(); err != nil {
		t.Fatalf("second Cancel: %v", err)
	}
}

func TestNewMP4SinkFactory(t *testing.T) {
	videoCalls := 0
	factory := NewMP4SinkFactory(
		func(cfg VideoEncoderConfig) (VideoEncoder, error) {
			videoCalls++
			if cfg.Width != 1080 || cfg.Height != 1920 {
				t.Errorf("encoder config = %dx%d, want 1080x1920", cfg.Width, cfg.Height)
			}
			return stubVideoEncoder{}, nil
		},
		func(cfg AudioEncoderConfig) (AudioEncoder, error) {
			if cfg.SampleRate != 48000 || cfg.Channels != 2 {
				t.Errorf("audio config = %d/%d, want 48000/2", cfg.SampleRate, cfg.Channels)
			}
			return stubAudioEncoder{}, nil
		},
	)

	cfg := validSinkConfig(t)
	sink, err := factory(cfg)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if sink.Path() != cfg.Path {
		t.Fatalf("Path = %q, want %q", sink.Path(), cfg.Path)
	}
	if videoCalls != 1 {
		t.Fatalf("video encoder sessions = %d, want 1", videoCalls)
	}
}
