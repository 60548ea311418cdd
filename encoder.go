package dualcam

import "io"

// Encoder session interfaces. The concrete implementations wrap whatever the
// platform provides (a hardware encode session on device, a software codec in
// tooling); the pipeline only depends on these contracts.

// VideoEncoderConfig configures one video encoder session.
type VideoEncoderConfig struct {
	Codec      VideoCodec // Codec type (default H.264)
	Width      int        // Frame width
	Height     int        // Frame height
	FPS        int        // Target framerate
	BitrateBps int        // Target bitrate in bits per second
}

// AudioEncoderConfig configures one audio encoder session.
type AudioEncoderConfig struct {
	Codec      AudioCodec // Codec type (default AAC)
	SampleRate int        // Sample rate (e.g., 48000)
	Channels   int        // Number of channels
	BitrateBps int        // Target bitrate in bits per second
}

// VideoEncoder compresses raw video frames.
type VideoEncoder interface {
	io.Closer

	// Encode submits one frame. Returns nil when the encoder is buffering
	// and no output is ready yet. The returned data is valid until the next
	// Encode or Drain call.
	Encode(frame *VideoFrame) (*EncodedFrame, error)

	// Drain flushes any buffered frames at end of session.
	Drain() ([]*EncodedFrame, error)

	// ExtraData returns the codec configuration record required by the
	// container (an avcC record for H.264).
	ExtraData() ([]byte, error)

	// Codec returns the codec type.
	Codec() VideoCodec
}

// AudioEncoder compresses raw audio samples.
type AudioEncoder interface {
	io.Closer

	// Encode submits one buffer of samples. Returns nil while the encoder
	// accumulates a full access unit.
	Encode(samples *AudioSamples) (*EncodedAudio, error)

	// Drain flushes any buffered audio at end of session.
	Drain() ([]*EncodedAudio, error)

	// ExtraData returns the codec configuration required by the container
	// (an AudioSpecificConfig for AAC).
	ExtraData() ([]byte, error)

	// Codec returns the codec type.
	Codec() AudioCodec
}

// VideoEncoderFactory creates a video encoder session, typically binding a
// hardware encoder.
type VideoEncoderFactory func(VideoEncoderConfig) (VideoEncoder, error)

// AudioEncoderFactory creates an audio encoder session.
type AudioEncoderFactory func(AudioEncoderConfig) (AudioEncoder, error)
