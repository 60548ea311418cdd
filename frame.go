// Core frame and sample types used across the dualcam package.
package dualcam

// StreamID identifies one of the three hardware capture streams.
type StreamID int

const (
	StreamFront StreamID = iota // Front-facing camera video
	StreamBack                  // Back-facing camera video
	StreamAudio                 // Shared microphone audio
)

func (s StreamID) String() string {
	switch s {
	case StreamFront:
		return "front"
	case StreamBack:
		return "back"
	case StreamAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// IsVideo reports whether the stream carries video frames.
func (s StreamID) IsVideo() bool {
	return s == StreamFront || s == StreamBack
}

// PixelFormat represents video pixel formats delivered by capture hardware.
type PixelFormat int

const (
	PixelFormatI420 PixelFormat = iota // YUV 4:2:0 planar (Y + U + V)
	PixelFormatNV12                    // YUV 4:2:0 semi-planar (Y + interleaved UV)
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatI420:
		return "I420"
	case PixelFormatNV12:
		return "NV12"
	default:
		return "Unknown"
	}
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatI420:
		return 3 // Y, U, V
	case PixelFormatNV12:
		return 2 // Y, UV
	default:
		return 0
	}
}

// VideoFrame represents a raw video frame as delivered by a camera callback.
// The Data slices may point to memory owned by the capture stack. Ownership
// transfers to the pipeline on arrival; components that retain a frame past
// the callback (the compositor cache) must Clone it first.
type VideoFrame struct {
	Data     [][]byte    // Plane data (2-3 planes depending on format)
	Stride   []int       // Stride for each plane in bytes
	Width    int         // Frame width in pixels
	Height   int         // Frame height in pixels
	Format   PixelFormat // Pixel format
	PTS      int64       // Presentation timestamp in nanoseconds
	Duration int64       // Frame duration in nanoseconds (optional)
}

// Clone creates a deep copy of the video frame.
// Use this when a frame must outlive the hardware callback that produced it.
func (f *VideoFrame) Clone() *VideoFrame {
	clone := &VideoFrame{
		Data:     make([][]byte, len(f.Data)),
		Stride:   make([]int, len(f.Stride)),
		Width:    f.Width,
		Height:   f.Height,
		Format:   f.Format,
		PTS:      f.PTS,
		Duration: f.Duration,
	}
	copy(clone.Stride, f.Stride)
	for i, plane := range f.Data {
		if plane != nil {
			clone.Data[i] = make([]byte, len(plane))
			copy(clone.Data[i], plane)
		}
	}
	return clone
}

// I420Size returns the total buffer size needed for an I420 frame.
func I420Size(width, height int) int {
	ySize := width * height
	uvSize := (width / 2) * (height / 2)
	return ySize + uvSize*2
}

// NewI420Frame allocates a zeroed I420 frame with tightly packed planes.
func NewI420Frame(width, height int, pts int64) *VideoFrame {
	ySize := width * height
	uvSize := (width / 2) * (height / 2)
	return &VideoFrame{
		Data: [][]byte{
			make([]byte, ySize),
			make([]byte, uvSize),
			make([]byte, uvSize),
		},
		Stride: []int{width, width / 2, width / 2},
		Width:  width,
		Height: height,
		Format: PixelFormatI420,
		PTS:    pts,
	}
}

// NV12ToI420 converts a semi-planar NV12 frame to planar I420.
// Camera pipelines commonly deliver NV12; the compositor works in I420.
func NV12ToI420(f *VideoFrame) *VideoFrame {
	if f.Format != PixelFormatNV12 {
		return f
	}

	out := NewI420Frame(f.Width, f.Height, f.PTS)
	out.Duration = f.Duration

	// Copy Y row by row to drop any stride padding.
	for y := 0; y < f.Height; y++ {
		copy(out.Data[0][y*f.Width:(y+1)*f.Width], f.Data[0][y*f.Stride[0]:])
	}

	// De-interleave UV.
	uvH := f.Height / 2
	uvW := f.Width / 2
	for y := 0; y < uvH; y++ {
		srcRow := f.Data[1][y*f.Stride[1]:]
		for x := 0; x < uvW; x++ {
			out.Data[1][y*uvW+x] = srcRow[x*2]
			out.Data[2][y*uvW+x] = srcRow[x*2+1]
		}
	}

	return out
}

// AudioFormat represents audio sample formats.
type AudioFormat int

const (
	AudioFormatS16 AudioFormat = iota // Signed 16-bit PCM
	AudioFormatF32                    // 32-bit float
)

func (a AudioFormat) String() string {
	switch a {
	case AudioFormatS16:
		return "S16"
	case AudioFormatF32:
		return "F32"
	default:
		return "Unknown"
	}
}

// BytesPerSample returns the number of bytes per sample for this format.
func (a AudioFormat) BytesPerSample() int {
	switch a {
	case AudioFormatS16:
		return 2
	case AudioFormatF32:
		return 4
	default:
		return 0
	}
}

// AudioSamples represents a raw audio buffer from the microphone callback.
type AudioSamples struct {
	Data        []byte      // Sample data
	SampleRate  int         // Sample rate (e.g., 48000)
	Channels    int         // Number of channels (1 = mono, 2 = stereo)
	SampleCount int         // Number of samples (per channel)
	Format      AudioFormat // Sample format
	PTS         int64       // Presentation timestamp in nanoseconds
}

// Clone creates a deep copy of the audio samples.
func (s *AudioSamples) Clone() *AudioSamples {
	clone := &AudioSamples{
		SampleRate:  s.SampleRate,
		Channels:    s.Channels,
		SampleCount: s.SampleCount,
		Format:      s.Format,
		PTS:         s.PTS,
	}
	if s.Data != nil {
		clone.Data = make([]byte, len(s.Data))
		copy(clone.Data, s.Data)
	}
	return clone
}

// FrameType indicates whether an encoded frame is a keyframe or delta frame.
type FrameType int

const (
	FrameTypeUnknown FrameType = iota
	FrameTypeKey               // I-frame, can be decoded independently
	FrameTypeDelta             // P/B-frame, requires previous frames
)

func (f FrameType) String() string {
	switch f {
	case FrameTypeKey:
		return "Key"
	case FrameTypeDelta:
		return "Delta"
	default:
		return "Unknown"
	}
}

// EncodedFrame holds compressed video data produced by an encoder session.
// The Data slice is owned by the encoder and valid until the next Encode call.
type EncodedFrame struct {
	Data      []byte    // Encoded bitstream (AVCC length-prefixed for H.264)
	FrameType FrameType // Key or delta frame
	PTS       int64     // Presentation timestamp in nanoseconds
	DTS       int64     // Decode timestamp in nanoseconds (equals PTS without B-frames)
}

// IsKeyframe returns true if this is a keyframe.
func (f *EncodedFrame) IsKeyframe() bool {
	return f.FrameType == FrameTypeKey
}

// EncodedAudio holds compressed audio data (e.g. one AAC access unit).
type EncodedAudio struct {
	Data []byte // Encoded data
	PTS  int64  // Presentation timestamp in nanoseconds
}
