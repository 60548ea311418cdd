package dualcam

// VideoCodec identifies the video codec used by an encoder session.
type VideoCodec int

const (
	VideoCodecUnknown VideoCodec = iota
	VideoCodecH264
	VideoCodecH265
)

func (c VideoCodec) String() string {
	switch c {
	case VideoCodecH264:
		return "H264"
	case VideoCodecH265:
		return "H265"
	default:
		return "Unknown"
	}
}

// MimeType returns the MIME type for this codec.
func (c VideoCodec) MimeType() string {
	switch c {
	case VideoCodecH264:
		return "video/H264"
	case VideoCodecH265:
		return "video/H265"
	default:
		return ""
	}
}

// AudioCodec identifies the audio codec used by an encoder session.
type AudioCodec int

const (
	AudioCodecUnknown AudioCodec = iota
	AudioCodecAAC
)

func (c AudioCodec) String() string {
	switch c {
	case AudioCodecAAC:
		return "AAC"
	default:
		return "Unknown"
	}
}

// MimeType returns the MIME type for this codec.
func (c AudioCodec) MimeType() string {
	switch c {
	case AudioCodecAAC:
		return "audio/aac"
	default:
		return ""
	}
}

// Orientation is the rotation applied by the capture hardware, recorded
// into each output container so players display the streams upright.
type Orientation int

const (
	Orientation0   Orientation = 0
	Orientation90  Orientation = 90
	Orientation180 Orientation = 180
	Orientation270 Orientation = 270
)

func (o Orientation) String() string {
	switch o {
	case Orientation0:
		return "0"
	case Orientation90:
		return "90"
	case Orientation180:
		return "180"
	case Orientation270:
		return "270"
	default:
		return "invalid"
	}
}

// Valid reports whether the orientation is one of the four supported rotations.
func (o Orientation) Valid() bool {
	switch o {
	case Orientation0, Orientation90, Orientation180, Orientation270:
		return true
	default:
		return false
	}
}

// CodecConfig carries the shared encoding parameters for all three outputs.
// It is supplied once at configure time by the capture/session collaborator.
type CodecConfig struct {
	Width       int         // Output width in pixels
	Height      int         // Output height in pixels
	BitrateBps  int         // Target video bitrate in bits per second
	FrameRate   int         // Nominal capture frame rate
	Orientation Orientation // Display rotation recorded into the containers

	Video VideoCodec // Video codec (default H.264)
	Audio AudioCodec // Audio codec (default AAC)

	AudioSampleRate int // Audio sample rate (default 48000)
	AudioChannels   int // Audio channel count (default 2)
}

// DefaultCodecConfig returns the parameters used when a field is left zero.
func DefaultCodecConfig() CodecConfig {
	return CodecConfig{
		Width:           1080,
		Height:          1920,
		BitrateBps:      6_000_000,
		FrameRate:       30,
		Orientation:     Orientation0,
		Video:           VideoCodecH264,
		Audio:           AudioCodecAAC,
		AudioSampleRate: 48000,
		AudioChannels:   2,
	}
}

func (c *CodecConfig) normalize() {
	def := DefaultCodecConfig()
	if c.Width <= 0 {
		c.Width = def.Width
	}
	if c.Height <= 0 {
		c.Height = def.Height
	}
	// Even dimensions are required for 4:2:0 subsampling.
	c.Width = (c.Width + 1) &^ 1
	c.Height = (c.Height + 1) &^ 1
	if c.BitrateBps <= 0 {
		c.BitrateBps = def.BitrateBps
	}
	if c.FrameRate <= 0 {
		c.FrameRate = def.FrameRate
	}
	if c.Video == VideoCodecUnknown {
		c.Video = def.Video
	}
	if c.Audio == AudioCodecUnknown {
		c.Audio = def.Audio
	}
	if c.AudioSampleRate <= 0 {
		c.AudioSampleRate = def.AudioSampleRate
	}
	if c.AudioChannels <= 0 {
		c.AudioChannels = def.AudioChannels
	}
}
