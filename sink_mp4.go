package dualcam

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/deepch/vdk/av"
	"github.com/deepch/vdk/codec/aacparser"
	"github.com/deepch/vdk/codec/h264parser"
	"github.com/deepch/vdk/format/mp4"
)

// MP4Sink writes one output of a recording to an MP4 container. Raw frames
// are compressed by the injected encoder sessions and muxed with the shared
// audio track. All three sinks of a recording anchor their packet timestamps
// at the same first PTS, giving the files a shared start reference.
//
// MP4Sink is not safe for concurrent use; the coordinator is its only caller.
type MP4Sink struct {
	cfg   SinkConfig
	video VideoEncoder
	audio AudioEncoder

	file  *os.File
	muxer *mp4.Muxer

	state    WriterState
	startPTS int64
	endPTS   int64
	ended    bool

	// Recent packets are held back in a bounded tail buffer so End can trim
	// samples past the synchronization cutoff before they reach the
	// container (the mp4 muxer cannot unwrite). The window only needs to
	// cover how far the streams can diverge at stop.
	tail []av.Packet
}

// tailWindow bounds how long packets are held before being committed to the
// container.
const tailWindow = time.Second

// NewMP4Sink creates an MP4 sink for one output. The destination directory
// must exist and be writable; the file itself is created at Start.
func NewMP4Sink(cfg SinkConfig, video VideoEncoder, audio AudioEncoder) (*MP4Sink, error) {
	if cfg.Path == "" {
		return nil, &ConfigurationError{Field: "path", Reason: "empty output path"}
	}
	dir := filepath.Dir(cfg.Path)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, &ConfigurationError{
			Field:  "path",
			Reason: fmt.Sprintf("output directory %q does not exist", dir),
		}
	}
	if cfg.Codec.Video != VideoCodecH264 {
		return nil, &ConfigurationError{
			Field:  "codec",
			Reason: fmt.Sprintf("mp4 sink supports H264 only, got %s", cfg.Codec.Video),
		}
	}
	if cfg.Audio && cfg.Codec.Audio != AudioCodecAAC {
		return nil, &ConfigurationError{
			Field:  "codec",
			Reason: fmt.Sprintf("mp4 sink supports AAC audio only, got %s", cfg.Codec.Audio),
		}
	}
	if video == nil {
		return nil, &ConfigurationError{Field: "encoder", Reason: "nil video encoder"}
	}
	if cfg.Audio && audio == nil {
		return nil, &ConfigurationError{Field: "encoder", Reason: "nil audio encoder"}
	}

	return &MP4Sink{
		cfg:   cfg,
		video: video,
		audio: audio,
		state: WriterIdle,
	}, nil
}

// Start opens the output file and writes the container header.
func (s *MP4Sink) Start(firstPTS int64) error {
	if s.state != WriterIdle {
		return fmt.Errorf("start in state %s", s.state)
	}

	streams, err := s.codecData()
	if err != nil {
		return err
	}

	file, err := os.Create(s.cfg.Path)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.cfg.Path, err)
	}

	muxer := mp4.NewMuxer(file)
	if err := muxer.WriteHeader(streams); err != nil {
		file.Close()
		os.Remove(s.cfg.Path)
		return fmt.Errorf("write header: %w", err)
	}

	s.file = file
	s.muxer = muxer
	s.startPTS = firstPTS
	s.state = WriterWriting
	return nil
}

func (s *MP4Sink) codecData() ([]av.CodecData, error) {
	extra, err := s.video.ExtraData()
	if err != nil {
		return nil, fmt.Errorf("video extradata: %w", err)
	}
	videoData, err := h264parser.NewCodecDataFromAVCDecoderConfRecord(extra)
	if err != nil {
		return nil, fmt.Errorf("parse avcC record: %w", err)
	}

	streams := []av.CodecData{videoData}
	if s.cfg.Audio {
		asc, err := s.audio.ExtraData()
		if err != nil {
			return nil, fmt.Errorf("audio extradata: %w", err)
		}
		audioData, err := aacparser.NewCodecDataFromMPEG4AudioConfigBytes(asc)
		if err != nil {
			return nil, fmt.Errorf("parse audio config: %w", err)
		}
		streams = append(streams, audioData)
	}
	return streams, nil
}

// AppendVideo encodes one raw frame and writes the resulting packet.
func (s *MP4Sink) AppendVideo(frame *VideoFrame) error {
	if s.state != WriterWriting {
		return ErrNotWriting
	}

	encoded, err := s.video.Encode(frame)
	if err != nil {
		s.state = WriterFailed
		return fmt.Errorf("encode video: %w", err)
	}
	if encoded == nil {
		return nil // Encoder buffering
	}
	return s.writeVideoPacket(encoded)
}

// AppendAudio encodes one raw audio buffer and writes the resulting packet.
func (s *MP4Sink) AppendAudio(samples *AudioSamples) error {
	if s.state != WriterWriting {
		return ErrNotWriting
	}
	if !s.cfg.Audio {
		return nil
	}

	encoded, err := s.audio.Encode(samples)
	if err != nil {
		s.state = WriterFailed
		return fmt.Errorf("encode audio: %w", err)
	}
	if encoded == nil {
		return nil
	}
	return s.writeAudioPacket(encoded)
}

func (s *MP4Sink) writeVideoPacket(f *EncodedFrame) error {
	if s.ended && f.PTS > s.endPTS {
		return nil // Past the synchronization cutoff
	}

	dts := f.DTS
	if dts == 0 {
		dts = f.PTS
	}
	return s.submit(av.Packet{
		Idx:             0,
		IsKeyFrame:      f.IsKeyframe(),
		Time:            time.Duration(dts - s.startPTS),
		CompositionTime: time.Duration(f.PTS - dts),
		Data:            f.Data,
	})
}

func (s *MP4Sink) writeAudioPacket(a *EncodedAudio) error {
	if s.ended && a.PTS > s.endPTS {
		return nil
	}

	return s.submit(av.Packet{
		Idx:  1,
		Time: time.Duration(a.PTS - s.startPTS),
		Data: a.Data,
	})
}

// submit appends a packet to the tail buffer and commits any packet that
// has aged out of the trim window.
func (s *MP4Sink) submit(pkt av.Packet) error {
	// Packet data is owned by the encoder until its next Encode call, so
	// buffered packets keep their own copy.
	data := make([]byte, len(pkt.Data))
	copy(data, pkt.Data)
	pkt.Data = data

	s.tail = append(s.tail, pkt)

	newest := pkt.Time + pkt.CompositionTime
	n := 0
	for _, p := range s.tail {
		if newest-(p.Time+p.CompositionTime) <= tailWindow {
			break
		}
		if err := s.writePacket(p); err != nil {
			return err
		}
		n++
	}
	if n > 0 {
		s.tail = append(s.tail[:0], s.tail[n:]...)
	}
	return nil
}

func (s *MP4Sink) writePacket(pkt av.Packet) error {
	if err := s.muxer.WritePacket(pkt); err != nil {
		s.state = WriterFailed
		return fmt.Errorf("write packet: %w", err)
	}
	return nil
}

// flushTail commits buffered packets up to the cutoff and discards the rest.
func (s *MP4Sink) flushTail() error {
	cutoff := time.Duration(s.endPTS - s.startPTS)
	for _, p := range s.tail {
		if s.ended && p.Time+p.CompositionTime > cutoff {
			continue
		}
		if err := s.writePacket(p); err != nil {
			return err
		}
	}
	s.tail = nil
	return nil
}

// End marks the synchronization cutoff, drains the encoder sessions, and
// writes any flushed packets that fall before the cutoff. Later samples are
// discarded.
func (s *MP4Sink) End(pts int64) error {
	if s.state != WriterWriting {
		return ErrNotWriting
	}

	s.endPTS = pts
	s.ended = true

	frames, err := s.video.Drain()
	if err != nil {
		s.state = WriterFailed
		return fmt.Errorf("drain video encoder: %w", err)
	}
	for _, f := range frames {
		if err := s.writeVideoPacket(f); err != nil {
			return err
		}
	}

	if s.cfg.Audio {
		units, err := s.audio.Drain()
		if err != nil {
			s.state = WriterFailed
			return fmt.Errorf("drain audio encoder: %w", err)
		}
		for _, a := range units {
			if err := s.writeAudioPacket(a); err != nil {
				return err
			}
		}
	}

	if err := s.flushTail(); err != nil {
		return err
	}

	s.state = WriterEnded
	return nil
}

// Finalize writes the container trailer and closes the file.
func (s *MP4Sink) Finalize() error {
	if s.state != WriterEnded && s.state != WriterWriting {
		return fmt.Errorf("finalize in state %s", s.state)
	}

	if err := s.flushTail(); err != nil {
		return err
	}

	err := s.muxer.WriteTrailer()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	s.closeEncoders()

	if err != nil {
		s.state = WriterFailed
		return fmt.Errorf("finalize %s: %w", s.cfg.Path, err)
	}

	// The capture orientation goes into the track header so players show
	// the streams upright without touching the pixels.
	if s.cfg.Codec.Orientation != Orientation0 {
		if err := writeDisplayMatrix(s.cfg.Path, s.cfg.Codec.Orientation, s.cfg.Codec.Width, s.cfg.Codec.Height); err != nil {
			s.state = WriterFailed
			return fmt.Errorf("write display matrix: %w", err)
		}
	}

	s.state = WriterFinished
	return nil
}

// Cancel aborts the sink and removes any partial output file. A no-op once
// the container has been finalized.
func (s *MP4Sink) Cancel() error {
	if s.state == WriterFinished || s.state == WriterCancelled {
		return nil
	}
	if s.file != nil {
		s.file.Close()
		os.Remove(s.cfg.Path)
		s.file = nil
	}
	s.closeEncoders()
	s.state = WriterCancelled
	return nil
}

func (s *MP4Sink) closeEncoders() {
	if s.video != nil {
		s.video.Close()
	}
	if s.audio != nil {
		s.audio.Close()
	}
}

// State returns the writer state.
func (s *MP4Sink) State() WriterState { return s.state }

// Path returns the destination file path.
func (s *MP4Sink) Path() string { return s.cfg.Path }

// NewMP4SinkFactory returns a SinkFactory that builds MP4 sinks, creating
// one encoder session per output from the supplied factories.
func NewMP4SinkFactory(newVideo VideoEncoderFactory, newAudio AudioEncoderFactory) SinkFactory {
	return func(cfg SinkConfig) (Sink, error) {
		video, err := newVideo(VideoEncoderConfig{
			Codec:      cfg.Codec.Video,
			Width:      cfg.Codec.Width,
			Height:     cfg.Codec.Height,
			FPS:        cfg.Codec.FrameRate,
			BitrateBps: cfg.Codec.BitrateBps,
		})
		if err != nil {
			return nil, fmt.Errorf("video encoder for %s: %w", cfg.Target, err)
		}

		var audio AudioEncoder
		if cfg.Audio {
			audio, err = newAudio(AudioEncoderConfig{
				Codec:      cfg.Codec.Audio,
				SampleRate: cfg.Codec.AudioSampleRate,
				Channels:   cfg.Codec.AudioChannels,
				BitrateBps: 128_000,
			})
			if err != nil {
				video.Close()
				return nil, fmt.Errorf("audio encoder for %s: %w", cfg.Target, err)
			}
		}

		sink, err := NewMP4Sink(cfg, video, audio)
		if err != nil {
			video.Close()
			if audio != nil {
				audio.Close()
			}
			return nil, err
		}
		return sink, nil
	}
}
