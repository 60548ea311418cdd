package dualcam

import (
	"bytes"
	"testing"
)

func TestI420Size(t *testing.T) {
	tests := []struct {
		width, height, want int
	}{
		{2, 2, 6},
		{4, 4, 24},
		{1920, 1080, 3110400},
		{1080, 1920, 3110400},
	}
	for _, tt := range tests {
		if got := I420Size(tt.width, tt.height); got != tt.want {
			t.Errorf("I420Size(%d, %d) = %d, want %d", tt.width, tt.height, got, tt.want)
		}
	}
}

func TestNewI420Frame(t *testing.T) {
	f := NewI420Frame(64, 48, 12345)
	if f.Format != PixelFormatI420 {
		t.Fatalf("format = %s, want I420", f.Format)
	}
	if f.PTS != 12345 {
		t.Fatalf("pts = %d, want 12345", f.PTS)
	}
	if len(f.Data) != 3 {
		t.Fatalf("planes = %d, want 3", len(f.Data))
	}
	if len(f.Data[0]) != 64*48 {
		t.Fatalf("Y plane size = %d, want %d", len(f.Data[0]), 64*48)
	}
	if len(f.Data[1]) != 32*24 || len(f.Data[2]) != 32*24 {
		t.Fatalf("chroma plane sizes = %d/%d, want %d", len(f.Data[1]), len(f.Data[2]), 32*24)
	}
	if f.Stride[0] != 64 || f.Stride[1] != 32 || f.Stride[2] != 32 {
		t.Fatalf("strides = %v, want [64 32 32]", f.Stride)
	}
}

func TestVideoFrameClone(t *testing.T) {
	orig := NewI420Frame(16, 16, 777)
	orig.Duration = 33
	orig.Data[0][0] = 42

	clone := orig.Clone()
	if clone.PTS != 777 || clone.Duration != 33 || clone.Width != 16 || clone.Height != 16 {
		t.Fatal("clone lost frame metadata")
	}
	if clone.Data[0][0] != 42 {
		t.Fatal("clone lost plane data")
	}

	// The clone must be independent of the callback-owned buffer.
	orig.Data[0][0] = 99
	orig.Stride[0] = 1
	if clone.Data[0][0] != 42 {
		t.Fatal("mutating the original changed the clone's data")
	}
	if clone.Stride[0] != 16 {
		t.Fatal("mutating the original changed the clone's stride")
	}
}

func TestNV12ToI420(t *testing.T) {
	// A 4x2 NV12 frame with stride padding on both planes.
	const w, h = 4, 2
	yStride, uvStride := 6, 6
	f := &VideoFrame{
		Data: [][]byte{
			{
				1, 2, 3, 4, 0xAA, 0xAA,
				5, 6, 7, 8, 0xAA, 0xAA,
			},
			{
				10, 20, 11, 21, 0xAA, 0xAA,
			},
		},
		Stride: []int{yStride, uvStride},
		Width:  w,
		Height: h,
		Format: PixelFormatNV12,
		PTS:    555,
	}

	out := NV12ToI420(f)
	if out.Format != PixelFormatI420 {
		t.Fatalf("format = %s, want I420", out.Format)
	}
	if out.PTS != 555 {
		t.Fatalf("pts = %d, want 555", out.PTS)
	}
	if !bytes.Equal(out.Data[0], []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Fatalf("Y plane = %v", out.Data[0])
	}
	if !bytes.Equal(out.Data[1], []byte{10, 11}) {
		t.Fatalf("U plane = %v", out.Data[1])
	}
	if !bytes.Equal(out.Data[2], []byte{20, 21}) {
		t.Fatalf("V plane = %v", out.Data[2])
	}

	// Already-planar input passes through untouched.
	i420 := NewI420Frame(4, 2, 1)
	if got := NV12ToI420(i420); got != i420 {
		t.Fatal("I420 input was not passed through")
	}
}

func TestAudioSamplesClone(t *testing.T) {
	orig := &AudioSamples{
		Data:        []byte{1, 2, 3, 4},
		SampleRate:  48000,
		Channels:    2,
		SampleCount: 1,
		Format:      AudioFormatS16,
		PTS:         99,
	}
	clone := orig.Clone()
	orig.Data[0] = 200
	if clone.Data[0] != 1 {
		t.Fatal("mutating the original changed the clone")
	}
	if clone.SampleRate != 48000 || clone.Channels != 2 || clone.PTS != 99 {
		t.Fatal("clone lost metadata")
	}
}

func TestStreamID(t *testing.T) {
	if !StreamFront.IsVideo() || !StreamBack.IsVideo() {
		t.Error("camera streams must report IsVideo")
	}
	if StreamAudio.IsVideo() {
		t.Error("audio stream reported IsVideo")
	}
	if StreamFront.String() != "front" || StreamBack.String() != "back" || StreamAudio.String() != "audio" {
		t.Error("unexpected StreamID names")
	}
}

func TestPixelFormatPlaneCount(t *testing.T) {
	if got := PixelFormatI420.PlaneCount(); got != 3 {
		t.Errorf("I420 planes = %d, want 3", got)
	}
	if got := PixelFormatNV12.PlaneCount(); got != 2 {
		t.Errorf("NV12 planes = %d, want 2", got)
	}
}
