// ABOUTME: Tests for audio formats and buffers
// ABOUTME: Covers duration math and planar/interleaved conversion
package audio

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	format := Format{SampleRate: 48000, Channels: 2}

	tests := []struct {
		frames   int
		expected time.Duration
	}{
		{48000, time.Second},
		{24000, 500 * time.Millisecond},
		{480, 10 * time.Millisecond},
		{0, 0},
	}

	for _, tt := range tests {
		if got := format.Duration(tt.frames); got != tt.expected {
			t.Errorf("Duration(%d): expected %v, got %v", tt.frames, tt.expected, got)
		}
	}
}

func TestFormatFramesFor(t *testing.T) {
	format := Format{SampleRate: 48000, Channels: 2}

	if got := format.FramesFor(2 * time.Second); got != 96000 {
		t.Errorf("expected 96000 frames, got %d", got)
	}
	if got := format.FramesFor(10 * time.Millisecond); got != 480 {
		t.Errorf("expected 480 frames, got %d", got)
	}
}

func TestFormatBytesPerFrame(t *testing.T) {
	if got := (Format{SampleRate: 48000, Channels: 2}).BytesPerFrame(); got != 4 {
		t.Errorf("expected 4 bytes per stereo frame, got %d", got)
	}
	if got := (Format{SampleRate: 48000, Channels: 1}).BytesPerFrame(); got != 2 {
		t.Errorf("expected 2 bytes per mono frame, got %d", got)
	}
}

func TestBufferFrameCount(t *testing.T) {
	buf := Buffer{Channels: [][]float32{
		{0.1, 0.2, 0.3},
		{0.4, 0.5, 0.6},
	}}
	if got := buf.FrameCount(); got != 3 {
		t.Errorf("expected 3 frames, got %d", got)
	}

	empty := Buffer{}
	if got := empty.FrameCount(); got != 0 {
		t.Errorf("expected 0 frames for empty buffer, got %d", got)
	}
}

func TestBufferDuration(t *testing.T) {
	format := Format{SampleRate: 48000, Channels: 2}

	buf := Buffer{Channels: [][]float32{
		make([]float32, 48000),
		make([]float32, 48000),
	}}
	if got := buf.Duration(format); got != time.Second {
		t.Errorf("expected 1s, got %v", got)
	}
}

func TestBufferInterleaved(t *testing.T) {
	buf := Buffer{Channels: [][]float32{
		{0.1, 0.3},
		{0.2, 0.4},
	}}

	out := buf.Interleaved()
	expected := []float32{0.1, 0.2, 0.3, 0.4}
	if len(out) != len(expected) {
		t.Fatalf("expected %d samples, got %d", len(expected), len(out))
	}
	for i, v := range expected {
		if out[i] != v {
			t.Errorf("sample %d: expected %f, got %f", i, v, out[i])
		}
	}
}
