// ABOUTME: Audio type definitions
// ABOUTME: Defines stream formats and decoded planar buffers
package audio

import "time"

// Format describes a PCM stream format
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerFrame returns the wire size of one interleaved s16le frame
func (f Format) BytesPerFrame() int {
	return 2 * f.Channels
}

// Duration returns the play time of the given number of frames
func (f Format) Duration(frames int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// FramesFor returns how many frames cover the given duration
func (f Format) FramesFor(d time.Duration) int {
	return int(d * time.Duration(f.SampleRate) / time.Second)
}

// Buffer represents decoded audio as one float32 slice per channel
type Buffer struct {
	Channels [][]float32
}

// FrameCount returns the number of frames in the buffer
func (b Buffer) FrameCount() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the play time of the buffer in the given format
func (b Buffer) Duration(f Format) time.Duration {
	return f.Duration(b.FrameCount())
}

// Interleaved flattens the buffer back to frame-interleaved samples
func (b Buffer) Interleaved() []float32 {
	frames := b.FrameCount()
	channels := len(b.Channels)
	out := make([]float32, frames*channels)
	for ch, data := range b.Channels {
		for i := 0; i < frames; i++ {
			out[i*channels+ch] = data[i]
		}
	}
	return out
}
