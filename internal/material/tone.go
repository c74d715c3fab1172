// ABOUTME: Generated sine test tone used when no material file is given
// ABOUTME: Duplicates one waveform across all channels of the stream format
package material

import (
	"encoding/binary"
	"math"

	"github.com/weavesong/weavesong-go/internal/audio"
)

// toneSource generates a sine test tone duplicated across channels.
type toneSource struct {
	format      audio.Format
	frequency   float64
	sampleIndex uint64
}

func newToneSource(format audio.Format) *toneSource {
	return &toneSource{format: format, frequency: 440.0}
}

func (s *toneSource) ReadPCM(p []byte) (int, error) {
	frames := len(p) / s.format.BytesPerFrame()
	for i := 0; i < frames; i++ {
		t := float64(s.sampleIndex+uint64(i)) / float64(s.format.SampleRate)
		sample := math.Sin(2 * math.Pi * s.frequency * t)
		pcm := int16(sample * 32767.0 * 0.5)
		for ch := 0; ch < s.format.Channels; ch++ {
			off := (i*s.format.Channels + ch) * 2
			binary.LittleEndian.PutUint16(p[off:], uint16(pcm))
		}
	}
	s.sampleIndex += uint64(frames)
	return frames * s.format.BytesPerFrame(), nil
}

func (s *toneSource) Rewind() error {
	s.sampleIndex = 0
	return nil
}

func (s *toneSource) Close() error {
	return nil
}
