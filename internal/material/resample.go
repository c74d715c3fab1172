// ABOUTME: Linear interpolation resampler for matching material to the stream rate
// ABOUTME: Carries a one-frame seam across blocks so chunks join without clicks
package material

import (
	"math"

	"github.com/weavesong/weavesong-go/internal/audio"
)

// Resampler converts interleaved s16 audio between sample rates using
// linear interpolation. Interpolation state carries across calls so
// consecutive blocks join without a seam.
type Resampler struct {
	channels int
	step     float64 // input frames consumed per output frame
	pos      float64 // fractional read position, -1 addresses the carried frame
	prev     []int16
	primed   bool
}

// NewResampler creates a resampler from inputRate to outputRate.
func NewResampler(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		channels: channels,
		step:     float64(inputRate) / float64(outputRate),
		prev:     make([]int16, channels),
	}
}

// Resample interpolates input into output and returns the number of
// values written. It stops early once the input block is exhausted; the
// next call continues from the same stream position.
func (r *Resampler) Resample(input, output []int16) int {
	inFrames := len(input) / r.channels
	outFrames := len(output) / r.channels
	if inFrames == 0 {
		return 0
	}
	if !r.primed {
		copy(r.prev, input[:r.channels])
		r.primed = true
	}

	out := 0
	for out < outFrames {
		idx := int(math.Floor(r.pos))
		if idx > inFrames-2 {
			break
		}
		frac := r.pos - float64(idx)
		for ch := 0; ch < r.channels; ch++ {
			s1 := r.prev[ch]
			if idx >= 0 {
				s1 = input[idx*r.channels+ch]
			}
			s2 := input[(idx+1)*r.channels+ch]
			v := float64(s1)*(1-frac) + float64(s2)*frac
			output[out*r.channels+ch] = int16(v)
		}
		out++
		r.pos += r.step
	}

	r.pos -= float64(inFrames)
	// pos addresses at most one frame of history.
	if r.pos < -1 {
		r.pos = -1
	}
	copy(r.prev, input[(inFrames-1)*r.channels:])
	return out * r.channels
}

// InputFramesNeeded returns the block size to feed the next Resample
// call for outFrames output frames. The block ends at the last frame
// those outputs can touch, so a call may come up a frame short and
// finish on the following block.
func (r *Resampler) InputFramesNeeded(outFrames int) int {
	n := int(math.Floor(r.pos+float64(outFrames)*r.step)) + 1
	if n < 2 {
		n = 2
	}
	return n
}

// Reset clears the interpolation state.
func (r *Resampler) Reset() {
	r.pos = 0
	r.primed = false
	for i := range r.prev {
		r.prev[i] = 0
	}
}

// resampledSource adapts a native-rate source to the stream rate.
type resampledSource struct {
	src    Source
	rs     *Resampler
	format audio.Format
}

func newResampledSource(src Source, nativeRate int, format audio.Format) *resampledSource {
	return &resampledSource{
		src:    src,
		rs:     NewResampler(nativeRate, format.SampleRate, format.Channels),
		format: format,
	}
}

func (s *resampledSource) ReadPCM(p []byte) (int, error) {
	out := make([]int16, len(p)/2)
	produced := 0
	for produced < len(out) {
		needFrames := s.rs.InputFramesNeeded((len(out) - produced) / s.format.Channels)
		raw := make([]byte, needFrames*s.format.Channels*2)
		if _, err := s.src.ReadPCM(raw); err != nil {
			return produced * 2, err
		}
		produced += s.rs.Resample(toSamples(raw), out[produced:])
	}
	putSamples(p, out)
	return len(p), nil
}

func (s *resampledSource) Rewind() error {
	if err := s.src.Rewind(); err != nil {
		return err
	}
	s.rs.Reset()
	return nil
}

func (s *resampledSource) Close() error {
	return s.src.Close()
}
