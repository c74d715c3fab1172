// ABOUTME: Audio output stage using the oto library
// ABOUTME: Pull-model mixer with a frame-accurate clock and gain ramps
package player

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/weavesong/weavesong-go/internal/audio"
)

// otoBufferSize bounds how much already-rendered audio survives a flush.
const otoBufferSize = 50 * time.Millisecond

// OtoStage renders scheduled nodes through an oto device. The device
// pulls mixed samples via Read; the stage clock counts rendered frames.
type OtoStage struct {
	mu     sync.Mutex
	format audio.Format

	otoCtx  *oto.Context
	player  *oto.Player
	started bool
	closed  bool

	clockFrames int64
	gain        float64
	ramp        *gainRamp
	nodes       []*otoNode
	scratch     []float32
}

// gainRamp is a linear gain segment on the stage clock.
type gainRamp struct {
	from       float64
	to         float64
	startFrame int64
	frames     int64
}

// otoNode is a buffer pinned to a frame offset on the stage clock.
type otoNode struct {
	stage   *OtoStage
	samples []float32 // interleaved
	frames  int64
	start   int64
}

// NewOtoStage creates a stage for the given format. The device is not
// touched until EnsureStarted.
func NewOtoStage(format audio.Format) *OtoStage {
	return &OtoStage{
		format: format,
		gain:   1.0,
	}
}

// EnsureStarted creates the oto context and starts the pull loop. Only
// the first call does work; oto allows one context per process.
func (s *OtoStage) EnsureStarted() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("output stage is closed")
	}
	if s.started {
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   s.format.SampleRate,
		ChannelCount: s.format.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   otoBufferSize,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	s.otoCtx = ctx
	s.player = ctx.NewPlayer(s)
	s.player.Play()
	s.started = true

	log.Printf("Audio output started: %dHz, %d channels",
		s.format.SampleRate, s.format.Channels)

	return nil
}

// Now returns the stage clock in seconds.
func (s *OtoStage) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.clockFrames) / float64(s.format.SampleRate)
}

// NewNode prepares a buffer for playback.
func (s *OtoStage) NewNode(buf audio.Buffer) (Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("output stage is closed")
	}

	return &otoNode{
		stage:   s,
		samples: buf.Interleaved(),
		frames:  int64(buf.FrameCount()),
	}, nil
}

// StartAt pins the node to the stage clock and makes it audible.
func (n *otoNode) StartAt(when float64) {
	s := n.stage
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	n.start = int64(math.Round(when * float64(s.format.SampleRate)))
	s.nodes = append(s.nodes, n)
}

// SetGain applies gain immediately and cancels any ramp.
func (s *OtoStage) SetGain(gain float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gain = gain
	s.ramp = nil
}

// RampGain moves gain linearly to target over d of device time. A ramp
// started mid-ramp picks up from the instantaneous value.
func (s *OtoStage) RampGain(target float64, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	frames := int64(d.Seconds() * float64(s.format.SampleRate))
	if frames <= 0 {
		s.gain = target
		s.ramp = nil
		return
	}

	s.ramp = &gainRamp{
		from:       s.gainAtLocked(s.clockFrames),
		to:         target,
		startFrame: s.clockFrames,
		frames:     frames,
	}
	s.gain = target
}

// FlushAndRebuild severs every scheduled node. The clock and the gain
// survive; audio already handed to the device drains within
// otoBufferSize.
func (s *OtoStage) FlushAndRebuild() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.nodes) > 0 {
		log.Printf("Flushed %d scheduled nodes", len(s.nodes))
	}
	s.nodes = nil
}

// Close tears down the device. Further calls on the stage are no-ops.
func (s *OtoStage) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.started = false
	s.nodes = nil
	player := s.player
	otoCtx := s.otoCtx
	s.player = nil
	s.mu.Unlock()

	if player != nil {
		if err := player.Close(); err != nil {
			return fmt.Errorf("failed to close output player: %w", err)
		}
	}
	if otoCtx != nil {
		otoCtx.Suspend()
	}
	return nil
}

// Read renders mixed, gain-scaled float32 little-endian frames for the
// device. The stage clock advances by exactly the frames rendered.
func (s *OtoStage) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, io.EOF
	}

	channels := s.format.Channels
	bytesPerFrame := 4 * channels
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}

	samples := frames * channels
	if cap(s.scratch) < samples {
		s.scratch = make([]float32, samples)
	}
	mix := s.scratch[:samples]
	for i := range mix {
		mix[i] = 0
	}

	start := s.clockFrames
	end := start + int64(frames)

	live := s.nodes[:0]
	for _, n := range s.nodes {
		nodeEnd := n.start + n.frames
		if nodeEnd <= start {
			continue
		}
		if n.start < end {
			from := n.start
			if from < start {
				from = start
			}
			to := nodeEnd
			if to > end {
				to = end
			}
			for f := from; f < to; f++ {
				src := int(f-n.start) * channels
				dst := int(f-start) * channels
				for c := 0; c < channels; c++ {
					mix[dst+c] += n.samples[src+c]
				}
			}
		}
		if nodeEnd > end {
			live = append(live, n)
		}
	}
	s.nodes = live

	for f := 0; f < frames; f++ {
		g := float32(s.gainAtLocked(start + int64(f)))
		base := f * channels
		for c := 0; c < channels; c++ {
			v := mix[base+c] * g
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			binary.LittleEndian.PutUint32(p[(base+c)*4:], math.Float32bits(v))
		}
	}

	s.clockFrames = end
	if r := s.ramp; r != nil && end >= r.startFrame+r.frames {
		s.gain = r.to
		s.ramp = nil
	}

	return frames * bytesPerFrame, nil
}

// gainAtLocked returns the effective gain at the given clock frame.
func (s *OtoStage) gainAtLocked(frame int64) float64 {
	r := s.ramp
	if r == nil {
		return s.gain
	}
	if frame <= r.startFrame {
		return r.from
	}
	if frame >= r.startFrame+r.frames {
		return r.to
	}
	progress := float64(frame-r.startFrame) / float64(r.frames)
	return r.from + (r.to-r.from)*progress
}
