// ABOUTME: In-memory output stage for tests
// ABOUTME: Manual clock with recorded nodes, gains, ramps, and flushes
package player

import (
	"sync"
	"time"

	"github.com/weavesong/weavesong-go/internal/audio"
)

// FakeStage implements Stage with a hand-advanced clock. Ramps apply
// their target instantly; every call is recorded for assertions.
type FakeStage struct {
	mu      sync.Mutex
	clock   float64
	gain    float64
	started bool
	closed  bool
	flushes int
	nodes   []*FakeNode
	ramps   []FakeRamp

	// FailStart, when set, is returned by EnsureStarted.
	FailStart error
}

// FakeRamp records one RampGain call.
type FakeRamp struct {
	Target   float64
	Duration time.Duration
}

// FakeNode records one scheduled buffer.
type FakeNode struct {
	stage   *FakeStage
	Frames  int
	Start   float64
	Started bool
	Severed bool
}

// NewFakeStage creates a stage with the clock at zero and gain 1.
func NewFakeStage() *FakeStage {
	return &FakeStage{gain: 1.0}
}

func (f *FakeStage) EnsureStarted() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailStart != nil {
		return f.FailStart
	}
	f.started = true
	return nil
}

func (f *FakeStage) Now() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clock
}

func (f *FakeStage) NewNode(buf audio.Buffer) (Node, error) {
	return &FakeNode{stage: f, Frames: buf.FrameCount()}, nil
}

func (n *FakeNode) StartAt(when float64) {
	f := n.stage
	f.mu.Lock()
	defer f.mu.Unlock()
	n.Start = when
	n.Started = true
	f.nodes = append(f.nodes, n)
}

func (f *FakeStage) SetGain(gain float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gain = gain
}

func (f *FakeStage) RampGain(target float64, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ramps = append(f.ramps, FakeRamp{Target: target, Duration: d})
	f.gain = target
}

func (f *FakeStage) FlushAndRebuild() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	for _, n := range f.nodes {
		n.Severed = true
	}
}

func (f *FakeStage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Advance moves the clock forward.
func (f *FakeStage) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock += d.Seconds()
}

// NodeStarts returns the start times of every node ever started.
func (f *FakeStage) NodeStarts() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	starts := make([]float64, 0, len(f.nodes))
	for _, n := range f.nodes {
		starts = append(starts, n.Start)
	}
	return starts
}

// LiveNodeStarts returns start times of nodes not severed by a flush.
func (f *FakeStage) LiveNodeStarts() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	starts := make([]float64, 0, len(f.nodes))
	for _, n := range f.nodes {
		if !n.Severed {
			starts = append(starts, n.Start)
		}
	}
	return starts
}

// FlushCount returns how many times FlushAndRebuild ran.
func (f *FakeStage) FlushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushes
}

// Gain returns the current gain value.
func (f *FakeStage) Gain() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gain
}

// Ramps returns every recorded RampGain call.
func (f *FakeStage) Ramps() []FakeRamp {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeRamp(nil), f.ramps...)
}

// Started reports whether EnsureStarted succeeded at least once.
func (f *FakeStage) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// Closed reports whether Close was called.
func (f *FakeStage) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
