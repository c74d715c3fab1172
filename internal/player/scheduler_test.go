// ABOUTME: Tests for the gapless playback scheduler
// ABOUTME: Covers cursor placement, pre-roll timing, and underrun recovery
package player

import (
	"testing"
	"time"

	"github.com/weavesong/weavesong-go/internal/audio"
)

// testFormat keeps frame math small: 10 frames = 1 second.
var testFormat = audio.Format{SampleRate: 10, Channels: 2}

func testBuffer(frames int) audio.Buffer {
	return audio.Buffer{Channels: [][]float32{
		make([]float32, frames),
		make([]float32, frames),
	}}
}

func TestScheduleGaplessStarts(t *testing.T) {
	stage := NewFakeStage()
	sched := NewScheduler(stage, testFormat, 2*time.Second, SchedulerCallbacks{})
	defer sched.Reset()

	// Three 1s chunks arriving at clock 0 with a 2s pre-roll
	for i := 0; i < 3; i++ {
		sched.Schedule(testBuffer(10))
	}

	starts := stage.NodeStarts()
	expected := []float64{2.0, 3.0, 4.0}
	if len(starts) != len(expected) {
		t.Fatalf("expected %d nodes, got %d", len(expected), len(starts))
	}
	for i, want := range expected {
		if starts[i] != want {
			t.Errorf("node %d: expected start %v, got %v", i, want, starts[i])
		}
	}

	stats := sched.Stats()
	if stats.Scheduled != 3 {
		t.Errorf("expected 3 scheduled, got %d", stats.Scheduled)
	}
	if stats.Underruns != 0 {
		t.Errorf("expected 0 underruns, got %d", stats.Underruns)
	}
}

func TestScheduleZeroFrameBuffer(t *testing.T) {
	stage := NewFakeStage()
	sched := NewScheduler(stage, testFormat, 2*time.Second, SchedulerCallbacks{})

	sched.Schedule(audio.Buffer{})

	if len(stage.NodeStarts()) != 0 {
		t.Error("expected no nodes for empty buffer")
	}
	if sched.Lead() != 0 {
		t.Error("expected cursor untouched by empty buffer")
	}
}

func TestScheduleUnderrunRecovery(t *testing.T) {
	stage := NewFakeStage()
	underruns := make(chan struct{}, 4)
	cb := SchedulerCallbacks{
		Underrun: func() { underruns <- struct{}{} },
	}
	sched := NewScheduler(stage, testFormat, 2*time.Second, cb)
	defer sched.Reset()

	// Two chunks land the cursor at 4s
	sched.Schedule(testBuffer(10))
	sched.Schedule(testBuffer(10))

	// Feed stalls; the clock passes the cursor
	stage.Advance(5 * time.Second)
	sched.Schedule(testBuffer(10))

	stats := sched.Stats()
	if stats.Underruns != 1 {
		t.Errorf("expected exactly 1 underrun, got %d", stats.Underruns)
	}
	if len(underruns) != 1 {
		t.Errorf("expected 1 underrun callback, got %d", len(underruns))
	}
	if stage.FlushCount() != 1 {
		t.Errorf("expected 1 flush, got %d", stage.FlushCount())
	}

	// The late chunk re-buffers at 5+2 and lives on the rebuilt path
	starts := stage.NodeStarts()
	expected := []float64{2.0, 3.0, 7.0}
	for i, want := range expected {
		if starts[i] != want {
			t.Errorf("node %d: expected start %v, got %v", i, want, starts[i])
		}
	}
	live := stage.LiveNodeStarts()
	if len(live) != 1 || live[0] != 7.0 {
		t.Errorf("expected only the 7.0s node to survive the flush, got %v", live)
	}
}

func TestScheduleBufferingElapsed(t *testing.T) {
	stage := NewFakeStage()
	elapsed := make(chan struct{}, 4)
	cb := SchedulerCallbacks{
		BufferingElapsed: func() { elapsed <- struct{}{} },
	}
	sched := NewScheduler(stage, testFormat, 30*time.Millisecond, cb)

	sched.Schedule(testBuffer(10))
	sched.Schedule(testBuffer(10))

	time.Sleep(80 * time.Millisecond)
	if len(elapsed) != 1 {
		t.Errorf("expected 1 buffering-elapsed callback, got %d", len(elapsed))
	}
}

func TestScheduleElapsedStaleAfterReset(t *testing.T) {
	stage := NewFakeStage()
	elapsed := make(chan struct{}, 4)
	cb := SchedulerCallbacks{
		BufferingElapsed: func() { elapsed <- struct{}{} },
	}
	sched := NewScheduler(stage, testFormat, 30*time.Millisecond, cb)

	sched.Schedule(testBuffer(10))
	sched.Reset()

	time.Sleep(80 * time.Millisecond)
	if len(elapsed) != 0 {
		t.Errorf("expected stale timer to stay silent, got %d callbacks", len(elapsed))
	}
}

func TestScheduleRestartInvalidatesOldTimer(t *testing.T) {
	stage := NewFakeStage()
	elapsed := make(chan struct{}, 4)
	cb := SchedulerCallbacks{
		BufferingElapsed: func() { elapsed <- struct{}{} },
	}
	sched := NewScheduler(stage, testFormat, 40*time.Millisecond, cb)
	defer sched.Reset()

	sched.Schedule(testBuffer(10))

	// Underrun forces a restart and re-arms the timer
	stage.Advance(2 * time.Second)
	sched.Schedule(testBuffer(10))

	time.Sleep(100 * time.Millisecond)
	if len(elapsed) != 1 {
		t.Errorf("expected only the re-armed timer to fire, got %d callbacks", len(elapsed))
	}
}

func TestSchedulerLead(t *testing.T) {
	stage := NewFakeStage()
	sched := NewScheduler(stage, testFormat, 2*time.Second, SchedulerCallbacks{})
	defer sched.Reset()

	if sched.Lead() != 0 {
		t.Errorf("expected zero lead before scheduling, got %v", sched.Lead())
	}

	sched.Schedule(testBuffer(10))
	if got := sched.Lead(); got != 3*time.Second {
		t.Errorf("expected 3s lead, got %v", got)
	}

	stage.Advance(time.Second)
	if got := sched.Lead(); got != 2*time.Second {
		t.Errorf("expected 2s lead after advance, got %v", got)
	}

	sched.Reset()
	if sched.Lead() != 0 {
		t.Errorf("expected zero lead after reset, got %v", sched.Lead())
	}
}
