// ABOUTME: Gapless playback scheduler
// ABOUTME: Keeps a schedule cursor on the stage clock and recovers from underruns
package player

import (
	"log"
	"sync"
	"time"

	"github.com/weavesong/weavesong-go/internal/audio"
)

// SchedulerCallbacks notify the owner about buffering transitions.
// Underrun fires synchronously inside Schedule, with the scheduler lock
// held, when the cursor has fallen behind the clock. BufferingElapsed
// fires from a timer goroutine with no scheduler lock held, once the
// pre-roll window for the current schedule has passed; the owner must
// re-check its own state.
type SchedulerCallbacks struct {
	Underrun         func()
	BufferingElapsed func()
}

// Scheduler places decoded chunks back to back on the stage clock.
type Scheduler struct {
	mu         sync.Mutex
	stage      Stage
	format     audio.Format
	bufferTime time.Duration
	cb         SchedulerCallbacks

	// nextStart is the schedule cursor in stage seconds. Zero means no
	// schedule is in progress and the next chunk re-buffers.
	nextStart float64
	epoch     uint64

	stats SchedulerStats
}

// SchedulerStats tracks scheduler counters.
type SchedulerStats struct {
	Scheduled uint64
	Underruns uint64
}

// NewScheduler creates a scheduler. bufferTime is the pre-roll applied
// whenever the schedule starts fresh.
func NewScheduler(stage Stage, format audio.Format, bufferTime time.Duration, cb SchedulerCallbacks) *Scheduler {
	return &Scheduler{
		stage:      stage,
		format:     format,
		bufferTime: bufferTime,
		cb:         cb,
	}
}

// Schedule places a buffer at the cursor and advances the cursor by the
// buffer's duration. A buffer with no frames is ignored. When the
// cursor is unset or has fallen behind the clock, the schedule restarts
// at now + bufferTime: an underrun severs in-flight audio first, and
// the pre-roll timer is armed.
func (s *Scheduler) Schedule(buf audio.Buffer) {
	if buf.FrameCount() == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.stage.Now()
	if s.nextStart == 0 || s.nextStart < now {
		if s.nextStart > 0 {
			s.stats.Underruns++
			log.Printf("Playback underrun: schedule cursor %.3fs behind clock", now-s.nextStart)
			s.stage.FlushAndRebuild()
			if s.cb.Underrun != nil {
				s.cb.Underrun()
			}
		}
		s.nextStart = now + s.bufferTime.Seconds()
		s.armTimerLocked()
	}

	node, err := s.stage.NewNode(buf)
	if err != nil {
		log.Printf("Failed to create playback node: %v", err)
		return
	}
	node.StartAt(s.nextStart)
	s.nextStart += buf.Duration(s.format).Seconds()
	s.stats.Scheduled++
}

// armTimerLocked arms the one-shot pre-roll timer for the current
// epoch. A Reset or a schedule restart invalidates the timer; it
// re-checks the epoch when it fires instead of being cancelled.
func (s *Scheduler) armTimerLocked() {
	s.epoch++
	epoch := s.epoch
	time.AfterFunc(s.bufferTime, func() {
		s.mu.Lock()
		current := s.epoch == epoch
		s.mu.Unlock()
		if current && s.cb.BufferingElapsed != nil {
			s.cb.BufferingElapsed()
		}
	})
	log.Printf("Buffering: playback starts in %v", s.bufferTime)
}

// Reset clears the schedule cursor so the next chunk re-buffers. Any
// armed pre-roll timer becomes stale.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextStart = 0
	s.epoch++
}

// Lead returns how far the cursor runs ahead of the stage clock.
func (s *Scheduler) Lead() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nextStart == 0 {
		return 0
	}
	lead := s.nextStart - s.stage.Now()
	if lead < 0 {
		return 0
	}
	return time.Duration(lead * float64(time.Second))
}

// Stats returns a copy of the scheduler counters.
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
