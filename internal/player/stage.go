// ABOUTME: Output stage abstraction over the audio device
// ABOUTME: Defines the device clock, node scheduling, and gain surface
package player

import (
	"time"

	"github.com/weavesong/weavesong-go/internal/audio"
)

// Stage is the playback surface the scheduler and controller drive.
// Times are seconds on the stage's own clock, which starts at zero and
// advances only while the device is rendering.
type Stage interface {
	// EnsureStarted lazily brings up the audio device. Safe to call
	// repeatedly; only the first call does work.
	EnsureStarted() error

	// Now returns the current position of the device clock in seconds.
	Now() float64

	// NewNode prepares a decoded buffer for playback. The node is
	// silent until StartAt is called.
	NewNode(buf audio.Buffer) (Node, error)

	// SetGain applies gain immediately, cancelling any ramp in flight.
	SetGain(gain float64)

	// RampGain moves gain linearly to target over d of device time.
	RampGain(target float64, d time.Duration)

	// FlushAndRebuild severs every scheduled and in-flight node. The
	// clock and the gain survive the flush.
	FlushAndRebuild()

	// Close tears down the device. All operations become no-ops.
	Close() error
}

// Node is a single scheduled buffer on the stage.
type Node interface {
	// StartAt schedules playback at the given clock time in seconds.
	// A start time already in the past clips the missed head.
	StartAt(when float64)
}
