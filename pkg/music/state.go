// ABOUTME: Playback state machine types and stream constants
// ABOUTME: Defines controller states and broadcast snapshots
package music

import "time"

// Stream format and timing for the generation feed.
const (
	// SampleRate is the feed sample rate in Hz.
	SampleRate = 48000

	// ChannelCount is the number of interleaved channels on the wire.
	ChannelCount = 2

	// BufferTime is the pre-roll applied before playback starts.
	BufferTime = 2 * time.Second

	// PauseFade is the fade-out applied on pause and stop.
	PauseFade = 100 * time.Millisecond

	// MuteFade is the fade applied when toggling mute.
	MuteFade = 50 * time.Millisecond
)

// State is the playback state of a Controller.
type State int

const (
	Stopped State = iota
	Loading
	Playing
	Paused
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// MusicState is an immutable snapshot broadcast to state listeners.
type MusicState struct {
	PlaybackState State
	IsMuted       bool
}

// Status is a point-in-time view of a Controller for UIs and logs.
type Status struct {
	State     State
	Muted     bool
	Connected bool
	Episode   string
	Prompts   []string
	Scheduled uint64
	Underruns uint64
	Corrupt   uint64
	Lead      time.Duration
}
