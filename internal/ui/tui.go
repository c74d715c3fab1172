// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for the playback UI
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Request is a key-driven control action for the app to execute.
type Request int

const (
	// RequestToggle starts playback, or pauses it when already playing.
	RequestToggle Request = iota
	// RequestStop ends the episode.
	RequestStop
	// RequestMute flips the mute switch.
	RequestMute
	// RequestNextPrompt advances to the next preset prompt.
	RequestNextPrompt
)

// Controls holds the channel carrying key requests out of the TUI.
type Controls struct {
	Requests chan Request
}

// NewControls creates a new control channel set.
func NewControls() *Controls {
	return &Controls{
		Requests: make(chan Request, 10),
	}
}

// NewModel creates a new TUI model.
func NewModel(controls *Controls) Model {
	return Model{
		controls:  controls,
		state:     "stopped",
		leadScale: 2 * time.Second,
	}
}

// Run builds the bubbletea program for the playback UI.
func Run(controls *Controls) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(controls), tea.WithAltScreen())
	return p, nil
}
