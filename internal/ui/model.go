// ABOUTME: Bubbletea model for the playback TUI
// ABOUTME: Defines application state and update logic
package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state
type Model struct {
	controls *Controls

	// Session
	connected bool
	episode   string

	// Playback
	state  string
	muted  bool
	prompt string

	// Stats
	scheduled uint64
	underruns uint64
	corrupt   uint64
	lead      time.Duration
	leadScale time.Duration

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderSession()
	s += m.renderStats()
	s += m.renderHelp()

	return s
}

// renderHeader renders connection and playback state
func (m Model) renderHeader() string {
	connStatus := "Disconnected"
	if m.connected {
		connStatus = "Connected"
		if m.episode != "" {
			connStatus = fmt.Sprintf("Connected (episode %s)", shortID(m.episode))
		}
	}

	stateText := m.state
	if m.muted {
		stateText += " 🔇"
	}

	return fmt.Sprintf(`┌─ Weavesong ──────────────────────────────────────────┐
│ Status: %-45s│
│ State:  %s %-42s│
├──────────────────────────────────────────────────────┤
`, connStatus, stateIcon(m.state), stateText)
}

// renderSession renders the active prompt and schedule lead
func (m Model) renderSession() string {
	prompt := m.prompt
	if prompt == "" {
		prompt = "(none)"
	}

	bar := renderBar(leadPercent(m.lead, m.leadScale), 100, 10)
	leadText := fmt.Sprintf("%.1fs", m.lead.Seconds())

	return fmt.Sprintf("│ Prompt: %-45s│\n"+
		"│ Lead:   [%s] %-33s│\n"+
		"│                                                      │\n",
		truncate(prompt, 45), bar, leadText)
}

// renderStats renders playback statistics
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Stats:  Chunks: %d  Underruns: %d  Corrupt: %d%-6s│
│                                                      │
`, m.scheduled, m.underruns, m.corrupt, "")
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ space:Play/Pause  s:Stop  m:Mute  n:Prompt  q:Quit   │
└──────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		m.request(RequestToggle)
	case "s":
		m.request(RequestStop)
	case "m":
		m.request(RequestMute)
	case "n":
		m.request(RequestNextPrompt)
	}

	return m, nil
}

// request forwards a control action without blocking the update loop
func (m Model) request(r Request) {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Requests <- r:
	default:
	}
}

// applyStatus updates model from status message. Counters and lead are
// full snapshots and always apply; the other fields apply when set.
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.Muted != nil {
		m.muted = *msg.Muted
	}
	if msg.Episode != "" {
		m.episode = msg.Episode
	}
	if msg.Prompt != "" {
		m.prompt = msg.Prompt
	}
	if msg.LeadScale > 0 {
		m.leadScale = msg.LeadScale
	}
	m.scheduled = msg.Scheduled
	m.underruns = msg.Underruns
	m.corrupt = msg.Corrupt
	m.lead = msg.Lead
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Connected *bool
	State     string
	Muted     *bool
	Episode   string
	Prompt    string
	Scheduled uint64
	Underruns uint64
	Corrupt   uint64
	Lead      time.Duration
	LeadScale time.Duration
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func leadPercent(lead, scale time.Duration) int {
	if scale <= 0 {
		return 0
	}
	p := int(lead * 100 / scale)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func stateIcon(state string) string {
	switch state {
	case "playing":
		return "▶"
	case "paused":
		return "⏸"
	case "loading":
		return "◌"
	default:
		return "■"
	}
}
