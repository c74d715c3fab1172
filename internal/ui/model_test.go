// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling, and render helpers
package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestNewModel(t *testing.T) {
	model := NewModel(nil) // Controls are optional for testing

	if model.connected {
		t.Error("expected connected to be false initially")
	}

	if model.state != "stopped" {
		t.Errorf("expected initial state 'stopped', got '%s'", model.state)
	}

	if model.muted {
		t.Error("expected muted to be false initially")
	}

	if model.leadScale != 2*time.Second {
		t.Errorf("expected default lead scale 2s, got %v", model.leadScale)
	}
}

func TestStatusMsgConnected(t *testing.T) {
	model := NewModel(nil)

	connected := true
	model.applyStatus(StatusMsg{
		Connected: &connected,
		Episode:   "ep-12345678-abcd",
	})

	if !model.connected {
		t.Error("expected connected to be true after status update")
	}

	if model.episode != "ep-12345678-abcd" {
		t.Errorf("expected episode 'ep-12345678-abcd', got '%s'", model.episode)
	}
}

func TestStatusMsgDisconnected(t *testing.T) {
	model := NewModel(nil)

	connected := true
	model.applyStatus(StatusMsg{Connected: &connected})

	disconnected := false
	model.applyStatus(StatusMsg{Connected: &disconnected})

	if model.connected {
		t.Error("expected connected to be false after disconnect")
	}
}

func TestStatusMsgState(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{State: "playing"})
	if model.state != "playing" {
		t.Errorf("expected state 'playing', got '%s'", model.state)
	}

	// Empty state is a partial update and must not clear the field.
	model.applyStatus(StatusMsg{Scheduled: 3})
	if model.state != "playing" {
		t.Error("previous state was lost on partial update")
	}
}

func TestStatusMsgMuted(t *testing.T) {
	model := NewModel(nil)

	muted := true
	model.applyStatus(StatusMsg{Muted: &muted})
	if !model.muted {
		t.Error("expected muted after status update")
	}

	model.applyStatus(StatusMsg{State: "paused"})
	if !model.muted {
		t.Error("mute flag was lost on partial update")
	}
}

func TestStatusMsgStatsAlwaysApply(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{
		Scheduled: 42,
		Underruns: 2,
		Corrupt:   1,
		Lead:      1500 * time.Millisecond,
	})

	if model.scheduled != 42 || model.underruns != 2 || model.corrupt != 1 {
		t.Errorf("counters not applied: %d/%d/%d", model.scheduled, model.underruns, model.corrupt)
	}
	if model.lead != 1500*time.Millisecond {
		t.Errorf("expected lead 1.5s, got %v", model.lead)
	}

	// Counters are snapshots, so zeros overwrite.
	model.applyStatus(StatusMsg{})
	if model.scheduled != 0 || model.lead != 0 {
		t.Error("expected counter snapshot to reset to zero")
	}
}

func TestStatusMsgLeadScale(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{LeadScale: 4 * time.Second})
	if model.leadScale != 4*time.Second {
		t.Errorf("expected lead scale 4s, got %v", model.leadScale)
	}

	model.applyStatus(StatusMsg{})
	if model.leadScale != 4*time.Second {
		t.Error("zero lead scale should not overwrite")
	}
}

func TestKeyRequests(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)

	keys := []struct {
		msg  tea.KeyMsg
		want Request
	}{
		{tea.KeyMsg{Type: tea.KeySpace}, RequestToggle},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}}, RequestStop},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'m'}}, RequestMute},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}}, RequestNextPrompt},
	}

	for _, k := range keys {
		model.handleKey(k.msg)

		select {
		case got := <-controls.Requests:
			if got != k.want {
				t.Errorf("key %q: got request %d, want %d", k.msg.String(), got, k.want)
			}
		default:
			t.Errorf("key %q: no request sent", k.msg.String())
		}
	}
}

func TestQuitKeys(t *testing.T) {
	model := NewModel(nil)

	for _, msg := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyCtrlC},
	} {
		_, cmd := model.handleKey(msg)
		if cmd == nil {
			t.Fatalf("key %q: expected quit command", msg.String())
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("key %q: expected quit message", msg.String())
		}
	}
}

func TestKeyRequestsDropWhenFull(t *testing.T) {
	controls := &Controls{Requests: make(chan Request, 1)}
	model := NewModel(controls)

	stop := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}}
	model.handleKey(stop)
	// The channel is full now; the next key must not block the update loop.
	model.handleKey(stop)

	if len(controls.Requests) != 1 {
		t.Errorf("expected 1 queued request, got %d", len(controls.Requests))
	}
}

func TestViewRendersStatus(t *testing.T) {
	model := NewModel(nil)
	model.width = 60
	model.height = 20

	connected := true
	model.applyStatus(StatusMsg{
		Connected: &connected,
		State:     "playing",
		Episode:   "4f9f2c1e-7b7a-4f2d-8c7a-2f1a9b8c7d6e",
		Prompt:    "ambient drone",
		Scheduled: 7,
		Lead:      time.Second,
	})

	view := model.View()
	for _, want := range []string{"Connected", "playing", "ambient drone", "Chunks: 7"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value    int
		expected string
	}{
		{0, "░░░░░░░░░░"},
		{50, "█████░░░░░"},
		{100, "██████████"},
	}

	for _, tt := range tests {
		if got := renderBar(tt.value, 100, 10); got != tt.expected {
			t.Errorf("renderBar(%d) = %q, expected %q", tt.value, got, tt.expected)
		}
	}
}

func TestLeadPercent(t *testing.T) {
	tests := []struct {
		lead     time.Duration
		scale    time.Duration
		expected int
	}{
		{0, 2 * time.Second, 0},
		{time.Second, 2 * time.Second, 50},
		{2 * time.Second, 2 * time.Second, 100},
		{3 * time.Second, 2 * time.Second, 100},
		{-time.Second, 2 * time.Second, 0},
		{time.Second, 0, 0},
	}

	for _, tt := range tests {
		if got := leadPercent(tt.lead, tt.scale); got != tt.expected {
			t.Errorf("leadPercent(%v, %v) = %d, expected %d",
				tt.lead, tt.scale, got, tt.expected)
		}
	}
}

func TestTruncateFunction(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"this is longer than allowed", 10, "this is..."},
		{"", 10, ""},
		{"abcd", 4, "abcd"},
		{"abcde", 4, "a..."},
	}

	for _, tt := range tests {
		result := truncate(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, expected %q",
				tt.input, tt.maxLen, result, tt.expected)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID = %q, expected '01234567'", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID = %q, expected 'abc'", got)
	}
}

func TestStateIcon(t *testing.T) {
	tests := []struct {
		state    string
		expected string
	}{
		{"playing", "▶"},
		{"paused", "⏸"},
		{"loading", "◌"},
		{"stopped", "■"},
		{"anything else", "■"},
	}

	for _, tt := range tests {
		if got := stateIcon(tt.state); got != tt.expected {
			t.Errorf("stateIcon(%q) = %q, expected %q", tt.state, got, tt.expected)
		}
	}
}
