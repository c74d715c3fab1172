// ABOUTME: High-level playback controller for generated music
// ABOUTME: Provides the transport surface, state machine, and broadcasts
// Package music turns a live generative-music feed into gapless audio.
//
// Controller is the main entry point. It owns the output stage, the
// playback scheduler, and at most one generation session, and exposes:
//   - transport: Play, Pause, Stop, ToggleMute, SetPrompts
//   - lifecycle: Connect, Close
//   - observation: AddStateListener, Status
//
// Example:
//
//	ctrl := music.New(music.Config{Connector: connector})
//	err := ctrl.Connect(ctx)
//	ctrl.AddStateListener(func(s music.MusicState) {
//	    log.Printf("state: %s muted: %v", s.PlaybackState, s.IsMuted)
//	})
//	ctrl.Play()
//
// Chunks decode into 2s-buffered, back-to-back playback; pause and stop
// fade out over 100ms before the state flips. See the Stage interface
// in internal/player for the device abstraction underneath.
package music
