// ABOUTME: Capability interface for generative music sessions
// ABOUTME: Defines the session surface the playback core drives
// Package musicgen defines the capability surface of a live music
// generation session.
//
// The playback core never talks to a concrete backend; it drives a
// Session obtained from a Connector and receives audio through
// Callbacks:
//   - Session: transport controls (Play, Pause, Stop) and prompt steering
//   - Callbacks: chunk delivery plus error and close notification
//   - Chunk: one base64-encoded s16le PCM payload
//
// Implement Connector to bind a real service, a replay file, or a test
// double:
//
//	type silence struct{}
//
//	func (silence) Connect(ctx context.Context, cb musicgen.Callbacks) (musicgen.Session, error) {
//	    return newSilentSession(cb), nil
//	}
package musicgen
