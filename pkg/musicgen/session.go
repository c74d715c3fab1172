// ABOUTME: Session and connector contracts plus wire chunk types
// ABOUTME: Transport adapters implement these to feed the playback core
package musicgen

import "context"

// Chunk is one audio payload from the generation stream: base64-encoded
// 16-bit little-endian interleaved PCM.
type Chunk struct {
	Audio string
}

// WeightedPrompt steers generation toward a text with a relative weight.
type WeightedPrompt struct {
	Text   string
	Weight float64
}

// Callbacks deliver session events. Implementations invoke them from
// their own goroutines; receivers must be safe for that.
type Callbacks struct {
	// OnChunk carries one audio chunk.
	OnChunk func(chunk Chunk)

	// OnError reports a transport or generation failure.
	OnError func(err error)

	// OnClose reports that the session ended.
	OnClose func()
}

// Session is an open generation session. Play, Pause, and Stop steer
// the generator only; they do not gate local playback.
type Session interface {
	Play() error
	Pause() error
	Stop() error
	SetWeightedPrompts(prompts []WeightedPrompt) error
	Close() error
}

// Connector opens sessions against a concrete backend.
type Connector interface {
	Connect(ctx context.Context, cb Callbacks) (Session, error)
}
