// ABOUTME: Wire message definitions for the streaming gateway
// ABOUTME: JSON envelope and payload types shared by client and server
package protocol

// Message is the envelope for every JSON frame on the wire. Payload is
// decoded a second time once Type is known.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// ServerHello announces the stream format when a session opens. It is
// the first message on every connection.
type ServerHello struct {
	ServerID   string `json:"server_id"`
	Name       string `json:"name"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// WeightedPrompt steers generation toward a texture. Weight is relative
// to the other prompts in the same update.
type WeightedPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

// PromptUpdate replaces the active prompt set for a session.
// Sent as "session/prompts".
type PromptUpdate struct {
	Prompts []WeightedPrompt `json:"prompts"`
}

// AudioChunk carries one chunk of base64 s16le interleaved PCM.
// Sent as "session/chunk".
type AudioChunk struct {
	Audio string `json:"audio"`
}

// SessionError reports a server-side failure for the session.
// Sent as "session/error".
type SessionError struct {
	Message string `json:"message"`
}
