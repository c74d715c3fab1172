// ABOUTME: WebSocket transport for the streaming gateway
// ABOUTME: Implements the music generation connector against a gateway endpoint
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weavesong/weavesong-go/internal/audio"
	"github.com/weavesong/weavesong-go/internal/protocol"
	"github.com/weavesong/weavesong-go/pkg/musicgen"
)

const (
	helloTimeout = 5 * time.Second
	writeTimeout = 10 * time.Second
)

// Config holds gateway connection parameters.
type Config struct {
	// URL is the ws:// or wss:// gateway endpoint.
	URL string

	// Format is the expected stream format. When set, the gateway's
	// announced format must match or Connect fails.
	Format audio.Format
}

// Connector dials a streaming gateway over WebSocket.
type Connector struct {
	config Config
}

// NewConnector creates a connector for the given gateway.
func NewConnector(config Config) *Connector {
	return &Connector{config: config}
}

// Connect dials the gateway, waits for the stream announcement, and
// returns a live session. Callbacks fire from the read goroutine.
func (c *Connector) Connect(ctx context.Context, cb musicgen.Callbacks) (musicgen.Session, error) {
	u, err := url.Parse(c.config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
	}

	log.Printf("Connecting to gateway at %s", u.String())
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	hello, err := readHello(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if c.config.Format.SampleRate != 0 {
		if hello.SampleRate != c.config.Format.SampleRate || hello.Channels != c.config.Format.Channels {
			conn.Close()
			return nil, fmt.Errorf("gateway streams %d Hz/%d ch, expected %d Hz/%d ch",
				hello.SampleRate, hello.Channels,
				c.config.Format.SampleRate, c.config.Format.Channels)
		}
	}

	log.Printf("Gateway %s ready (%d Hz, %d channels)", hello.Name, hello.SampleRate, hello.Channels)

	s := &session{conn: conn, cb: cb}
	go s.readLoop()
	return s, nil
}

// readHello waits for the session/hello announcement that opens every
// stream.
func readHello(conn *websocket.Conn) (*protocol.ServerHello, error) {
	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read hello: %w", err)
	}

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse hello: %w", err)
	}
	if msg.Type != "session/hello" {
		return nil, fmt.Errorf("expected session/hello, got %s", msg.Type)
	}

	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to parse hello payload: %w", err)
	}
	var hello protocol.ServerHello
	if err := json.Unmarshal(payload, &hello); err != nil {
		return nil, fmt.Errorf("failed to parse hello payload: %w", err)
	}
	return &hello, nil
}

// session is a live gateway connection speaking the session protocol.
type session struct {
	conn *websocket.Conn
	cb   musicgen.Callbacks

	mu     sync.Mutex
	closed bool
}

func (s *session) Play() error  { return s.send("session/play", nil) }
func (s *session) Pause() error { return s.send("session/pause", nil) }
func (s *session) Stop() error  { return s.send("session/stop", nil) }

func (s *session) SetWeightedPrompts(prompts []musicgen.WeightedPrompt) error {
	update := protocol.PromptUpdate{Prompts: make([]protocol.WeightedPrompt, len(prompts))}
	for i, p := range prompts {
		update.Prompts[i] = protocol.WeightedPrompt{Text: p.Text, Weight: p.Weight}
	}
	return s.send("session/prompts", update)
}

// send writes one control message. The mutex serializes writers; reads
// run unlocked on their own goroutine.
func (s *session) send(msgType string, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session closed")
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(protocol.Message{Type: msgType, Payload: payload}); err != nil {
		return fmt.Errorf("failed to send %s: %w", msgType, err)
	}
	return nil
}

// Close tears the connection down. It does not invoke the OnClose
// callback; that reports gateway-initiated shutdown only.
func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// Best effort close frame so the gateway drops the session cleanly.
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}

func (s *session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			wasClosed := s.closed
			s.closed = true
			s.mu.Unlock()
			if wasClosed {
				return
			}
			s.conn.Close()

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Gateway closed the session")
				if s.cb.OnClose != nil {
					s.cb.OnClose()
				}
			} else {
				log.Printf("Gateway connection lost: %v", err)
				if s.cb.OnError != nil {
					s.cb.OnError(fmt.Errorf("connection lost: %w", err))
				}
			}
			return
		}
		s.handleMessage(data)
	}
}

// handleMessage routes one frame from the gateway to the callbacks.
func (s *session) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error parsing gateway message: %v", err)
		return
	}

	switch msg.Type {
	case "session/chunk":
		payload, err := json.Marshal(msg.Payload)
		if err != nil {
			log.Printf("Error parsing chunk payload: %v", err)
			return
		}
		var chunk protocol.AudioChunk
		if err := json.Unmarshal(payload, &chunk); err != nil {
			log.Printf("Error parsing chunk payload: %v", err)
			return
		}
		if s.cb.OnChunk != nil {
			s.cb.OnChunk(musicgen.Chunk{Audio: chunk.Audio})
		}

	case "session/error":
		payload, err := json.Marshal(msg.Payload)
		if err != nil {
			log.Printf("Error parsing error payload: %v", err)
			return
		}
		var serr protocol.SessionError
		if err := json.Unmarshal(payload, &serr); err != nil {
			log.Printf("Error parsing error payload: %v", err)
			return
		}
		log.Printf("Gateway reported: %s", serr.Message)
		if s.cb.OnError != nil {
			s.cb.OnError(fmt.Errorf("gateway error: %s", serr.Message))
		}

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}
