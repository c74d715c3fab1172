// ABOUTME: Per-connection gateway session with an independent material position
// ABOUTME: Routes control messages and feeds chunks on a real-time ticker
package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weavesong/weavesong-go/internal/audio"
	"github.com/weavesong/weavesong-go/internal/material"
	"github.com/weavesong/weavesong-go/internal/protocol"
)

const writeTimeout = 10 * time.Second

// session is one connected listener. Each session reads its own source,
// so stream positions never interfere across connections.
type session struct {
	id         string
	conn       *websocket.Conn
	source     material.Source
	chunkBytes int
	chunkLen   time.Duration

	mu      sync.Mutex
	playing bool
	prompts []protocol.WeightedPrompt

	stopChan chan struct{}
	stopOnce sync.Once
	kick     chan struct{}
	feedDone chan struct{}
}

func newSession(conn *websocket.Conn, source material.Source, format audio.Format, chunkLen time.Duration) *session {
	return &session{
		id:         uuid.New().String()[:8],
		conn:       conn,
		source:     source,
		chunkBytes: format.FramesFor(chunkLen) * format.BytesPerFrame(),
		chunkLen:   chunkLen,
		stopChan:   make(chan struct{}),
		kick:       make(chan struct{}, 1),
		feedDone:   make(chan struct{}),
	}
}

// readLoop consumes control messages until the connection drops.
func (s *session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Session %s read error: %v", s.id, err)
			}
			return
		}
		s.handleMessage(data)
	}
}

// handleMessage routes one control frame.
func (s *session) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Session %s sent malformed message: %v", s.id, err)
		return
	}

	switch msg.Type {
	case "session/play":
		s.handlePlay()
	case "session/pause":
		s.handlePause()
	case "session/stop":
		s.handleStop()
	case "session/prompts":
		s.handlePrompts(msg.Payload)
	default:
		log.Printf("Session %s sent unknown message type: %s", s.id, msg.Type)
	}
}

func (s *session) handlePlay() {
	s.mu.Lock()
	already := s.playing
	s.playing = true
	s.mu.Unlock()
	if already {
		return
	}

	log.Printf("Session %s playing", s.id)
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *session) handlePause() {
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
	log.Printf("Session %s paused", s.id)
}

func (s *session) handleStop() {
	s.mu.Lock()
	s.playing = false
	err := s.source.Rewind()
	s.mu.Unlock()

	if err != nil {
		log.Printf("Session %s rewind failed: %v", s.id, err)
		return
	}
	log.Printf("Session %s stopped", s.id)
}

func (s *session) handlePrompts(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Session %s prompts payload invalid: %v", s.id, err)
		return
	}
	var update protocol.PromptUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		log.Printf("Session %s prompts payload invalid: %v", s.id, err)
		return
	}

	s.mu.Lock()
	s.prompts = update.Prompts
	s.mu.Unlock()

	texts := make([]string, len(update.Prompts))
	for i, p := range update.Prompts {
		texts[i] = fmt.Sprintf("%s (%.1f)", p.Text, p.Weight)
	}
	log.Printf("Session %s prompts: %s", s.id, strings.Join(texts, ", "))
}

// feed emits chunks on the ticker while the session is playing. The
// kick channel forces an immediate chunk after play.
func (s *session) feed() {
	defer close(s.feedDone)

	ticker := time.NewTicker(s.chunkLen)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-s.kick:
			if !s.emit() {
				s.conn.Close()
				return
			}
		case <-ticker.C:
			if !s.emit() {
				s.conn.Close()
				return
			}
		}
	}
}

// emit sends one chunk. It reports false when the session should end.
func (s *session) emit() bool {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return true
	}
	buf := make([]byte, s.chunkBytes)
	_, err := s.source.ReadPCM(buf)
	s.mu.Unlock()

	if err != nil {
		log.Printf("Session %s material failed: %v", s.id, err)
		s.writeJSON("session/error", protocol.SessionError{Message: err.Error()})
		return false
	}

	chunk := protocol.AudioChunk{Audio: base64.StdEncoding.EncodeToString(buf)}
	if err := s.writeJSON("session/chunk", chunk); err != nil {
		log.Printf("Session %s write failed: %v", s.id, err)
		return false
	}
	return true
}

// writeJSON sends one message. Only the feed goroutine and the pre-feed
// hello call this, so writes never interleave.
func (s *session) writeJSON(msgType string, payload interface{}) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(protocol.Message{Type: msgType, Payload: payload})
}

// shutdown stops the feed and waits for it to drain.
func (s *session) shutdown() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	<-s.feedDone
}
