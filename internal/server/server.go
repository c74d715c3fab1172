// ABOUTME: Development gateway streaming looped material over WebSocket
// ABOUTME: Manages connections, session registration, and graceful shutdown
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weavesong/weavesong-go/internal/audio"
	"github.com/weavesong/weavesong-go/internal/material"
	"github.com/weavesong/weavesong-go/internal/protocol"
)

// Config holds gateway configuration.
type Config struct {
	Port int
	Name string

	// Material is the looped audio to stream (raw s16le PCM, MP3, or
	// FLAC). Empty streams the built-in test tone.
	Material string

	// Format is the stream format announced to every session.
	// Defaults to 48kHz stereo.
	Format audio.Format

	// ChunkLen is the duration of each emitted chunk. Defaults to one
	// second.
	ChunkLen time.Duration
}

func (c Config) withDefaults() Config {
	if c.Format.SampleRate <= 0 {
		c.Format.SampleRate = 48000
	}
	if c.Format.Channels <= 0 {
		c.Format.Channels = 2
	}
	if c.ChunkLen <= 0 {
		c.ChunkLen = time.Second
	}
	return c
}

// Server accepts WebSocket sessions and feeds each one an independent
// chunk stream.
type Server struct {
	config   Config
	serverID string

	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	sessions   map[string]*session
	sessionsMu sync.Mutex

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// New creates a gateway instance. Start runs it.
func New(config Config) *Server {
	s := &Server{
		config:   config.withDefaults(),
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// The gateway is a development tool on trusted networks.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*session),
		stopChan: make(chan struct{}),
	}
	s.mux.HandleFunc("/stream", s.handleWebSocket)
	return s
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the gateway until Stop is called or the listener fails.
func (s *Server) Start() error {
	log.Printf("Gateway starting: %s (ID: %s)", s.config.Name, s.serverID)
	if s.config.Material != "" {
		log.Printf("Streaming material from %s", s.config.Material)
	} else {
		log.Printf("Streaming built-in test tone")
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.mux}
	log.Printf("WebSocket gateway listening on %s", addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Gateway shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	s.closeSessions()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.wg.Wait()
	log.Printf("Gateway stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop signals Start to shut down.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// SessionCount reports the number of live sessions.
func (s *Server) SessionCount() int {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	return len(s.sessions)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()
	s.handleConnection(conn, r.RemoteAddr)
}

// handleConnection runs one session for the life of the connection.
func (s *Server) handleConnection(conn *websocket.Conn, remote string) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	source, err := material.Open(s.config.Material, s.config.Format)
	if err != nil {
		log.Printf("Failed to open material: %v", err)
		return
	}
	defer source.Close()

	sess := newSession(conn, source, s.config.Format, s.config.ChunkLen)
	s.addSession(sess)
	defer s.removeSession(sess)

	hello := protocol.ServerHello{
		ServerID:   s.serverID,
		Name:       s.config.Name,
		SampleRate: s.config.Format.SampleRate,
		Channels:   s.config.Format.Channels,
	}
	if err := sess.writeJSON("session/hello", hello); err != nil {
		log.Printf("Failed to send hello: %v", err)
		return
	}

	log.Printf("Session %s connected from %s", sess.id, remote)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sess.feed()
	}()
	defer sess.shutdown()

	sess.readLoop()
	log.Printf("Session %s disconnected", sess.id)
}

func (s *Server) addSession(sess *session) {
	s.sessionsMu.Lock()
	s.sessions[sess.id] = sess
	s.sessionsMu.Unlock()
}

func (s *Server) removeSession(sess *session) {
	s.sessionsMu.Lock()
	delete(s.sessions, sess.id)
	s.sessionsMu.Unlock()
}

// closeSessions drops every live connection so their handlers unwind.
func (s *Server) closeSessions() {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	for _, sess := range s.sessions {
		sess.conn.Close()
	}
}
