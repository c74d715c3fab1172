// ABOUTME: File-backed music generation session for offline playback
// ABOUTME: Feeds base64 PCM chunks on a real-time ticker with optional stalls
package replay

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/weavesong/weavesong-go/internal/audio"
	"github.com/weavesong/weavesong-go/internal/material"
	"github.com/weavesong/weavesong-go/pkg/musicgen"
)

// Options configure a replay connector.
type Options struct {
	// Path names the material file (raw s16le PCM, MP3, or FLAC).
	// Empty selects the built-in tone.
	Path string

	// Format is the PCM layout of the material. Defaults to 48kHz stereo.
	Format audio.Format

	// ChunkLen is the duration of each emitted chunk. Defaults to one second.
	ChunkLen time.Duration

	// StallEvery injects a feed stall at this interval. Zero disables.
	StallEvery time.Duration

	// StallFor is the length of each injected stall.
	StallFor time.Duration
}

func (o Options) withDefaults() Options {
	if o.Format.SampleRate <= 0 {
		o.Format.SampleRate = 48000
	}
	if o.Format.Channels <= 0 {
		o.Format.Channels = 2
	}
	if o.ChunkLen <= 0 {
		o.ChunkLen = time.Second
	}
	return o
}

// Connector opens replay sessions. Each Connect reads the material from
// the beginning.
type Connector struct {
	opts Options
}

// NewConnector creates a connector for the given options.
func NewConnector(opts Options) *Connector {
	return &Connector{opts: opts.withDefaults()}
}

// Connect opens the source and starts the feed goroutine. The session
// emits nothing until Play is called.
func (c *Connector) Connect(ctx context.Context, cb musicgen.Callbacks) (musicgen.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := material.Open(c.opts.Path, c.opts.Format)
	if err != nil {
		return nil, err
	}

	s := &session{
		opts:       c.opts,
		cb:         cb,
		source:     src,
		chunkBytes: c.opts.Format.FramesFor(c.opts.ChunkLen) * c.opts.Format.BytesPerFrame(),
		stopChan:   make(chan struct{}),
		kick:       make(chan struct{}, 1),
	}
	go s.run()
	return s, nil
}

// session streams a PCM source as timed chunks through the callbacks.
type session struct {
	opts       Options
	cb         musicgen.Callbacks
	chunkBytes int

	mu         sync.Mutex
	source     material.Source
	playing    bool
	closed     bool
	prompts    []musicgen.WeightedPrompt
	nextStall  time.Time
	stallUntil time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	kick     chan struct{}
}

func (s *session) run() {
	ticker := time.NewTicker(s.opts.ChunkLen)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.emit()
		case <-s.kick:
			s.emit()
		case <-s.stopChan:
			return
		}
	}
}

// emit sends one chunk if the session is playing and not inside a stall.
func (s *session) emit() {
	s.mu.Lock()
	if !s.playing || s.closed {
		s.mu.Unlock()
		return
	}

	now := time.Now()
	if now.Before(s.stallUntil) {
		s.mu.Unlock()
		return
	}
	if s.opts.StallEvery > 0 && now.After(s.nextStall) {
		s.stallUntil = now.Add(s.opts.StallFor)
		s.nextStall = s.stallUntil.Add(s.opts.StallEvery)
		log.Printf("Injecting feed stall for %v", s.opts.StallFor)
		s.mu.Unlock()
		return
	}

	buf := make([]byte, s.chunkBytes)
	n, err := s.source.ReadPCM(buf)
	if err != nil {
		s.playing = false
		s.mu.Unlock()
		log.Printf("Replay source failed: %v", err)
		if s.cb.OnError != nil {
			s.cb.OnError(fmt.Errorf("read chunk: %w", err))
		}
		return
	}
	s.mu.Unlock()

	if s.cb.OnChunk != nil {
		s.cb.OnChunk(musicgen.Chunk{Audio: base64.StdEncoding.EncodeToString(buf[:n])})
	}
}

// Play starts emission. The first chunk goes out immediately, later ones
// on the chunk ticker.
func (s *session) Play() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("session closed")
	}
	if s.playing {
		s.mu.Unlock()
		return nil
	}
	s.playing = true
	if s.opts.StallEvery > 0 {
		s.nextStall = time.Now().Add(s.opts.StallEvery)
		s.stallUntil = time.Time{}
	}
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
	return nil
}

// Pause halts emission but keeps the stream position.
func (s *session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session closed")
	}
	s.playing = false
	return nil
}

// Stop halts emission and rewinds to the start of the material.
func (s *session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session closed")
	}
	s.playing = false
	return s.source.Rewind()
}

// SetWeightedPrompts records the prompts. Replay audio is fixed, so the
// prompts only steer the log.
func (s *session) SetWeightedPrompts(prompts []musicgen.WeightedPrompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session closed")
	}
	s.prompts = append([]musicgen.WeightedPrompt(nil), prompts...)

	texts := make([]string, len(prompts))
	for i, p := range prompts {
		texts[i] = fmt.Sprintf("%s (%.1f)", p.Text, p.Weight)
	}
	log.Printf("Replay prompts set: %s", strings.Join(texts, ", "))
	return nil
}

// Close ends the feed and releases the source. It does not invoke the
// OnClose callback; that reports service-initiated shutdown only.
func (s *session) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	src := s.source
	s.mu.Unlock()

	return src.Close()
}
