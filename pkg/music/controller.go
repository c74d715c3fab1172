// ABOUTME: Session controller for live generated music
// ABOUTME: Owns the state machine, gain fades, and chunk routing
package music

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weavesong/weavesong-go/internal/audio"
	"github.com/weavesong/weavesong-go/internal/player"
	"github.com/weavesong/weavesong-go/pkg/musicgen"
)

// pendingFade marks a deferred pause or stop finalization.
type pendingFade int

const (
	fadeNone pendingFade = iota
	fadePause
	fadeStop
)

// Config wires a Controller.
type Config struct {
	// Connector opens generation sessions.
	Connector musicgen.Connector

	// Stage overrides the output stage. Defaults to an oto stage for
	// the stream format.
	Stage player.Stage

	// Format overrides the stream format. Defaults to 48kHz stereo.
	Format audio.Format

	// BufferTime overrides the pre-roll. Defaults to BufferTime.
	BufferTime time.Duration
}

// Controller turns a generation session into gapless audio and exposes
// a small transport surface. All methods are safe for concurrent use;
// nothing is shared between instances.
type Controller struct {
	mu sync.Mutex

	connector musicgen.Connector
	stage     player.Stage
	sched     *player.Scheduler
	format    audio.Format

	ctx    context.Context
	cancel context.CancelFunc

	session    musicgen.Session
	connecting bool
	episode    string
	state      State
	muted      bool
	connErr    bool
	fade       pendingFade
	prompts    []string
	corrupt    uint64

	listeners    map[int]func(MusicState)
	nextListener int
	notifying    bool
	queue        []MusicState
}

// New creates a Controller. The audio device is not touched until the
// first Play.
func New(cfg Config) *Controller {
	format := cfg.Format
	if format.SampleRate == 0 {
		format.SampleRate = SampleRate
	}
	if format.Channels == 0 {
		format.Channels = ChannelCount
	}
	bufferTime := cfg.BufferTime
	if bufferTime == 0 {
		bufferTime = BufferTime
	}
	stage := cfg.Stage
	if stage == nil {
		stage = player.NewOtoStage(format)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		connector: cfg.Connector,
		stage:     stage,
		format:    format,
		ctx:       ctx,
		cancel:    cancel,
		state:     Stopped,
		listeners: make(map[int]func(MusicState)),
	}
	c.sched = player.NewScheduler(stage, format, bufferTime, player.SchedulerCallbacks{
		Underrun:         c.underrunLocked,
		BufferingElapsed: c.bufferingElapsed,
	})
	return c
}

// Connect opens the generation session. It is idempotent: an existing
// session is kept and a dial already in flight is not repeated. A
// failed attempt records the connection error and leaves the
// controller stopped.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.session != nil || c.connecting {
		c.mu.Unlock()
		return nil
	}
	if c.connector == nil {
		c.mu.Unlock()
		return fmt.Errorf("no connector configured")
	}
	c.connecting = true
	c.mu.Unlock()

	session, err := c.connector.Connect(ctx, musicgen.Callbacks{
		OnChunk: c.handleChunk,
		OnError: c.handleSessionError,
		OnClose: c.handleSessionClose,
	})

	c.mu.Lock()
	c.connecting = false
	if err != nil {
		c.state = Stopped
		c.connErr = true
		c.broadcastLocked()
		c.mu.Unlock()
		c.deliver()
		return fmt.Errorf("connect failed: %w", err)
	}
	c.session = session
	c.connErr = false
	c.episode = uuid.New().String()
	episode := c.episode
	c.mu.Unlock()

	log.Printf("Session %s connected", episode)
	return nil
}

// Play starts or resumes playback. While loading, playing, or fading it
// is a no-op. With no usable session it clears the connection error and
// redials in the background instead; playback starts on the next Play
// once connected.
func (c *Controller) Play() {
	c.mu.Lock()
	if c.state == Loading || c.state == Playing || c.fade != fadeNone {
		c.mu.Unlock()
		return
	}
	if c.session == nil || c.connErr {
		c.connErr = false
		c.mu.Unlock()
		go func() {
			if err := c.Connect(c.ctx); err != nil {
				log.Printf("Reconnect failed: %v", err)
			}
		}()
		return
	}

	if err := c.stage.EnsureStarted(); err != nil {
		c.mu.Unlock()
		log.Printf("Failed to start audio output: %v", err)
		return
	}
	c.stage.SetGain(c.gainLocked())
	if err := c.session.Play(); err != nil {
		log.Printf("Session play failed: %v", err)
	}
	c.state = Loading
	c.broadcastLocked()
	c.mu.Unlock()
	c.deliver()
	log.Printf("Playback loading")
}

// Pause fades out over PauseFade and then pauses. The state flips once
// the fade completes; chunks arriving during the fade are dropped.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.state == Paused || c.state == Stopped || c.fade != fadeNone {
		c.mu.Unlock()
		return
	}
	if c.session != nil {
		if err := c.session.Pause(); err != nil {
			log.Printf("Session pause failed: %v", err)
		}
	}
	c.sched.Reset()
	c.stage.RampGain(0, PauseFade)
	c.fade = fadePause
	c.mu.Unlock()

	time.AfterFunc(PauseFade, c.finishPause)
	log.Printf("Pausing playback")
}

// finishPause finalizes a pause once the fade has run out. A stop that
// arrived during the fade wins.
func (c *Controller) finishPause() {
	c.mu.Lock()
	if c.fade != fadePause {
		c.mu.Unlock()
		return
	}
	c.fade = fadeNone
	c.state = Paused
	c.stage.FlushAndRebuild()
	c.stage.SetGain(c.gainLocked())
	c.broadcastLocked()
	c.mu.Unlock()
	c.deliver()
	log.Printf("Playback paused")
}

// Stop fades out, ends the session, and resets. A stop during a pause
// fade upgrades it. The session handle is dropped immediately; only the
// state flip waits for the fade.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == Stopped || c.fade == fadeStop {
		c.mu.Unlock()
		return
	}
	if c.session != nil {
		if err := c.session.Stop(); err != nil {
			log.Printf("Session stop failed: %v", err)
		}
		if err := c.session.Close(); err != nil {
			log.Printf("Session close failed: %v", err)
		}
		c.session = nil
	}
	c.sched.Reset()
	c.stage.RampGain(0, PauseFade)
	c.fade = fadeStop
	c.mu.Unlock()

	time.AfterFunc(PauseFade, c.finishStop)
	log.Printf("Stopping playback")
}

// finishStop finalizes a stop once the fade has run out.
func (c *Controller) finishStop() {
	c.mu.Lock()
	if c.fade != fadeStop {
		c.mu.Unlock()
		return
	}
	c.fade = fadeNone
	c.state = Stopped
	c.stage.FlushAndRebuild()
	c.stage.SetGain(c.gainLocked())
	c.broadcastLocked()
	c.mu.Unlock()
	c.deliver()
	log.Printf("Playback stopped")
}

// ToggleMute flips mute independently of playback state.
func (c *Controller) ToggleMute() {
	c.mu.Lock()
	c.muted = !c.muted
	muted := c.muted
	c.stage.RampGain(c.gainLocked(), MuteFade)
	c.broadcastLocked()
	c.mu.Unlock()
	c.deliver()
	log.Printf("Muted: %v", muted)
}

// SetPrompts replaces the steering prompts, all at weight 1. Without a
// usable session it is a silent no-op. A rejected update pauses
// playback defensively.
func (c *Controller) SetPrompts(prompts []string) error {
	c.mu.Lock()
	session := c.session
	if session == nil || c.connErr {
		c.mu.Unlock()
		return nil
	}
	c.prompts = append([]string(nil), prompts...)
	c.mu.Unlock()

	weighted := make([]musicgen.WeightedPrompt, 0, len(prompts))
	for _, text := range prompts {
		weighted = append(weighted, musicgen.WeightedPrompt{Text: text, Weight: 1.0})
	}

	if err := session.SetWeightedPrompts(weighted); err != nil {
		log.Printf("Prompt update rejected: %v", err)
		c.Pause()
		return fmt.Errorf("set prompts: %w", err)
	}
	return nil
}

// AddStateListener registers fn and immediately replays the current
// snapshot to it. The returned token removes the listener.
func (c *Controller) AddStateListener(fn func(MusicState)) int {
	c.mu.Lock()
	c.nextListener++
	token := c.nextListener
	c.listeners[token] = fn
	snap := MusicState{PlaybackState: c.state, IsMuted: c.muted}
	c.mu.Unlock()

	fn(snap)
	return token
}

// RemoveStateListener drops the listener registered under token.
func (c *Controller) RemoveStateListener(token int) {
	c.mu.Lock()
	delete(c.listeners, token)
	c.mu.Unlock()
}

// IsMuted reports the current mute flag.
func (c *Controller) IsMuted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// Status returns a point-in-time view of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.sched.Stats()
	return Status{
		State:     c.state,
		Muted:     c.muted,
		Connected: c.session != nil,
		Episode:   c.episode,
		Prompts:   append([]string(nil), c.prompts...),
		Scheduled: stats.Scheduled,
		Underruns: stats.Underruns,
		Corrupt:   c.corrupt,
		Lead:      c.sched.Lead(),
	}
}

// Close stops playback, ends any session, and releases the audio
// device. The controller is not reusable afterwards.
func (c *Controller) Close() error {
	c.Stop()

	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()
	if session != nil {
		if err := session.Close(); err != nil {
			log.Printf("Session close failed: %v", err)
		}
	}

	c.cancel()
	return c.stage.Close()
}

// handleChunk decodes and schedules one chunk from the session. Chunks
// are dropped unless the controller is loading or playing with no fade
// pending.
func (c *Controller) handleChunk(chunk musicgen.Chunk) {
	c.mu.Lock()
	if (c.state != Loading && c.state != Playing) || c.fade != fadeNone {
		c.mu.Unlock()
		return
	}

	buf, err := audio.DecodeChunk(chunk.Audio, c.format)
	if err != nil {
		c.corrupt++
		c.mu.Unlock()
		log.Printf("Corrupt chunk dropped: %v", err)
		return
	}

	c.sched.Schedule(buf)
	c.mu.Unlock()
	c.deliver()
}

// handleSessionError reacts to a transport failure: the session handle
// is unusable, so drop it, remember the error, and stop.
func (c *Controller) handleSessionError(err error) {
	log.Printf("Session error: %v", err)
	c.dropSession()
}

// handleSessionClose reacts to the session ending from the far side.
func (c *Controller) handleSessionClose() {
	log.Printf("Session closed")
	c.dropSession()
}

// dropSession forgets the current session, releases its transport, and
// stops playback. The next Play redials.
func (c *Controller) dropSession() {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.connErr = true
	c.mu.Unlock()

	if session != nil {
		_ = session.Close()
	}
	c.Stop()
}

// underrunLocked drops playing back to loading. The scheduler invokes
// it inside Schedule, so the controller lock is already held by
// handleChunk.
func (c *Controller) underrunLocked() {
	if c.state == Playing {
		c.state = Loading
		c.broadcastLocked()
	}
}

// bufferingElapsed promotes loading to playing once the pre-roll has
// run out. The scheduler filters stale timers; the state is checked
// again here.
func (c *Controller) bufferingElapsed() {
	c.mu.Lock()
	promoted := c.state == Loading && c.fade == fadeNone
	if promoted {
		c.state = Playing
		c.broadcastLocked()
	}
	c.mu.Unlock()

	if promoted {
		log.Printf("Playback started")
	}
	c.deliver()
}

// gainLocked returns the gain for the current mute state.
func (c *Controller) gainLocked() float64 {
	if c.muted {
		return 0
	}
	return 1
}

// broadcastLocked queues the current snapshot for delivery. The caller
// must hold mu and call deliver after unlocking.
func (c *Controller) broadcastLocked() {
	c.queue = append(c.queue, MusicState{PlaybackState: c.state, IsMuted: c.muted})
}

// deliver drains queued snapshots to listeners in order. Reentrant
// calls return immediately; the outermost call delivers everything, so
// listeners may call back into the controller.
func (c *Controller) deliver() {
	c.mu.Lock()
	if c.notifying {
		c.mu.Unlock()
		return
	}
	c.notifying = true
	for len(c.queue) > 0 {
		snap := c.queue[0]
		c.queue = c.queue[1:]
		fns := make([]func(MusicState), 0, len(c.listeners))
		for _, fn := range c.listeners {
			fns = append(fns, fn)
		}
		c.mu.Unlock()
		for _, fn := range fns {
			fn(snap)
		}
		c.mu.Lock()
	}
	c.notifying = false
	c.mu.Unlock()
}
