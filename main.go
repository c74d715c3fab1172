// ABOUTME: Entry point for the Weavesong demo player
// ABOUTME: Wires the replay feed, playback controller, and TUI together
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/weavesong/weavesong-go/internal/audio"
	"github.com/weavesong/weavesong-go/internal/client"
	"github.com/weavesong/weavesong-go/internal/config"
	"github.com/weavesong/weavesong-go/internal/replay"
	"github.com/weavesong/weavesong-go/internal/ui"
	"github.com/weavesong/weavesong-go/internal/version"
	"github.com/weavesong/weavesong-go/pkg/music"
	"github.com/weavesong/weavesong-go/pkg/musicgen"
)

var (
	configPath  = flag.String("config", "", "Config file path (YAML)")
	serverURL   = flag.String("server", "", "Gateway WebSocket URL (ws://host:port/stream). If not specified, replays local material")
	replayFile  = flag.String("file", "", "Material file to replay (raw s16le PCM, MP3, FLAC; default: built-in tone)")
	logFile     = flag.String("log-file", "", "Log file path (default: weavesong-player.log)")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	streamLogs  = flag.Bool("stream-logs", false, "Alias for -no-tui")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// promptPresets are the steering prompts the n key cycles through.
var promptPresets = [][]string{
	{"ambient drone"},
	{"warm analog synth, slow build"},
	{"minimal piano, rain on glass"},
	{"deep bass pulse, night drive"},
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	// CLI flags override the config file.
	material := *replayFile
	if material == "" {
		material = cfg.Replay.File
	}
	logPath := *logFile
	if logPath == "" {
		logPath = cfg.Logging.File
	}
	if logPath == "" {
		logPath = "weavesong-player.log"
	}

	useTUI := !(*noTUI || *streamLogs)

	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file so the screen stays clean
		log.SetOutput(f)
	} else {
		multiWriter := io.MultiWriter(os.Stdout, f)
		log.SetOutput(multiWriter)
	}

	log.Printf("Starting %s %s", version.Product, version.Version)

	format := audio.Format{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
	}

	gatewayURL := *serverURL
	if gatewayURL == "" {
		gatewayURL = cfg.Gateway.URL
	}

	var connector musicgen.Connector
	if gatewayURL != "" {
		connector = client.NewConnector(client.Config{
			URL:    gatewayURL,
			Format: format,
		})
	} else {
		connector = replay.NewConnector(replay.Options{
			Path:       material,
			Format:     format,
			ChunkLen:   cfg.Replay.GetChunkLen(),
			StallEvery: cfg.Replay.GetStallEvery(),
			StallFor:   cfg.Replay.GetStallFor(),
		})
	}

	ctrl := music.New(music.Config{
		Connector:  connector,
		Format:     format,
		BufferTime: cfg.Audio.GetBufferTime(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = ctrl.Connect(ctx)
	cancel()
	if err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	if err := ctrl.SetPrompts(promptPresets[0]); err != nil {
		log.Printf("Initial prompt update failed: %v", err)
	}

	// TUI setup
	var tuiProg *tea.Program
	controls := ui.NewControls()
	tuiDone := make(chan struct{})

	if useTUI {
		tuiProg, err = ui.Run(controls)
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI failed: %v", err)
			}
			close(tuiDone)
		}()
	}

	updateTUI := func(msg ui.StatusMsg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	// Push state flips to the TUI as they happen; the ticker below fills
	// in counters.
	ctrl.AddStateListener(func(s music.MusicState) {
		muted := s.IsMuted
		updateTUI(ui.StatusMsg{State: s.PlaybackState.String(), Muted: &muted})
	})

	done := make(chan struct{})
	if useTUI {
		go handleControls(ctrl, controls, done)
		go statusUpdateLoop(ctrl, cfg.Audio.GetBufferTime(), updateTUI, done)
	} else {
		// Without keys there is nothing to wait for; start playing.
		log.Printf("TUI disabled - playback starts immediately")
		ctrl.Play()
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if useTUI {
		select {
		case <-tuiDone:
			log.Printf("TUI exited")
		case <-sigChan:
			log.Printf("Shutdown signal received")
			tuiProg.Quit()
			<-tuiDone
		}
	} else {
		<-sigChan
		log.Printf("Shutdown signal received")
	}
	close(done)

	if err := ctrl.Close(); err != nil {
		log.Printf("Error closing player: %v", err)
	}

	log.Printf("Player stopped")
}

// handleControls executes key requests coming out of the TUI.
func handleControls(ctrl *music.Controller, controls *ui.Controls, done <-chan struct{}) {
	preset := 0

	for {
		select {
		case req := <-controls.Requests:
			switch req {
			case ui.RequestToggle:
				switch ctrl.Status().State {
				case music.Playing, music.Loading:
					ctrl.Pause()
				default:
					ctrl.Play()
				}
			case ui.RequestStop:
				ctrl.Stop()
			case ui.RequestMute:
				ctrl.ToggleMute()
			case ui.RequestNextPrompt:
				preset = (preset + 1) % len(promptPresets)
				if err := ctrl.SetPrompts(promptPresets[preset]); err != nil {
					log.Printf("Prompt change failed: %v", err)
				}
			}
		case <-done:
			return
		}
	}
}

// statusUpdateLoop periodically updates the TUI with playback statistics.
func statusUpdateLoop(ctrl *music.Controller, bufferTime time.Duration, updateTUI func(ui.StatusMsg), done <-chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			st := ctrl.Status()
			connected := st.Connected
			muted := st.Muted
			updateTUI(ui.StatusMsg{
				Connected: &connected,
				State:     st.State.String(),
				Muted:     &muted,
				Episode:   st.Episode,
				Prompt:    strings.Join(st.Prompts, ", "),
				Scheduled: st.Scheduled,
				Underruns: st.Underruns,
				Corrupt:   st.Corrupt,
				Lead:      st.Lead,
				LeadScale: bufferTime,
			})
		case <-done:
			return
		}
	}
}
