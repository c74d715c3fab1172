// ABOUTME: Entry point for the development gateway
// ABOUTME: Parses CLI flags and serves looped material over WebSocket
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/weavesong/weavesong-go/internal/audio"
	"github.com/weavesong/weavesong-go/internal/server"
	"github.com/weavesong/weavesong-go/pkg/music"
)

var (
	port     = flag.Int("port", 8937, "WebSocket gateway port")
	name     = flag.String("name", "", "Gateway friendly name (default: hostname-weavesong-gateway)")
	logFile  = flag.String("log-file", "weavesong-gateway.log", "Log file path")
	material = flag.String("file", "", "Material file to stream (raw s16le PCM, MP3, FLAC). If not specified, streams a test tone")
	chunkLen = flag.Duration("chunk", time.Second, "Audio chunk length")
)

func main() {
	flag.Parse()

	// Log to both file and stdout
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, f))

	gatewayName := *name
	if gatewayName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		gatewayName = fmt.Sprintf("%s-weavesong-gateway", hostname)
	}

	log.Printf("Starting gateway: %s on port %d", gatewayName, *port)
	log.Printf("Logging to: %s", *logFile)
	log.Printf("Press Ctrl-C to stop")

	srv := server.New(server.Config{
		Port:     *port,
		Name:     gatewayName,
		Material: *material,
		Format:   audio.Format{SampleRate: music.SampleRate, Channels: music.ChannelCount},
		ChunkLen: *chunkLen,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Gateway error: %v", err)
	}

	log.Printf("Gateway stopped")
}
