// ABOUTME: YAML configuration for the demo player
// ABOUTME: Covers audio output, replay material, and log routing
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete player configuration
type Config struct {
	Audio   AudioConfig   `yaml:"audio"`
	Gateway GatewayConfig `yaml:"gateway"`
	Replay  ReplayConfig  `yaml:"replay"`
	Logging LoggingConfig `yaml:"logging"`
}

// AudioConfig contains playback parameters
type AudioConfig struct {
	SampleRate int     `yaml:"sample_rate"`
	Channels   int     `yaml:"channels"`
	BufferTime float64 `yaml:"buffer_time"` // seconds of pre-roll
}

// GatewayConfig points the player at a remote stream
type GatewayConfig struct {
	URL string `yaml:"url"` // ws:// or wss://, empty replays local material
}

// ReplayConfig describes the material fed to the player
type ReplayConfig struct {
	File         string  `yaml:"file"`          // raw s16le PCM, empty for tone
	ChunkSeconds float64 `yaml:"chunk_seconds"` // length of each feed chunk
	StallEvery   float64 `yaml:"stall_every"`   // seconds, 0 disables stalls
	StallFor     float64 `yaml:"stall_for"`     // seconds
}

// LoggingConfig contains log routing configuration
type LoggingConfig struct {
	File string `yaml:"file"` // empty keeps logs on stderr
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 48000,
			Channels:   2,
			BufferTime: 2.0,
		},
		Replay: ReplayConfig{
			ChunkSeconds: 1.0,
		},
	}
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Replay.Validate(); err != nil {
		return fmt.Errorf("replay config: %w", err)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be between 8000 and 192000, got %d", a.SampleRate)
	}

	if a.Channels != 1 && a.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", a.Channels)
	}

	if a.BufferTime <= 0 || a.BufferTime > 30 {
		return fmt.Errorf("buffer_time must be between 0 and 30 seconds, got %f", a.BufferTime)
	}

	return nil
}

// Validate validates replay configuration
func (r *ReplayConfig) Validate() error {
	if r.ChunkSeconds <= 0 || r.ChunkSeconds > 10 {
		return fmt.Errorf("chunk_seconds must be between 0 and 10, got %f", r.ChunkSeconds)
	}

	if r.StallEvery < 0 || r.StallFor < 0 {
		return fmt.Errorf("stall timings cannot be negative")
	}

	if r.StallEvery > 0 && r.StallFor == 0 {
		return fmt.Errorf("stall_for must be set when stall_every is set")
	}

	return nil
}

// GetBufferTime returns the pre-roll as a time.Duration
func (a *AudioConfig) GetBufferTime() time.Duration {
	return time.Duration(a.BufferTime * float64(time.Second))
}

// GetChunkLen returns the feed chunk length as a time.Duration
func (r *ReplayConfig) GetChunkLen() time.Duration {
	return time.Duration(r.ChunkSeconds * float64(time.Second))
}

// GetStallEvery returns the stall interval as a time.Duration
func (r *ReplayConfig) GetStallEvery() time.Duration {
	return time.Duration(r.StallEvery * float64(time.Second))
}

// GetStallFor returns the stall length as a time.Duration
func (r *ReplayConfig) GetStallFor() time.Duration {
	return time.Duration(r.StallFor * float64(time.Second))
}
