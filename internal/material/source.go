// ABOUTME: Audio material sources, file backed or generated
// ABOUTME: Every source supplies s16le frames at the stream format and loops at EOF
package material

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/weavesong/weavesong-go/internal/audio"
)

// Source supplies raw little-endian 16-bit interleaved PCM.
type Source interface {
	// ReadPCM fills p completely, looping at the end of the material.
	ReadPCM(p []byte) (int, error)
	// Rewind returns the source to the start of the material.
	Rewind() error
	// Close releases the source.
	Close() error
}

// Open creates a source for path at the given stream format. An empty
// path selects the built-in tone. MP3 and FLAC files are decoded and
// resampled to the stream rate when needed; anything else is treated as
// raw s16le already in the stream format.
func Open(path string, format audio.Format) (Source, error) {
	if path == "" {
		return newToneSource(format), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("audio file not found: %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		src, err := newMP3Source(path, format.Channels)
		if err != nil {
			return nil, err
		}
		return adaptRate(src, src.sampleRate, format), nil
	case ".flac":
		src, err := newFLACSource(path, format.Channels)
		if err != nil {
			return nil, err
		}
		return adaptRate(src, src.sampleRate, format), nil
	default:
		return newFileSource(path, format)
	}
}

// adaptRate wraps a decoded source in a resampler when its native rate
// differs from the stream rate.
func adaptRate(src Source, nativeRate int, format audio.Format) Source {
	if nativeRate == format.SampleRate {
		return src
	}
	log.Printf("Resampling material from %d Hz to %d Hz", nativeRate, format.SampleRate)
	return newResampledSource(src, nativeRate, format)
}

// fileSource reads raw s16le PCM from a file. A trailing partial frame
// is ignored so looping never shifts the channel interleave.
type fileSource struct {
	file   *os.File
	usable int64
	pos    int64
}

func newFileSource(path string, format audio.Format) (*fileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat audio file: %w", err)
	}

	frameBytes := int64(format.BytesPerFrame())
	usable := info.Size() - info.Size()%frameBytes
	if usable == 0 {
		f.Close()
		return nil, fmt.Errorf("audio file too short: %s", path)
	}

	frames := usable / frameBytes
	log.Printf("Loaded PCM: %s (%.1fs at %d Hz)", filepath.Base(path),
		float64(frames)/float64(format.SampleRate), format.SampleRate)

	return &fileSource{file: f, usable: usable}, nil
}

func (s *fileSource) ReadPCM(p []byte) (int, error) {
	filled := 0
	for filled < len(p) {
		remain := s.usable - s.pos
		if remain == 0 {
			if err := s.Rewind(); err != nil {
				return filled, err
			}
			remain = s.usable
		}
		want := int64(len(p) - filled)
		if want > remain {
			want = remain
		}
		n, err := io.ReadFull(s.file, p[filled:filled+int(want)])
		filled += n
		s.pos += int64(n)
		if err != nil {
			return filled, fmt.Errorf("failed to read audio file: %w", err)
		}
	}
	return filled, nil
}

func (s *fileSource) Rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	s.pos = 0
	return nil
}

func (s *fileSource) Close() error {
	return s.file.Close()
}

// putSamples writes interleaved s16 values into p as little-endian bytes.
func putSamples(p []byte, samples []int16) {
	for i, v := range samples {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(v))
	}
}

// toSamples reads little-endian bytes as interleaved s16 values.
func toSamples(raw []byte) []int16 {
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return out
}
