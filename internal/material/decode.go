// ABOUTME: MP3 and FLAC material decoders producing s16le frames
// ABOUTME: Both loop at EOF by reseeking the file and recreating the decoder
package material

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// mp3Source decodes an MP3 file. The decoder always emits stereo s16le
// at the file's native rate; mono output averages the pair.
type mp3Source struct {
	file       *os.File
	decoder    *mp3.Decoder
	sampleRate int
	channels   int
}

func newMP3Source(path string, channels int) (*mp3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	log.Printf("Loaded MP3: %s (%d Hz)", filepath.Base(path), decoder.SampleRate())

	return &mp3Source{
		file:       f,
		decoder:    decoder,
		sampleRate: decoder.SampleRate(),
		channels:   channels,
	}, nil
}

func (s *mp3Source) ReadPCM(p []byte) (int, error) {
	if s.channels == 2 {
		return s.fill(p)
	}

	raw := make([]byte, len(p)*2)
	if _, err := s.fill(raw); err != nil {
		return 0, err
	}
	downmixStereo(p, raw)
	return len(p), nil
}

// fill reads stereo s16le from the decoder, restarting at EOF.
func (s *mp3Source) fill(p []byte) (int, error) {
	filled := 0
	for filled < len(p) {
		n, err := s.decoder.Read(p[filled:])
		filled += n
		if err == io.EOF {
			if err := s.Rewind(); err != nil {
				return filled, err
			}
			continue
		}
		if err != nil {
			return filled, fmt.Errorf("failed to read MP3: %w", err)
		}
	}
	return filled, nil
}

func (s *mp3Source) Rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	decoder, err := mp3.NewDecoder(s.file)
	if err != nil {
		return fmt.Errorf("failed to recreate decoder: %w", err)
	}
	s.decoder = decoder
	return nil
}

func (s *mp3Source) Close() error {
	return s.file.Close()
}

// downmixStereo averages s16le stereo pairs in src into mono dst.
func downmixStereo(dst, src []byte) {
	in := toSamples(src)
	out := make([]int16, len(in)/2)
	for i := range out {
		out[i] = int16((int32(in[i*2]) + int32(in[i*2+1])) / 2)
	}
	putSamples(dst, out)
}

// flacSource decodes a FLAC file. Samples are normalized to 16 bits and
// mapped onto the stream channel count.
type flacSource struct {
	file        *os.File
	stream      *flac.Stream
	sampleRate  int
	bitDepth    int
	srcChannels int
	channels    int
	pending     []int16
}

func newFLACSource(path string, channels int) (*flacSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	if info.NChannels != 1 && info.NChannels != 2 {
		f.Close()
		return nil, fmt.Errorf("unsupported FLAC channel count: %d", info.NChannels)
	}

	log.Printf("Loaded FLAC: %s (%d Hz, %d channels, %d bit)",
		filepath.Base(path), info.SampleRate, info.NChannels, info.BitsPerSample)

	return &flacSource{
		file:        f,
		stream:      stream,
		sampleRate:  int(info.SampleRate),
		bitDepth:    int(info.BitsPerSample),
		srcChannels: int(info.NChannels),
		channels:    channels,
	}, nil
}

func (s *flacSource) ReadPCM(p []byte) (int, error) {
	want := len(p) / 2
	for len(s.pending) < want {
		if err := s.decodeFrame(); err != nil {
			return 0, err
		}
	}
	putSamples(p, s.pending[:want])
	s.pending = append(s.pending[:0], s.pending[want:]...)
	return len(p), nil
}

// decodeFrame parses the next FLAC frame into pending, restarting from
// the top of the file at EOF.
func (s *flacSource) decodeFrame() error {
	frame, err := s.stream.ParseNext()
	if err == io.EOF {
		if err := s.reopen(); err != nil {
			return err
		}
		frame, err = s.stream.ParseNext()
	}
	if err != nil {
		return fmt.Errorf("failed to parse FLAC frame: %w", err)
	}

	for i := 0; i < int(frame.BlockSize); i++ {
		switch {
		case s.srcChannels == s.channels:
			for ch := 0; ch < s.srcChannels; ch++ {
				s.pending = append(s.pending, s.sample16(frame.Subframes[ch].Samples[i]))
			}
		case s.srcChannels == 1:
			v := s.sample16(frame.Subframes[0].Samples[i])
			for ch := 0; ch < s.channels; ch++ {
				s.pending = append(s.pending, v)
			}
		default:
			l := int32(s.sample16(frame.Subframes[0].Samples[i]))
			r := int32(s.sample16(frame.Subframes[1].Samples[i]))
			s.pending = append(s.pending, int16((l+r)/2))
		}
	}
	return nil
}

// sample16 scales a decoded sample from the file's bit depth to 16 bits.
func (s *flacSource) sample16(v int32) int16 {
	shift := s.bitDepth - 16
	if shift > 0 {
		return int16(v >> shift)
	}
	return int16(v << -shift)
}

func (s *flacSource) reopen() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	stream, err := flac.New(s.file)
	if err != nil {
		return fmt.Errorf("failed to recreate stream: %w", err)
	}
	s.stream = stream
	return nil
}

func (s *flacSource) Rewind() error {
	if err := s.reopen(); err != nil {
		return err
	}
	s.pending = s.pending[:0]
	return nil
}

func (s *flacSource) Close() error {
	return s.file.Close()
}
