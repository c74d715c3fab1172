// ABOUTME: Chunk decoder for the generation stream
// ABOUTME: Converts base64 s16le payloads into normalized float32 buffers
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// DecodeBase64 decodes a base64-encoded chunk payload
func DecodeBase64(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return data, nil
}

// PCM16ToBuffer deinterleaves s16le bytes into per-channel float32 samples.
// Samples are normalized to [-1, 1) by dividing by 32768. A trailing
// partial frame is dropped.
func PCM16ToBuffer(data []byte, f Format) Buffer {
	frames := 0
	if f.Channels > 0 {
		frames = len(data) / f.BytesPerFrame()
	}

	channels := make([][]float32, f.Channels)
	for ch := range channels {
		channels[ch] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		for ch := 0; ch < f.Channels; ch++ {
			off := (i*f.Channels + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(data[off:]))
			channels[ch][i] = float32(sample) / 32768.0
		}
	}

	return Buffer{Channels: channels}
}

// DecodeChunk decodes one base64 chunk into a planar buffer
func DecodeChunk(encoded string, f Format) (Buffer, error) {
	data, err := DecodeBase64(encoded)
	if err != nil {
		return Buffer{}, err
	}
	return PCM16ToBuffer(data, f), nil
}
