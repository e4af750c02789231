// Package audio holds the waveform plumbing behind spoken challenges:
// WAV decoding and encoding, channel layout changes, resampling, signal
// generation and mixing.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const MimeType = "audio/wav"

// OutputBitDepth is the sample width of encoded challenges.
const OutputBitDepth = 16

var (
	ErrNotWAV      = errors.New("audio: input is not a valid WAV file")
	ErrEmptyBuffer = errors.New("audio: buffer has no format")
	ErrBadFormat   = errors.New("audio: unsupported sample format")
)

// Decode parses a PCM WAV file into float samples in [-1, 1].
func Decode(data []byte) (*goaudio.FloatBuffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, ErrNotWAV
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotWAV, err)
	}

	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate < 1 {
		return nil, ErrEmptyBuffer
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: %d bits per sample", ErrBadFormat, bitDepth)
	}

	scale := math.Pow(2, float64(bitDepth-1))
	result := &goaudio.FloatBuffer{
		Format: &goaudio.Format{
			NumChannels: buf.Format.NumChannels,
			SampleRate:  buf.Format.SampleRate,
		},
		Data: make([]float64, len(buf.Data)),
	}

	for i, v := range buf.Data {
		if bitDepth == 8 {
			// 8-bit WAV samples are unsigned.
			v -= 128
		}
		result.Data[i] = float64(v) / scale
	}

	return result, nil
}

// Encode writes buf as a 16-bit PCM WAV file. Samples outside [-1, 1] are
// clipped.
func Encode(buf *goaudio.FloatBuffer) ([]byte, error) {
	if buf == nil || buf.Format == nil {
		return nil, ErrEmptyBuffer
	}

	const peak = 1<<(OutputBitDepth-1) - 1

	ib := &goaudio.IntBuffer{
		Format:         buf.Format,
		Data:           make([]int, len(buf.Data)),
		SourceBitDepth: OutputBitDepth,
	}
	for i, v := range buf.Data {
		ib.Data[i] = int(math.Round(clip(v) * peak))
	}

	ws := &seekBuffer{}
	enc := wav.NewEncoder(ws, buf.Format.SampleRate, OutputBitDepth, buf.Format.NumChannels, 1)
	if err := enc.Write(ib); err != nil {
		return nil, fmt.Errorf("audio: can't write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audio: can't finalize wav header: %w", err)
	}

	return ws.buf, nil
}

func clip(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	case math.IsNaN(v):
		return 0
	}
	return v
}

// seekBuffer is an in-memory io.WriteSeeker. The WAV encoder seeks back to
// patch chunk sizes once all samples are written.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if end := s.pos + len(p); end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	n := copy(s.buf[s.pos:], p)
	s.pos += n
	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(s.pos) + offset
	case io.SeekEnd:
		abs = int64(len(s.buf)) + offset
	default:
		return 0, fmt.Errorf("audio: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("audio: negative seek position %d", abs)
	}
	s.pos = int(abs)
	return abs, nil
}
