// Package speech turns challenge text into a spoken-word waveform.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MelihcanSimsek/CaptchaGenerator/lib/audio"
	goaudio "github.com/go-audio/audio"
)

var (
	ErrEmptyText       = errors.New("speech: nothing to say")
	ErrSynthesisFailed = errors.New("speech: synthesis failed")
)

// Synthesizer converts text to a WAV file.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Renderer speaks challenge text one character at a time.
type Renderer struct {
	Synthesizer Synthesizer
}

// Space separates every character of text with a space so that synthesizers
// spell it out instead of reading it as a word.
func Space(text string) string {
	runes := []rune(text)
	parts := make([]string, len(runes))
	for i, r := range runes {
		parts[i] = string(r)
	}
	return strings.Join(parts, " ")
}

// Speak synthesizes text and decodes the result into float samples.
func (r *Renderer) Speak(ctx context.Context, text string) (*goaudio.FloatBuffer, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	data, err := r.Synthesizer.Synthesize(ctx, Space(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}

	buf, err := audio.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}

	return buf, nil
}

// ESpeak synthesizes speech by running the espeak-ng command line tool.
type ESpeak struct {
	Binary string // defaults to "espeak-ng"
	Voice  string // espeak voice name, e.g. "en+f3"
	Rate   int    // words per minute
}

func (e ESpeak) args(output, text string) []string {
	voice := e.Voice
	if voice == "" {
		voice = "en+f3"
	}
	rate := e.Rate
	if rate == 0 {
		rate = 130
	}

	return []string{"-w", output, "-v", voice, "-s", strconv.Itoa(rate), text}
}

func (e ESpeak) Synthesize(ctx context.Context, text string) ([]byte, error) {
	bin := e.Binary
	if bin == "" {
		bin = "espeak-ng"
	}

	// espeak-ng only patches the RIFF chunk sizes when writing to a file.
	dir, err := os.MkdirTemp("", "captcha-speech-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	output := filepath.Join(dir, "speech.wav")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, e.args(output, text)...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", bin, err, strings.TrimSpace(stderr.String()))
	}

	return os.ReadFile(output)
}
