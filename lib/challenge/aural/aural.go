// Package aural renders challenges as spoken characters over a noise bed.
package aural

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/MelihcanSimsek/CaptchaGenerator/lib/audio"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/audio/speech"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/challenge"
)

var (
	ErrBadConfig          = errors.New("aural: configuration is invalid")
	ErrUnknownSynthesizer = errors.New("aural: unknown synthesizer")
)

func init() {
	challenge.Register("aural", Factory{})
}

// Config is the audio section of the configuration file. Durations are Go
// duration strings such as "3s".
type Config struct {
	Synthesizer string `json:"synthesizer,omitempty"` // "espeak" or "tone"
	Binary      string `json:"binary,omitempty"`
	Voice       string `json:"voice,omitempty"`
	Rate        int    `json:"rate,omitempty"`
	SampleRate  int    `json:"sample_rate,omitempty"`
	Channels    int    `json:"channels,omitempty"`
	Noise       string `json:"noise,omitempty"`

	// Gain is the noise amplitude. Unset keeps the default; 0 mutes the noise.
	Gain *float64 `json:"gain,omitempty"`

	Frequency    float64 `json:"frequency,omitempty"`
	FrequencyEnd float64 `json:"frequency_end,omitempty"`
	SweepLength  string  `json:"sweep_length,omitempty"`
	Duration     string  `json:"duration,omitempty"`
}

// Mixer returns the noise mixer described by c, starting from
// audio.DefaultNoiseMixer for every unset field.
func (c Config) Mixer() (audio.NoiseMixer, error) {
	var errs []error

	m := audio.DefaultNoiseMixer()
	if c.SampleRate != 0 {
		m.SampleRate = c.SampleRate
	}
	if c.Channels != 0 {
		m.Channels = c.Channels
	}
	if c.Noise != "" {
		m.Noise.Kind = audio.Kind(c.Noise)
	}
	if c.Gain != nil {
		m.Noise.Gain = *c.Gain
	}
	if c.Frequency != 0 {
		m.Noise.Frequency = c.Frequency
	}
	if c.FrequencyEnd != 0 {
		m.Noise.FrequencyEnd = c.FrequencyEnd
	}
	if c.SweepLength != "" {
		d, err := time.ParseDuration(c.SweepLength)
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep_length: %w", err))
		}
		m.Noise.SweepLength = d
	}
	if c.Duration != "" {
		d, err := time.ParseDuration(c.Duration)
		if err != nil {
			errs = append(errs, fmt.Errorf("duration: %w", err))
		}
		m.Duration = d
	}

	if err := m.Valid(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) != 0 {
		return audio.NoiseMixer{}, fmt.Errorf("%w: %w", ErrBadConfig, errors.Join(errs...))
	}

	return m, nil
}

// Synth returns the speech synthesizer named by c.
func (c Config) Synth() (speech.Synthesizer, error) {
	switch c.Synthesizer {
	case "", "espeak":
		return speech.ESpeak{Binary: c.Binary, Voice: c.Voice, Rate: c.Rate}, nil
	case "tone":
		return speech.ToneSynthesizer{}, nil
	default:
		return nil, fmt.Errorf("%w: %q, wanted espeak or tone", ErrUnknownSynthesizer, c.Synthesizer)
	}
}

type Factory struct{}

func (Factory) Build(_ context.Context, data json.RawMessage) (challenge.Renderer, error) {
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}

	synth, err := cfg.Synth()
	if err != nil {
		return nil, err
	}

	mixer, err := cfg.Mixer()
	if err != nil {
		return nil, err
	}

	return &Renderer{
		Speech: &speech.Renderer{Synthesizer: synth},
		Mixer:  mixer,
	}, nil
}

func (Factory) Valid(data json.RawMessage) error {
	cfg, err := parse(data)
	if err != nil {
		return err
	}

	var errs []error
	if _, err := cfg.Synth(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cfg.Mixer(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

func parse(data json.RawMessage) (Config, error) {
	var cfg Config
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrBadConfig, err)
	}

	return cfg, nil
}

// Renderer speaks challenge text and mixes it with noise into a WAV file.
type Renderer struct {
	Speech *speech.Renderer
	Mixer  audio.NoiseMixer
}

func (r *Renderer) Render(ctx context.Context, rng *rand.Rand, text string) (*challenge.Media, error) {
	voice, err := r.Speech.Speak(ctx, text)
	if err != nil {
		return nil, err
	}

	data, err := r.Mixer.Render(rng, voice)
	if err != nil {
		return nil, err
	}

	return &challenge.Media{Data: data, MimeType: audio.MimeType}, nil
}
