package audio

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	captcha "github.com/MelihcanSimsek/CaptchaGenerator"
	goaudio "github.com/go-audio/audio"
)

// NoiseMixer lays a generated noise bed under spoken challenge audio so that
// the words can't be lifted out with a clean speech-to-text pass.
type NoiseMixer struct {
	SampleRate int
	Channels   int
	Noise      Generator
	Duration   time.Duration
}

// DefaultNoiseMixer returns the stock configuration: three seconds of pink
// noise at a tenth of full scale, mixed into 44.1 kHz stereo.
func DefaultNoiseMixer() NoiseMixer {
	return NoiseMixer{
		SampleRate: captcha.DefaultSampleRate,
		Channels:   captcha.DefaultChannels,
		Noise: Generator{
			Kind:      Pink,
			Gain:      0.1,
			Frequency: 1000,
		},
		Duration: 3 * time.Second,
	}
}

func (m NoiseMixer) Valid() error {
	var errs []error

	if m.SampleRate < 1 {
		errs = append(errs, fmt.Errorf("%w: sample rate %d", ErrBadFormat, m.SampleRate))
	}
	if m.Channels < 1 {
		errs = append(errs, fmt.Errorf("%w: %d channels", ErrBadFormat, m.Channels))
	}
	if m.Duration < 0 {
		errs = append(errs, fmt.Errorf("%w: negative noise duration %s", ErrBadFormat, m.Duration))
	}
	if err := m.generator().Valid(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

func (m NoiseMixer) generator() Generator {
	g := m.Noise
	g.SampleRate = m.SampleRate
	g.Channels = m.Channels
	return g
}

// Mix conforms speech to the mixer's rate and layout and adds the noise bed
// to it. The result lasts as long as the longer of the two.
func (m NoiseMixer) Mix(rng *rand.Rand, speech *goaudio.FloatBuffer) (*goaudio.FloatBuffer, error) {
	noise, err := m.generator().Generate(rng, m.Duration)
	if err != nil {
		return nil, err
	}

	voice, err := Conform(speech, m.SampleRate, m.Channels)
	if err != nil {
		return nil, err
	}

	return Sum(voice, noise)
}

// Render mixes speech with noise and encodes the result as WAV.
func (m NoiseMixer) Render(rng *rand.Rand, speech *goaudio.FloatBuffer) ([]byte, error) {
	mixed, err := m.Mix(rng, speech)
	if err != nil {
		return nil, err
	}

	return Encode(mixed)
}
