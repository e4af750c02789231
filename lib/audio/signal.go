package audio

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	goaudio "github.com/go-audio/audio"
)

// Kind is the shape of a generated signal.
type Kind string

const (
	Sin      Kind = "sin"
	Square   Kind = "square"
	Triangle Kind = "triangle"
	SawTooth Kind = "sawtooth"
	White    Kind = "white"
	Pink     Kind = "pink"
	Sweep    Kind = "sweep"
)

var ErrUnknownKind = errors.New("audio: unknown signal kind")

// Kinds lists every supported signal kind.
func Kinds() []Kind {
	return []Kind{Sin, Square, Triangle, SawTooth, White, Pink, Sweep}
}

func (k Kind) Valid() error {
	switch k {
	case Sin, Square, Triangle, SawTooth, White, Pink, Sweep:
		return nil
	default:
		return fmt.Errorf("%w %q", ErrUnknownKind, string(k))
	}
}

// Generator produces a procedural signal. Tonal kinds use Frequency; Sweep
// glides exponentially from Frequency to FrequencyEnd over SweepLength and
// then starts over.
type Generator struct {
	Kind         Kind
	SampleRate   int
	Channels     int
	Gain         float64
	Frequency    float64
	FrequencyEnd float64
	SweepLength  time.Duration
}

func (g Generator) Valid() error {
	var errs []error

	if err := g.Kind.Valid(); err != nil {
		errs = append(errs, err)
	}
	if g.SampleRate < 1 {
		errs = append(errs, fmt.Errorf("%w: sample rate %d", ErrBadFormat, g.SampleRate))
	}
	if g.Channels < 1 {
		errs = append(errs, fmt.Errorf("%w: %d channels", ErrBadFormat, g.Channels))
	}
	if g.Gain < 0 {
		errs = append(errs, fmt.Errorf("%w: negative gain %v", ErrBadFormat, g.Gain))
	}
	if g.Frequency < 0 || g.FrequencyEnd < 0 {
		errs = append(errs, fmt.Errorf("%w: negative frequency", ErrBadFormat))
	}
	if g.Kind == Sweep && (g.Frequency == 0 || g.FrequencyEnd == 0 || g.SweepLength <= 0) {
		errs = append(errs, fmt.Errorf("%w: sweep needs both frequencies and a positive length", ErrBadFormat))
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Generate returns d worth of signal. Noise kinds draw from rng.
func (g Generator) Generate(rng *rand.Rand, d time.Duration) (*goaudio.FloatBuffer, error) {
	if err := g.Valid(); err != nil {
		return nil, err
	}
	if d < 0 {
		return nil, fmt.Errorf("%w: negative duration %s", ErrBadFormat, d)
	}

	frames := int(d.Seconds() * float64(g.SampleRate))
	mono := &goaudio.FloatBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  g.SampleRate,
		},
		Data: make([]float64, frames),
	}

	rate := float64(g.SampleRate)
	var phase float64
	var pink pinkFilter
	sweepFrames := int(g.SweepLength.Seconds() * rate)

	for n := range frames {
		var v float64

		switch g.Kind {
		case Sin:
			v = math.Sin(2 * math.Pi * phase)
		case Square:
			if phase < 0.5 {
				v = 1
			} else {
				v = -1
			}
		case Triangle:
			v = 1 - 4*math.Abs(phase-0.5)
		case SawTooth:
			v = 2*phase - 1
		case White:
			v = 2*rng.Float64() - 1
		case Pink:
			v = pink.next(2*rng.Float64() - 1)
		case Sweep:
			v = math.Sin(2 * math.Pi * phase)
		}

		mono.Data[n] = g.Gain * v

		freq := g.Frequency
		if g.Kind == Sweep && sweepFrames > 0 {
			t := float64(n%sweepFrames) / float64(sweepFrames)
			freq = g.Frequency * math.Pow(g.FrequencyEnd/g.Frequency, t)
		}
		phase += freq / rate
		phase -= math.Floor(phase)
	}

	return ToChannels(mono, g.Channels)
}

// pinkFilter shapes white noise into a 1/f spectrum with Paul Kellet's
// refined seven-pole filter.
type pinkFilter struct {
	b [7]float64
}

func (p *pinkFilter) next(white float64) float64 {
	p.b[0] = 0.99886*p.b[0] + white*0.0555179
	p.b[1] = 0.99332*p.b[1] + white*0.0750759
	p.b[2] = 0.96900*p.b[2] + white*0.1538520
	p.b[3] = 0.86650*p.b[3] + white*0.3104856
	p.b[4] = 0.55000*p.b[4] + white*0.5329522
	p.b[5] = -0.7616*p.b[5] - white*0.0168980
	sum := p.b[0] + p.b[1] + p.b[2] + p.b[3] + p.b[4] + p.b[5] + p.b[6] + white*0.5362
	p.b[6] = white * 0.115926
	// The filter has a gain of roughly 5; bring it back to unit scale.
	return sum / 5
}
