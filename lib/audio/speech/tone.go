package speech

import (
	"context"
	"math"
	"time"

	"github.com/MelihcanSimsek/CaptchaGenerator/lib/audio"
	goaudio "github.com/go-audio/audio"
)

// ToneSynthesizer is a dependency-free Synthesizer that renders every
// non-space character as a short beep whose pitch depends on the character.
// It is deterministic, which makes it useful in tests and on hosts without
// espeak-ng installed.
type ToneSynthesizer struct {
	SampleRate int           // defaults to 16000
	Symbol     time.Duration // length of one character, defaults to 150ms
	Gap        time.Duration // silence for a space, defaults to 50ms
}

func (ts ToneSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	rate := ts.SampleRate
	if rate == 0 {
		rate = 16000
	}
	symbol := ts.Symbol
	if symbol == 0 {
		symbol = 150 * time.Millisecond
	}
	gap := ts.Gap
	if gap == 0 {
		gap = 50 * time.Millisecond
	}

	symbolFrames := int(symbol.Seconds() * float64(rate))
	gapFrames := int(gap.Seconds() * float64(rate))

	buf := &goaudio.FloatBuffer{
		Format: &goaudio.Format{NumChannels: 1, SampleRate: rate},
	}

	for _, r := range text {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if r == ' ' {
			buf.Data = append(buf.Data, make([]float64, gapFrames)...)
			continue
		}

		freq := 300 + float64(r%64)*20
		for n := range symbolFrames {
			// Short linear fades keep the edges from clicking.
			env := math.Min(1, math.Min(float64(n), float64(symbolFrames-n))/float64(rate/200))
			buf.Data = append(buf.Data, 0.5*env*math.Sin(2*math.Pi*freq*float64(n)/float64(rate)))
		}
	}

	return audio.Encode(buf)
}
