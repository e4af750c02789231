// Package challengetest builds challenge fixtures for tests.
package challengetest

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/MelihcanSimsek/CaptchaGenerator/internal"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/audio"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/audio/speech"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/challenge"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/challenge/aural"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/challenge/visual"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/imaging"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/token"
)

func New(t *testing.T) *challenge.Challenge {
	t.Helper()

	c := challenge.New(challenge.KindBoth, "203.0.113.5")
	c.Text = "aB3xQ9"
	return c
}

// Clock is a settable time source shared by a token pair.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Tokens is a Binder and Verifier sharing secrets and a clock.
type Tokens struct {
	Binder   *token.Binder
	Verifier *token.Verifier
	Clock    *Clock
}

func NewTokens(t *testing.T) *Tokens {
	t.Helper()

	h, err := token.NewSaltedSHA256([]byte(internal.SHA256sum(t.Name() + "hash")))
	if err != nil {
		t.Fatal(err)
	}

	j, err := token.NewJWT(token.DefaultAlgorithm, []byte(internal.SHA256sum(t.Name()+"token")))
	if err != nil {
		t.Fatal(err)
	}

	clk := &Clock{now: time.Now().Truncate(time.Second)}
	j.Now = clk.Now

	return &Tokens{
		Binder:   &token.Binder{Hasher: h, Helper: j, TTL: 2 * time.Minute},
		Verifier: &token.Verifier{Hasher: h, Helper: j},
		Clock:    clk,
	}
}

// NewIssuer returns an issuer with both renderers configured for speed: a
// small canvas and a short tone-synthesized clip. Every issuance uses the
// same seed, so the generated text is reproducible.
func NewIssuer(t *testing.T, tokens *Tokens) *challenge.Issuer {
	t.Helper()

	img, err := visual.New(imaging.Options{Width: 200, Height: 100, BlurSigma: 1})
	if err != nil {
		t.Fatal(err)
	}

	mixer := audio.DefaultNoiseMixer()
	mixer.SampleRate = 8000
	mixer.Channels = 1
	mixer.Duration = 500 * time.Millisecond

	return &challenge.Issuer{
		Binder: tokens.Binder,
		Image:  img,
		Audio: &aural.Renderer{
			Speech: &speech.Renderer{Synthesizer: speech.ToneSynthesizer{SampleRate: 8000, Symbol: 20 * time.Millisecond, Gap: 5 * time.Millisecond}},
			Mixer:  mixer,
		},
		Rand: func() *rand.Rand { return internal.NewSeededRand(4, 20) },
	}
}
