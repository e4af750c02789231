package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	captcha "github.com/MelihcanSimsek/CaptchaGenerator"
	"github.com/MelihcanSimsek/CaptchaGenerator/internal"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/textgen"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/token"
)

// Result is everything a client needs to present and later redeem a
// challenge. Byte slices are base64 encoded when marshaled to JSON.
type Result struct {
	Challenge     *Challenge `json:"-"`
	Token         string     `json:"token"`
	Expiry        time.Time  `json:"expiry"`
	Image         []byte     `json:"image,omitempty"`
	MimeType      string     `json:"mimeType,omitempty"`
	Audio         []byte     `json:"audio,omitempty"`
	AudioMimeType string     `json:"audioMimeType,omitempty"`
}

// Issuer generates challenge text, renders it and binds it into a token.
type Issuer struct {
	Binder     *token.Binder
	Image      Renderer
	Audio      Renderer
	TextLength int

	// Rand returns a fresh generator for every issuance. It defaults to
	// internal.NewRand.
	Rand func() *rand.Rand
}

// Issue creates a challenge of the given kind bound to address. Either the
// whole result is returned or an *Error, never a partial result.
func (i *Issuer) Issue(ctx context.Context, kind Kind, address string) (*Result, error) {
	if err := kind.Valid(); err != nil {
		return nil, NewError("issue", "unknown challenge kind", err)
	}

	if address == "" {
		return nil, NewError("issue", "requester address is unknown", fmt.Errorf("%w: empty address", ErrInvalidInput))
	}

	newRand := i.Rand
	if newRand == nil {
		newRand = internal.NewRand
	}
	rng := newRand()

	length := i.TextLength
	if length == 0 {
		length = captcha.DefaultTextLength
	}

	text, err := textgen.Generate(rng, length)
	if err != nil {
		return nil, NewError("generate", "invalid challenge configuration", fmt.Errorf("%w: %w", ErrInvalidInput, err))
	}

	if kind == KindAudio {
		text = strings.ToUpper(text)
	}

	chall := New(kind, address)
	chall.Text = text

	lg := slog.With("challenge", chall)

	result := &Result{Challenge: chall}

	if kind.WantsImage() {
		media, err := i.render(ctx, lg, "image", i.Image, rng, text)
		if err != nil {
			return nil, err
		}
		result.Image = media.Data
		result.MimeType = media.MimeType
	}

	if kind.WantsAudio() {
		media, err := i.render(ctx, lg, "audio", i.Audio, rng, text)
		if err != nil {
			return nil, err
		}
		result.Audio = media.Data
		result.AudioMimeType = media.MimeType
	}

	tok, expiry, err := i.Binder.Bind(text, address)
	if err != nil {
		if errors.Is(err, token.ErrNoAddress) || errors.Is(err, token.ErrNoText) {
			err = fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return nil, NewError("bind", "can't sign challenge", err)
	}

	result.Token = tok
	result.Expiry = expiry

	issued.WithLabelValues(kind.String()).Inc()
	lg.Debug("issued challenge", "expiry", expiry)

	return result, nil
}

func (i *Issuer) render(ctx context.Context, lg *slog.Logger, media string, r Renderer, rng *rand.Rand, text string) (*Media, error) {
	if r == nil {
		renderFailures.WithLabelValues(media).Inc()
		return nil, NewError("render", media+" challenges are not configured", fmt.Errorf("%w: no %s renderer", ErrRenderFailure, media))
	}

	t0 := time.Now()
	result, err := r.Render(ctx, rng, text)
	if err != nil {
		renderFailures.WithLabelValues(media).Inc()
		lg.Error("can't render challenge", "media", media, "err", err)
		return nil, NewError("render", "can't render challenge", fmt.Errorf("%w: %s: %w", ErrRenderFailure, media, err))
	}
	RenderTime.WithLabelValues(media).Observe(time.Since(t0).Seconds())

	return result, nil
}
