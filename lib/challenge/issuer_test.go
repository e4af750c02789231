package challenge_test

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MelihcanSimsek/CaptchaGenerator/internal"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/challenge"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/challenge/challengetest"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/textgen"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/token"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func expectedText(t *testing.T) string {
	t.Helper()

	text, err := textgen.Generate(internal.NewSeededRand(4, 20), 6)
	if err != nil {
		t.Fatal(err)
	}
	return text
}

func TestIssue(t *testing.T) {
	tokens := challengetest.NewTokens(t)
	iss := challengetest.NewIssuer(t, tokens)
	text := expectedText(t)

	for _, tt := range []struct {
		kind      challenge.Kind
		wantImage bool
		wantAudio bool
		answer    string
	}{
		{kind: challenge.KindImage, wantImage: true, answer: text},
		{kind: challenge.KindAudio, wantAudio: true, answer: strings.ToUpper(text)},
		{kind: challenge.KindBoth, wantImage: true, wantAudio: true, answer: text},
	} {
		t.Run(tt.kind.String(), func(t *testing.T) {
			res, err := iss.Issue(t.Context(), tt.kind, "203.0.113.5")
			if err != nil {
				t.Fatal(err)
			}

			if got := len(res.Image) != 0; got != tt.wantImage {
				t.Errorf("image present: wanted %v, got %v", tt.wantImage, got)
			}
			if got := len(res.Audio) != 0; got != tt.wantAudio {
				t.Errorf("audio present: wanted %v, got %v", tt.wantAudio, got)
			}

			if tt.wantImage {
				if !bytes.HasPrefix(res.Image, pngMagic) {
					t.Error("image is not a PNG")
				}
				if res.MimeType != "image/png" {
					t.Errorf("wanted image/png, got %q", res.MimeType)
				}
			}

			if tt.wantAudio {
				if !bytes.HasPrefix(res.Audio, []byte("RIFF")) {
					t.Error("audio is not a RIFF file")
				}
				if res.AudioMimeType != "audio/wav" {
					t.Errorf("wanted audio/wav, got %q", res.AudioMimeType)
				}
			}

			if res.Challenge.Text != tt.answer {
				t.Errorf("wanted answer %q, got %q", tt.answer, res.Challenge.Text)
			}

			if got := tokens.Verifier.Verify(tt.answer, res.Token, "203.0.113.5"); got != token.Valid {
				t.Errorf("wanted the issued token to verify, got %s", got)
			}

			if strings.Contains(res.Token, tt.answer) {
				t.Error("token contains the answer")
			}

			if want := tokens.Clock.Now().Add(2 * time.Minute); !res.Expiry.Equal(want) {
				t.Errorf("wanted expiry %s, got %s", want, res.Expiry)
			}
		})
	}
}

func TestIssueConcurrent(t *testing.T) {
	tokens := challengetest.NewTokens(t)
	iss := challengetest.NewIssuer(t, tokens)
	iss.Rand = nil

	const workers = 32

	var (
		wg      sync.WaitGroup
		results = make([]*challenge.Result, workers)
		errs    = make([]error, workers)
	)

	for n := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[n], errs[n] = iss.Issue(t.Context(), challenge.KindBoth, "203.0.113.5")
		}()
	}
	wg.Wait()

	texts := map[string]bool{}
	for n, res := range results {
		if errs[n] != nil {
			t.Fatalf("issuance %d: %v", n, errs[n])
		}

		texts[res.Challenge.Text] = true

		if got := tokens.Verifier.Verify(res.Challenge.Text, res.Token, "203.0.113.5"); got != token.Valid {
			t.Errorf("issuance %d: wanted %s from the bound address, got %s", n, token.Valid, got)
		}
		if got := tokens.Verifier.Verify(res.Challenge.Text, res.Token, "198.51.100.7"); got != token.AddressMismatch {
			t.Errorf("issuance %d: wanted %s from another address, got %s", n, token.AddressMismatch, got)
		}
	}

	if len(texts) != workers {
		t.Errorf("wanted %d distinct texts, got %d", workers, len(texts))
	}
}

func TestIssueScenario(t *testing.T) {
	tokens := challengetest.NewTokens(t)
	iss := challengetest.NewIssuer(t, tokens)

	res, err := iss.Issue(t.Context(), challenge.KindImage, "203.0.113.5")
	if err != nil {
		t.Fatal(err)
	}
	answer := res.Challenge.Text

	if got := tokens.Verifier.Verify(answer, res.Token, "203.0.113.5"); got != token.Valid {
		t.Errorf("same address: wanted Valid, got %s", got)
	}

	if got := tokens.Verifier.Verify(answer, res.Token, "198.51.100.1"); got != token.AddressMismatch {
		t.Errorf("other address: wanted AddressMismatch, got %s", got)
	}

	tokens.Clock.Advance(2*time.Minute + time.Second)

	if got := tokens.Verifier.Verify(answer, res.Token, "203.0.113.5"); got != token.TokenExpiredOrInvalid {
		t.Errorf("after expiry: wanted TokenExpiredOrInvalid, got %s", got)
	}
}

func TestIssueInvalidInput(t *testing.T) {
	tokens := challengetest.NewTokens(t)
	iss := challengetest.NewIssuer(t, tokens)

	for _, tt := range []struct {
		name    string
		kind    challenge.Kind
		address string
		length  int
	}{
		{name: "no-address", kind: challenge.KindImage},
		{name: "bad-kind", kind: challenge.Kind(42), address: "203.0.113.5"},
		{name: "bad-length", kind: challenge.KindImage, address: "203.0.113.5", length: -1},
	} {
		t.Run(tt.name, func(t *testing.T) {
			iss := *iss
			iss.TextLength = tt.length

			res, err := iss.Issue(t.Context(), tt.kind, tt.address)
			if res != nil {
				t.Error("wanted no result on failure")
			}

			if !errors.Is(err, challenge.ErrInvalidInput) {
				t.Fatalf("wanted ErrInvalidInput, got %v", err)
			}

			var cerr *challenge.Error
			if !errors.As(err, &cerr) {
				t.Fatalf("wanted a *challenge.Error, got %T", err)
			}
			if cerr.StatusCode != http.StatusBadRequest {
				t.Errorf("wanted status 400, got %d", cerr.StatusCode)
			}
		})
	}
}

type failingRenderer struct{}

func (failingRenderer) Render(context.Context, *rand.Rand, string) (*challenge.Media, error) {
	return nil, errors.New("out of ink")
}

func TestIssueRenderFailure(t *testing.T) {
	tokens := challengetest.NewTokens(t)

	for _, tt := range []struct {
		name string
		kind challenge.Kind
		mod  func(*challenge.Issuer)
	}{
		{"image-fails", challenge.KindImage, func(i *challenge.Issuer) { i.Image = failingRenderer{} }},
		{"audio-fails-in-combined", challenge.KindBoth, func(i *challenge.Issuer) { i.Audio = failingRenderer{} }},
		{"audio-unconfigured", challenge.KindAudio, func(i *challenge.Issuer) { i.Audio = nil }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			iss := challengetest.NewIssuer(t, tokens)
			tt.mod(iss)

			res, err := iss.Issue(t.Context(), tt.kind, "203.0.113.5")
			if res != nil {
				t.Error("wanted no partial result")
			}

			if !errors.Is(err, challenge.ErrRenderFailure) {
				t.Fatalf("wanted ErrRenderFailure, got %v", err)
			}

			var cerr *challenge.Error
			if errors.As(err, &cerr) && cerr.StatusCode != http.StatusInternalServerError {
				t.Errorf("wanted status 500, got %d", cerr.StatusCode)
			}
		})
	}
}

func TestIssueCanceled(t *testing.T) {
	tokens := challengetest.NewTokens(t)
	iss := challengetest.NewIssuer(t, tokens)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := iss.Issue(ctx, challenge.KindImage, "203.0.113.5"); !errors.Is(err, context.Canceled) {
		t.Errorf("wanted context.Canceled, got %v", err)
	}
}

func TestParseKind(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want challenge.Kind
		err  error
	}{
		{"image", challenge.KindImage, nil},
		{"audio", challenge.KindAudio, nil},
		{"both", challenge.KindBoth, nil},
		{"combined", challenge.KindBoth, nil},
		{"video", 0, challenge.ErrInvalidInput},
	} {
		got, err := challenge.ParseKind(tt.in)
		if !errors.Is(err, tt.err) {
			t.Errorf("ParseKind(%q): wanted error %v, got %v", tt.in, tt.err, err)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseKind(%q): wanted %s, got %s", tt.in, tt.want, got)
		}
	}

	for _, k := range challenge.Kinds() {
		got, err := challenge.ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("%s does not round trip through ParseKind", k)
		}
	}
}

func TestErrorStatus(t *testing.T) {
	for _, tt := range []struct {
		err  error
		want int
	}{
		{challenge.ErrInvalidInput, http.StatusBadRequest},
		{challenge.ErrRateLimited, http.StatusTooManyRequests},
		{challenge.ErrRenderFailure, http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	} {
		e := challenge.NewError("test", "public", tt.err)
		if e.StatusCode != tt.want {
			t.Errorf("%v: wanted status %d, got %d", tt.err, tt.want, e.StatusCode)
		}
		if !errors.Is(e, tt.err) {
			t.Errorf("%v: error does not unwrap to its private reason", tt.err)
		}
	}
}

func TestRegistry(t *testing.T) {
	methods := challenge.Methods()
	for _, want := range []string{"aural", "visual"} {
		if _, ok := challenge.Get(want); !ok {
			t.Errorf("renderer %q is not registered, have %v", want, methods)
		}
	}
}
