package speech

import (
	"context"
	"errors"
	"os/exec"
	"slices"
	"testing"
	"time"

	"github.com/MelihcanSimsek/CaptchaGenerator/lib/audio"
)

func TestSpace(t *testing.T) {
	for _, tt := range []struct {
		in, want string
	}{
		{"AB3XQ9", "A B 3 X Q 9"},
		{"a", "a"},
		{"", ""},
	} {
		if got := Space(tt.in); got != tt.want {
			t.Errorf("Space(%q): wanted %q, got %q", tt.in, tt.want, got)
		}
	}
}

type recordingSynth struct {
	got string
	ToneSynthesizer
}

func (rs *recordingSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	rs.got = text
	return rs.ToneSynthesizer.Synthesize(ctx, text)
}

func TestRendererSpeak(t *testing.T) {
	rs := &recordingSynth{}
	r := &Renderer{Synthesizer: rs}

	buf, err := r.Speak(t.Context(), "AB3")
	if err != nil {
		t.Fatal(err)
	}

	if rs.got != "A B 3" {
		t.Errorf("synthesizer got %q, wanted spaced characters", rs.got)
	}

	// Three 150ms symbols and two 50ms gaps.
	if got, want := audio.Duration(buf), 550*time.Millisecond; got != want {
		t.Errorf("wanted %s of speech, got %s", want, got)
	}
}

func TestRendererSpeakEmpty(t *testing.T) {
	r := &Renderer{Synthesizer: ToneSynthesizer{}}
	if _, err := r.Speak(t.Context(), ""); !errors.Is(err, ErrEmptyText) {
		t.Errorf("wanted ErrEmptyText, got %v", err)
	}
}

type brokenSynth struct{}

func (brokenSynth) Synthesize(context.Context, string) ([]byte, error) {
	return []byte("not audio"), nil
}

func TestRendererSpeakBadOutput(t *testing.T) {
	r := &Renderer{Synthesizer: brokenSynth{}}
	if _, err := r.Speak(t.Context(), "X"); !errors.Is(err, ErrSynthesisFailed) {
		t.Errorf("wanted ErrSynthesisFailed, got %v", err)
	}
}

func TestESpeakArgs(t *testing.T) {
	for _, tt := range []struct {
		name string
		e    ESpeak
		want []string
	}{
		{
			name: "defaults",
			want: []string{"-w", "out.wav", "-v", "en+f3", "-s", "130", "A B"},
		},
		{
			name: "custom",
			e:    ESpeak{Voice: "de+m1", Rate: 100},
			want: []string{"-w", "out.wav", "-v", "de+m1", "-s", "100", "A B"},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.args("out.wav", "A B"); !slices.Equal(got, tt.want) {
				t.Errorf("wanted %q, got %q", tt.want, got)
			}
		})
	}
}

func TestESpeakMissingBinary(t *testing.T) {
	e := ESpeak{Binary: "/nonexistent/espeak-ng"}
	if _, err := e.Synthesize(t.Context(), "A"); err == nil {
		t.Error("wanted an error when the binary is missing")
	}
}

func TestESpeak(t *testing.T) {
	if _, err := exec.LookPath("espeak-ng"); err != nil {
		t.Skip("espeak-ng is not installed")
	}

	r := &Renderer{Synthesizer: ESpeak{}}
	buf, err := r.Speak(t.Context(), "AB3")
	if err != nil {
		t.Fatal(err)
	}

	if audio.Duration(buf) == 0 {
		t.Error("espeak-ng produced no audio")
	}
}
