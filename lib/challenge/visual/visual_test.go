package visual

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/MelihcanSimsek/CaptchaGenerator/internal"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/imaging"
)

func TestFactoryValid(t *testing.T) {
	missingFont := filepath.Join(t.TempDir(), "nope.ttf")

	for _, tt := range []struct {
		name string
		cfg  string
		err  error
	}{
		{name: "empty", cfg: ``},
		{name: "defaults", cfg: `{}`},
		{name: "custom", cfg: `{"width": 300, "height": 120, "blur_sigma": 1.5}`},
		{name: "negative-size", cfg: `{"width": -1}`, err: imaging.ErrInvalidDimensions},
		{name: "tiny-sigma", cfg: `{"blur_sigma": -2}`, err: ErrBadConfig},
		{name: "missing-font", cfg: `{"font_path": ` + jsonString(missingFont) + `}`, err: imaging.ErrBadFont},
		{name: "garbage", cfg: `{"width": "wide"}`, err: ErrBadConfig},
	} {
		t.Run(tt.name, func(t *testing.T) {
			err := Factory{}.Valid(json.RawMessage(tt.cfg))
			if !errors.Is(err, tt.err) {
				t.Errorf("wanted %v, got %v", tt.err, err)
			}
		})
	}
}

func jsonString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

func TestFactoryBuildAndRender(t *testing.T) {
	r, err := Factory{}.Build(t.Context(), json.RawMessage(`{"width": 240, "height": 80, "blur_sigma": 1}`))
	if err != nil {
		t.Fatal(err)
	}

	media, err := r.Render(t.Context(), internal.NewSeededRand(1, 2), "aB3xQ9")
	if err != nil {
		t.Fatal(err)
	}

	if media.MimeType != imaging.MimeType {
		t.Errorf("wanted %s, got %s", imaging.MimeType, media.MimeType)
	}

	img, err := png.Decode(bytes.NewReader(media.Data))
	if err != nil {
		t.Fatal(err)
	}

	if b := img.Bounds(); b.Dx() != 240 || b.Dy() != 80 {
		t.Errorf("wanted 240x80, got %dx%d", b.Dx(), b.Dy())
	}
}
