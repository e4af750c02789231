// Package visual renders challenges as distorted, blurred PNG images.
package visual

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/MelihcanSimsek/CaptchaGenerator/lib/challenge"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/imaging"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/imaging/blur"
)

var ErrBadConfig = errors.New("visual: configuration is invalid")

func init() {
	challenge.Register("visual", Factory{})
}

// Config is the image section of the configuration file.
type Config struct {
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	FontPath  string  `json:"font_path,omitempty"`
	FontSize  float64 `json:"font_size,omitempty"`
	LineWidth float64 `json:"line_width,omitempty"`
	BlurSigma float64 `json:"blur_sigma,omitempty"`
}

func (c Config) Valid() error {
	var errs []error

	if c.Width < 0 || c.Height < 0 {
		errs = append(errs, fmt.Errorf("%w: %dx%d", imaging.ErrInvalidDimensions, c.Width, c.Height))
	}
	if c.FontSize < 0 {
		errs = append(errs, fmt.Errorf("font_size must not be negative, got %v", c.FontSize))
	}
	if c.LineWidth < 0 {
		errs = append(errs, fmt.Errorf("line_width must not be negative, got %v", c.LineWidth))
	}
	if c.BlurSigma != 0 {
		if _, err := blur.ComputeKernel(c.BlurSigma); err != nil {
			errs = append(errs, err)
		}
	}
	if c.FontPath != "" {
		if _, err := imaging.LoadFont(c.FontPath); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Options converts the configuration into canvas options, loading the font
// when one is named.
func (c Config) Options() (imaging.Options, error) {
	result := imaging.Options{
		Width:     c.Width,
		Height:    c.Height,
		FontSize:  c.FontSize,
		LineWidth: c.LineWidth,
		BlurSigma: c.BlurSigma,
	}

	if c.FontPath != "" {
		f, err := imaging.LoadFont(c.FontPath)
		if err != nil {
			return imaging.Options{}, err
		}
		result.Font = f
	}

	return result, nil
}

type Factory struct{}

func (Factory) Build(_ context.Context, data json.RawMessage) (challenge.Renderer, error) {
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}

	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	r, err := New(opts)
	if err != nil {
		return nil, err
	}

	return r, nil
}

func (Factory) Valid(data json.RawMessage) error {
	cfg, err := parse(data)
	if err != nil {
		return err
	}

	if err := cfg.Valid(); err != nil {
		return fmt.Errorf("%w: %w", ErrBadConfig, err)
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

// Renderer draws challenge text on a canvas and encodes it as PNG.
type Renderer struct {
	canvas *imaging.Canvas
}

func New(opts imaging.Options) (*Renderer, error) {
	c, err := imaging.NewCanvas(opts)
	if err != nil {
		return nil, err
	}

	return &Renderer{canvas: c}, nil
}

func (r *Renderer) Render(ctx context.Context, rng *rand.Rand, text string) (*challenge.Media, error) {
	img, err := r.canvas.Render(ctx, rng, text)
	if err != nil {
		return nil, err
	}

	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	return &challenge.Media{Data: data, MimeType: imaging.MimeType}, nil
}
