// Package config loads the challenge service configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"slices"
	"time"

	captcha "github.com/MelihcanSimsek/CaptchaGenerator"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/challenge"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/token"
	"k8s.io/apimachinery/pkg/util/yaml"

	_ "github.com/MelihcanSimsek/CaptchaGenerator/lib/challenge/aural"
	_ "github.com/MelihcanSimsek/CaptchaGenerator/lib/challenge/visual"
)

var (
	ErrInvalidTextLength  = errors.New("config.Text: length must be at least 1")
	ErrUnknownRenderer    = errors.New("config.Renderer: unknown renderer")
	ErrBadAlgorithm       = errors.New("config.Token: unsupported algorithm")
	ErrBadTTL             = errors.New("config.Token: ttl must be positive")
	ErrNegativeRequests   = errors.New("config.RateLimit: requests must not be negative")
	ErrBadWindow          = errors.New("config.RateLimit: window must be positive when requests are limited")
	ErrInvalidCIDR        = errors.New("config.Exempt: invalid CIDR")
	ErrNoMediaEnabled     = errors.New("config: both image and audio challenges are disabled")
	ErrDurationNotAString = errors.New("config: durations must be strings such as \"90s\"")
)

// Duration is a time.Duration written as a Go duration string.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %w", ErrDurationNotAString, err)
	}

	val, err := time.ParseDuration(s)
	if err != nil {
		return err
	}

	*d = Duration(val)
	return nil
}

type Text struct {
	Length int `json:"length"`
}

func (t Text) Valid() error {
	if t.Length < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidTextLength, t.Length)
	}

	return nil
}

// Renderer names a registered renderer factory and its parameters.
type Renderer struct {
	Disabled   bool            `json:"disabled,omitempty"`
	Renderer   string          `json:"renderer"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

func (r Renderer) Valid() error {
	if r.Disabled {
		return nil
	}

	fac, ok := challenge.Get(r.Renderer)
	if !ok {
		return fmt.Errorf("%w: %q, wanted one of %v", ErrUnknownRenderer, r.Renderer, challenge.Methods())
	}

	return fac.Valid(r.Parameters)
}

type Token struct {
	Algorithm string   `json:"algorithm"`
	TTL       Duration `json:"ttl"`
}

func (t Token) Valid() error {
	var errs []error

	if !slices.Contains(token.Algorithms(), t.Algorithm) {
		errs = append(errs, fmt.Errorf("%w: %q, wanted one of %v", ErrBadAlgorithm, t.Algorithm, token.Algorithms()))
	}

	if t.TTL <= 0 {
		errs = append(errs, fmt.Errorf("%w, got %s", ErrBadTTL, time.Duration(t.TTL)))
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Exempt lists requests that skip rate limiting. A request matching either
// the address ranges or the expression is exempt.
type Exempt struct {
	RemoteAddr []string          `json:"remote_addresses,omitempty"`
	Expression *ExpressionOrList `json:"expression,omitempty"`
}

func (e Exempt) Valid() error {
	var errs []error

	for _, cidr := range e.RemoteAddr {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			errs = append(errs, fmt.Errorf("%w %q: %w", ErrInvalidCIDR, cidr, err))
		}
	}

	if e.Expression != nil {
		if err := e.Expression.Valid(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

// RateLimit caps issuance per requester address in fixed windows. Zero
// requests disables limiting.
type RateLimit struct {
	Requests int      `json:"requests"`
	Window   Duration `json:"window,omitempty"`
	Exempt   Exempt   `json:"exempt,omitempty"`
}

func (rl RateLimit) Valid() error {
	var errs []error

	if rl.Requests < 0 {
		errs = append(errs, fmt.Errorf("%w, got %d", ErrNegativeRequests, rl.Requests))
	}

	if rl.Requests > 0 && rl.Window <= 0 {
		errs = append(errs, fmt.Errorf("%w, got %s", ErrBadWindow, time.Duration(rl.Window)))
	}

	if err := rl.Exempt.Valid(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

type Config struct {
	Text      Text      `json:"text"`
	Image     Renderer  `json:"image"`
	Audio     Renderer  `json:"audio"`
	Token     Token     `json:"token"`
	RateLimit RateLimit `json:"rate_limit"`
	Store     Store     `json:"store"`
}

// Default returns the configuration used for every key a file leaves out.
func Default() *Config {
	return &Config{
		Text:  Text{Length: captcha.DefaultTextLength},
		Image: Renderer{Renderer: "visual"},
		Audio: Renderer{Renderer: "aural"},
		Token: Token{
			Algorithm: token.DefaultAlgorithm,
			TTL:       Duration(captcha.DefaultTokenTTL),
		},
		RateLimit: RateLimit{
			Window: Duration(time.Minute),
		},
		Store: Store{Backend: "memory"},
	}
}

func (c Config) Valid() error {
	var errs []error

	if err := c.Text.Valid(); err != nil {
		errs = append(errs, err)
	}

	if err := c.Image.Valid(); err != nil {
		errs = append(errs, fmt.Errorf("image: %w", err))
	}

	if err := c.Audio.Valid(); err != nil {
		errs = append(errs, fmt.Errorf("audio: %w", err))
	}

	if c.Image.Disabled && c.Audio.Disabled {
		errs = append(errs, ErrNoMediaEnabled)
	}

	if err := c.Token.Valid(); err != nil {
		errs = append(errs, err)
	}

	if err := c.RateLimit.Valid(); err != nil {
		errs = append(errs, err)
	}

	if err := c.Store.Valid(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) != 0 {
		return fmt.Errorf("config is not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

// Load decodes a YAML or JSON configuration on top of Default and validates
// it.
func Load(fin io.Reader, fname string) (*Config, error) {
	c := Default()

	if err := yaml.NewYAMLToJSONDecoder(fin).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("can't parse config YAML %s: %w", fname, err)
	}

	if err := c.Valid(); err != nil {
		return nil, fmt.Errorf("errors validating config %s: %w", fname, err)
	}

	return c, nil
}
