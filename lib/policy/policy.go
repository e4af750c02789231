// Package policy turns a loaded configuration into the runtime pieces of
// the challenge service: renderers, token parameters and rate limit
// exemptions.
package policy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MelihcanSimsek/CaptchaGenerator/lib/challenge"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/policy/checker"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/policy/config"
)

type RateLimit struct {
	Requests int
	Window   time.Duration
	Exempt   checker.List
}

// Enabled reports whether issuance is limited at all.
func (rl RateLimit) Enabled() bool { return rl.Requests > 0 }

type ParsedConfig struct {
	orig *config.Config

	TextLength int
	Image      challenge.Renderer
	Audio      challenge.Renderer
	Algorithm  string
	TokenTTL   time.Duration
	RateLimit  RateLimit
	Store      config.Store
}

// Orig returns the configuration the ParsedConfig was built from.
func (pc *ParsedConfig) Orig() *config.Config { return pc.orig }

func ParseConfig(ctx context.Context, fin io.Reader, fname string) (*ParsedConfig, error) {
	c, err := config.Load(fin, fname)
	if err != nil {
		return nil, err
	}

	return Parse(ctx, c, fname)
}

// Parse builds the runtime configuration from an already validated c.
func Parse(ctx context.Context, c *config.Config, fname string) (*ParsedConfig, error) {
	result := &ParsedConfig{
		orig:       c,
		TextLength: c.Text.Length,
		Algorithm:  c.Token.Algorithm,
		TokenTTL:   time.Duration(c.Token.TTL),
		RateLimit: RateLimit{
			Requests: c.RateLimit.Requests,
			Window:   time.Duration(c.RateLimit.Window),
		},
		Store: c.Store,
	}

	var validationErrs []error

	var err error
	if result.Image, err = buildRenderer(ctx, c.Image); err != nil {
		validationErrs = append(validationErrs, fmt.Errorf("while building image renderer: %w", err))
	}

	if result.Audio, err = buildRenderer(ctx, c.Audio); err != nil {
		validationErrs = append(validationErrs, fmt.Errorf("while building audio renderer: %w", err))
	}

	exempt, err := NewExemptions(c.RateLimit.Exempt)
	if err != nil {
		validationErrs = append(validationErrs, err)
	}
	result.RateLimit.Exempt = exempt

	if len(validationErrs) > 0 {
		return nil, fmt.Errorf("errors parsing config %s: %w", fname, errors.Join(validationErrs...))
	}

	return result, nil
}

func buildRenderer(ctx context.Context, r config.Renderer) (challenge.Renderer, error) {
	if r.Disabled {
		return nil, nil
	}

	fac, ok := challenge.Get(r.Renderer)
	if !ok {
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownRenderer, r.Renderer)
	}

	return fac.Build(ctx, r.Parameters)
}

// NewExemptions compiles the exemption rules into a checker that matches
// when any rule does.
func NewExemptions(e config.Exempt) (checker.List, error) {
	var (
		result checker.List
		errs   []error
	)

	if len(e.RemoteAddr) > 0 {
		c, err := NewRemoteAddrChecker(e.RemoteAddr)
		if err != nil {
			errs = append(errs, fmt.Errorf("while processing exempt remote addr set: %w", err))
		} else {
			result = append(result, c)
		}
	}

	if e.Expression != nil {
		c, err := NewCELChecker(e.Expression)
		if err != nil {
			errs = append(errs, fmt.Errorf("while processing exempt expression: %w", err))
		} else {
			result = append(result, c)
		}
	}

	if len(errs) != 0 {
		return nil, errors.Join(errs...)
	}

	return result, nil
}
