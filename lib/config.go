package lib

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	mrand "math/rand/v2"
	"net/http"
	"os"
	"strings"
	"time"

	captcha "github.com/MelihcanSimsek/CaptchaGenerator"
	"github.com/MelihcanSimsek/CaptchaGenerator/data"
	"github.com/MelihcanSimsek/CaptchaGenerator/internal"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/challenge"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/policy"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/policy/config"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/ratelimit"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/store"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/token"
)

type Options struct {
	Policy      *policy.ParsedConfig
	Store       store.Interface
	TokenSecret []byte
	HashSecret  []byte
	BasePrefix  string

	// Now and Rand override the token clock and the per-issuance random
	// source. Both are nil outside of tests.
	Now  func() time.Time
	Rand func() *mrand.Rand
}

func LoadConfigOrDefault(ctx context.Context, fname string) (*policy.ParsedConfig, error) {
	var fin io.ReadCloser
	var err error

	if fname != "" {
		fin, err = os.Open(fname)
		if err != nil {
			return nil, fmt.Errorf("can't parse config file %s: %w", fname, err)
		}
	} else {
		fname = "(data)/captcha.yaml"
		fin, err = data.Config.Open("captcha.yaml")
		if err != nil {
			return nil, fmt.Errorf("[unexpected] can't parse builtin config file %s: %w", fname, err)
		}
	}

	defer func(fin io.ReadCloser) {
		err := fin.Close()
		if err != nil {
			slog.Error("failed to close config file", "file", fname, "err", err)
		}
	}(fin)

	result, err := policy.ParseConfig(ctx, fin, fname)
	if err != nil {
		return nil, fmt.Errorf("can't parse config file %s: %w", fname, err)
	}

	return result, nil
}

// BuildStore opens the storage backend named in cfg.
func BuildStore(ctx context.Context, cfg config.Store) (store.Interface, error) {
	fac, ok := store.Get(cfg.Backend)
	if !ok {
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStoreBackend, cfg.Backend)
	}

	st, err := fac.Build(ctx, cfg.Parameters)
	if err != nil {
		return nil, fmt.Errorf("can't build %s store: %w", cfg.Backend, err)
	}

	return st, nil
}

// RandomSecret returns 32 bytes from crypto/rand.
func RandomSecret() ([]byte, error) {
	result := make([]byte, 32)
	if _, err := rand.Read(result); err != nil {
		return nil, err
	}
	return result, nil
}

func New(opts Options) (*Server, error) {
	if opts.Policy == nil {
		return nil, fmt.Errorf("lib: no configuration")
	}

	var err error
	if len(opts.TokenSecret) == 0 {
		slog.Debug("opts.TokenSecret not set, generating a new one")
		if opts.TokenSecret, err = RandomSecret(); err != nil {
			return nil, fmt.Errorf("lib: can't generate token secret: %w", err)
		}
	}

	if len(opts.HashSecret) == 0 {
		slog.Debug("opts.HashSecret not set, generating a new one")
		if opts.HashSecret, err = RandomSecret(); err != nil {
			return nil, fmt.Errorf("lib: can't generate hash secret: %w", err)
		}
	}

	hasher, err := token.NewSaltedSHA256(opts.HashSecret)
	if err != nil {
		return nil, fmt.Errorf("lib: %w", err)
	}

	helper, err := token.NewJWT(opts.Policy.Algorithm, opts.TokenSecret)
	if err != nil {
		return nil, fmt.Errorf("lib: %w", err)
	}
	if opts.Now != nil {
		helper.Now = opts.Now
	}

	if opts.Store == nil && opts.Policy.RateLimit.Enabled() {
		opts.Store, err = BuildStore(context.Background(), opts.Policy.Store)
		if err != nil {
			return nil, fmt.Errorf("lib: %w", err)
		}
	}

	captcha.BasePrefix = opts.BasePrefix

	result := &Server{
		issuer: &challenge.Issuer{
			Binder:     &token.Binder{Hasher: hasher, Helper: helper, TTL: opts.Policy.TokenTTL},
			Image:      opts.Policy.Image,
			Audio:      opts.Policy.Audio,
			TextLength: opts.Policy.TextLength,
			Rand:       opts.Rand,
		},
		verifier: &token.Verifier{Hasher: hasher, Helper: helper},
		limiter: ratelimit.New(
			opts.Store,
			opts.Policy.RateLimit.Requests,
			opts.Policy.RateLimit.Window,
			opts.Policy.RateLimit.Exempt,
		),
		opts: opts,
	}

	mux := http.NewServeMux()

	// Helper to add global prefix
	registerWithPrefix := func(pattern string, handler http.Handler, method string) {
		if method != "" {
			method = method + " " // methods must end with a space to register with them
		}

		// Ensure there's no double slash when concatenating BasePrefix and pattern
		basePrefix := strings.TrimSuffix(captcha.BasePrefix, "/")
		prefix := method + basePrefix

		// If pattern doesn't start with a slash, add one
		if !strings.HasPrefix(pattern, "/") {
			pattern = "/" + pattern
		}

		mux.Handle(prefix+pattern, internal.NoStoreCache(internal.GzipMiddleware(1, handler)))
	}

	registerWithPrefix(captcha.APIPrefix+"image", result.issueHandler(challenge.KindImage), "GET")
	registerWithPrefix(captcha.APIPrefix+"audio", result.issueHandler(challenge.KindAudio), "GET")
	registerWithPrefix(captcha.APIPrefix+"combined", result.issueHandler(challenge.KindBoth), "GET")
	registerWithPrefix(captcha.APIPrefix+"check", http.HandlerFunc(result.Check), "POST")

	result.mux = mux

	return result, nil
}
