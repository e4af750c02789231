// Package ratelimit caps challenge issuance per requester address with
// fixed window counters kept in a store.Interface.
package ratelimit

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MelihcanSimsek/CaptchaGenerator/internal"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/policy/checker"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	limited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "captcha_rate_limited",
		Help: "The number of challenge requests rejected by the rate limiter",
	})

	exempted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "captcha_rate_limit_exempt",
		Help: "The number of challenge requests that skipped the rate limiter",
	})
)

var ErrNoAddress = errors.New("ratelimit: X-Real-Ip is not set")

const (
	countPrefix = "ratelimit:count:"
	blockPrefix = "ratelimit:block:"
)

// Decision is the limiter's verdict for one request.
type Decision struct {
	Allowed    bool
	Exempt     bool
	Count      int64
	RetryAfter time.Duration
}

func (d Decision) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("allowed", d.Allowed),
		slog.Bool("exempt", d.Exempt),
		slog.Int64("count", d.Count),
		slog.Duration("retry_after", d.RetryAfter),
	)
}

type block struct {
	Until time.Time `json:"until"`
}

// Limiter allows Requests challenges per address per Window. An address
// that goes over is blocked for a full Window from that moment.
type Limiter struct {
	store    store.Interface
	blocks   *store.JSON[block]
	requests int
	window   time.Duration
	exempt   checker.List
	now      func() time.Time
}

func New(st store.Interface, requests int, window time.Duration, exempt checker.List) *Limiter {
	return &Limiter{
		store:    st,
		blocks:   &store.JSON[block]{Underlying: st, Prefix: blockPrefix},
		requests: requests,
		window:   window,
		exempt:   exempt,
		now:      time.Now,
	}
}

// Allow counts r against its address. Requests are keyed by the X-Real-Ip
// header, so the client address middleware must run first.
func (l *Limiter) Allow(r *http.Request) (Decision, error) {
	if l.requests <= 0 {
		return Decision{Allowed: true}, nil
	}

	addr := r.Header.Get("X-Real-Ip")
	if addr == "" {
		return Decision{}, ErrNoAddress
	}

	rule, err := l.exempt.First(r)
	if err != nil {
		internal.GetRequestLogger(r).Warn("can't evaluate rate limit exemptions", "err", err)
	}
	if rule != nil {
		internal.GetRequestLogger(r).Debug("rate limit exemption matched", "rule", rule.Hash())
		exempted.Inc()
		return Decision{Allowed: true, Exempt: true}, nil
	}

	ctx := r.Context()
	key := internal.FastHash(addr)
	now := l.now()

	b, err := l.blocks.Get(ctx, key)
	switch {
	case err == nil && now.Before(b.Until):
		limited.Inc()
		return Decision{RetryAfter: b.Until.Sub(now)}, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return Decision{}, fmt.Errorf("can't read rate limit block: %w", err)
	}

	count, err := l.store.Increment(ctx, countPrefix+key, l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("can't count request: %w", err)
	}

	if count <= int64(l.requests) {
		return Decision{Allowed: true, Count: count}, nil
	}

	until := now.Add(l.window)
	if err := l.blocks.Set(ctx, key, block{Until: until}, l.window); err != nil {
		return Decision{}, fmt.Errorf("can't store rate limit block: %w", err)
	}

	limited.Inc()
	return Decision{Count: count, RetryAfter: l.window}, nil
}
