// Package lib is the HTTP face of the challenge service: it issues image and
// audio challenges and checks answers against their tokens.
package lib

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/MelihcanSimsek/CaptchaGenerator/internal"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/challenge"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/localization"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/ratelimit"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// maxCheckBody bounds the size of a check request body.
const maxCheckBody = 16 << 10

var challengesValidated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "captcha_challenges_validated",
	Help: "The total number of answers checked, by outcome",
}, []string{"outcome"})

type Server struct {
	mux      *http.ServeMux
	issuer   *challenge.Issuer
	verifier *token.Verifier
	limiter  *ratelimit.Limiter
	opts     Options
}

// CheckRequest is the body of a check call.
type CheckRequest struct {
	Answer string `json:"answer"`
	Token  string `json:"token"`
}

// CheckResponse reports the outcome of a check call. Every outcome is
// answered with HTTP 200.
type CheckResponse struct {
	Message   string `json:"message"`
	IsSuccess bool   `json:"isSuccess"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) issueHandler(kind challenge.Kind) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Issue(w, r, kind)
	})
}

// Issue creates a challenge of the given kind for the requester in
// X-Real-Ip and writes it as JSON.
func (s *Server) Issue(w http.ResponseWriter, r *http.Request, kind challenge.Kind) {
	lg := internal.GetRequestLogger(r).With("kind", kind)
	localizer := localization.GetLocalizer(r)

	if (kind.WantsImage() && s.issuer.Image == nil) || (kind.WantsAudio() && s.issuer.Audio == nil) {
		lg.Debug("challenge kind is disabled")
		s.respondWithStatus(w, localizer.T("media_disabled"), http.StatusNotFound)
		return
	}

	address := r.Header.Get("X-Real-Ip")
	if address == "" {
		lg.Warn("no requester address, is the client address middleware installed?")
		s.respondWithStatus(w, localizer.T("unknown_address"), http.StatusBadRequest)
		return
	}

	decision, err := s.limiter.Allow(r)
	if err != nil {
		lg.Error("can't apply rate limit", "err", err)
		s.respondWithError(w, localizer.T("internal_error"))
		return
	}

	if !decision.Allowed {
		cerr := challenge.NewError("ratelimit", "too many challenges", fmt.Errorf("%w: retry after %s", challenge.ErrRateLimited, decision.RetryAfter))
		lg.Info("rate limited", "decision", decision, "err", cerr)
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(decision.RetryAfter.Seconds()))))
		s.respondWithStatus(w, localizer.T("rate_limited"), cerr.StatusCode)
		return
	}

	result, err := s.issuer.Issue(r.Context(), kind, address)
	if err != nil {
		var cerr *challenge.Error
		status := http.StatusInternalServerError
		if errors.As(err, &cerr) {
			status = cerr.StatusCode
		}

		switch {
		case errors.Is(err, challenge.ErrInvalidInput):
			lg.Debug("invalid issuance request", "err", err)
			s.respondWithStatus(w, localizer.T("invalid_request"), status)
		case errors.Is(err, challenge.ErrRenderFailure):
			s.respondWithStatus(w, localizer.T("render_failure"), status)
		default:
			lg.Error("can't issue challenge", "err", err)
			s.respondWithError(w, localizer.T("internal_error"))
		}
		return
	}

	lg.Debug("challenge issued", "challenge", result.Challenge, "rate_limit", decision)
	s.respondJSON(w, http.StatusOK, result)
}

// Check verifies a claimed answer against its token and the requester
// address in X-Real-Ip.
func (s *Server) Check(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)
	localizer := localization.GetLocalizer(r)

	address := r.Header.Get("X-Real-Ip")
	if address == "" {
		lg.Warn("no requester address, is the client address middleware installed?")
		s.respondWithStatus(w, localizer.T("unknown_address"), http.StatusBadRequest)
		return
	}

	var req CheckRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCheckBody))
	if err := dec.Decode(&req); err != nil {
		lg.Debug("can't decode check request", "err", err)
		s.respondWithStatus(w, localizer.T("invalid_request"), http.StatusBadRequest)
		return
	}

	outcome := s.verifier.Verify(req.Answer, req.Token, address)
	challengesValidated.WithLabelValues(outcome.String()).Inc()
	lg.Debug("checked answer", "outcome", outcome)

	s.respondJSON(w, http.StatusOK, CheckResponse{
		Message:   localizer.T(outcome.MessageID()),
		IsSuccess: outcome.Success(),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("[unexpected] can't encode response: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
