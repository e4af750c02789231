package token

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	ErrNoAddress = errors.New("token: requester address must not be empty")
	ErrNoText    = errors.New("token: challenge text must not be empty")
)

// Binder produces tokens that commit to an answer and a requester address.
type Binder struct {
	Hasher Hasher
	Helper Helper
	TTL    time.Duration
}

// Bind issues a token for text, usable only from address until it expires.
// The returned expiry is the instant the token stops validating.
func (b *Binder) Bind(text, address string) (string, time.Time, error) {
	if text == "" {
		return "", time.Time{}, ErrNoText
	}
	if address == "" {
		return "", time.Time{}, ErrNoAddress
	}

	var claims Claims
	claims.Subject = b.Hasher.Hash(text)
	claims.BoundAddress = address

	tok, expiry, err := b.Helper.Issue(claims, b.TTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("can't bind challenge: %w", err)
	}

	return tok, expiry, nil
}

// Outcome is the verdict of a verification attempt.
type Outcome int

const (
	Valid Outcome = iota
	TokenExpiredOrInvalid
	AddressMismatch
	AnswerMismatch
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case TokenExpiredOrInvalid:
		return "token_invalid"
	case AddressMismatch:
		return "address_mismatch"
	case AnswerMismatch:
		return "answer_mismatch"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Message is the fixed human readable text returned to clients.
func (o Outcome) Message() string {
	switch o {
	case Valid:
		return "Captcha is valid"
	case AddressMismatch:
		return "IP is not valid"
	case AnswerMismatch:
		return "Captcha is not valid"
	default:
		return "Token is not valid"
	}
}

// MessageID is the localization key for Message.
func (o Outcome) MessageID() string {
	return "outcome_" + o.String()
}

func (o Outcome) Success() bool { return o == Valid }

func (o Outcome) LogValue() slog.Value {
	return slog.StringValue(o.String())
}

// Verifier checks claimed answers against bound tokens.
type Verifier struct {
	Hasher Hasher
	Helper Helper
}

// Verify checks the token first, then the requester address, then the
// answer. The first failing check decides the outcome. Answers are compared
// exactly, so case matters.
func (v *Verifier) Verify(answer, tok, address string) Outcome {
	claims, err := v.Helper.Validate(tok)
	if err != nil {
		return TokenExpiredOrInvalid
	}

	if claims.BoundAddress != address {
		return AddressMismatch
	}

	if !v.Hasher.Verify(claims.AnswerHash(), answer) {
		return AnswerMismatch
	}

	return Valid
}
