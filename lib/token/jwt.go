// Package token binds a challenge answer and requester address into a signed,
// expiring JWT and verifies claimed answers against it.
package token

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid         = errors.New("token: expired or invalid")
	ErrUnsupportedAlgorithm = errors.New("token: unsupported signing algorithm")
)

// DefaultAlgorithm is the signing algorithm used when none is configured.
const DefaultAlgorithm = "HS256"

// Algorithms lists the HMAC variants a JWT helper can be configured with.
func Algorithms() []string {
	return []string{"HS256", "HS384", "HS512"}
}

// Claims is the payload of a challenge token. The registered subject holds
// the answer hash.
type Claims struct {
	BoundAddress string `json:"bound_address"`
	jwt.RegisteredClaims
}

// AnswerHash returns the salted hash of the expected answer.
func (c *Claims) AnswerHash() string { return c.Subject }

// Helper issues and validates signed tokens.
type Helper interface {
	// Issue signs claims with an expiry ttl from now and returns the
	// serialized token and its expiry time.
	Issue(claims Claims, ttl time.Duration) (string, time.Time, error)

	// Validate checks the signature, algorithm and expiry of token and
	// returns its claims. Any failure wraps ErrTokenInvalid.
	Validate(token string) (*Claims, error)
}

// JWT is a Helper pinned to a single HMAC algorithm and secret.
type JWT struct {
	method *jwt.SigningMethodHMAC
	secret []byte

	// Now is the clock used for issuing and validating. It defaults to
	// time.Now.
	Now func() time.Time
}

func NewJWT(alg string, secret []byte) (*JWT, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	if alg == "" {
		alg = DefaultAlgorithm
	}

	if !slices.Contains(Algorithms(), alg) {
		return nil, fmt.Errorf("%w: %q, wanted one of %v", ErrUnsupportedAlgorithm, alg, Algorithms())
	}

	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("[unexpected] %w: %q is not HMAC", ErrUnsupportedAlgorithm, alg)
	}

	return &JWT{
		method: method,
		secret: append([]byte(nil), secret...),
		Now:    time.Now,
	}, nil
}

// Algorithm returns the name of the signing algorithm.
func (j *JWT) Algorithm() string { return j.method.Alg() }

func (j *JWT) Issue(claims Claims, ttl time.Duration) (string, time.Time, error) {
	now := j.Now()
	expiry := now.Add(ttl)

	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(expiry)

	tok, err := jwt.NewWithClaims(j.method, claims).SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: can't sign: %w", err)
	}

	return tok, claims.ExpiresAt.Time, nil
}

func (j *JWT) Validate(token string) (*Claims, error) {
	var claims Claims

	tok, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{j.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(j.Now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	if !tok.Valid {
		return nil, ErrTokenInvalid
	}

	return &claims, nil
}
