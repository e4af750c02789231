package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

var ErrEmptySecret = errors.New("token: secret must not be empty")

// Hasher derives the one-way answer hash stored in a challenge token.
type Hasher interface {
	Hash(text string) string
	Verify(hash, text string) bool
}

// SaltedSHA256 hashes base64(sha256(secret || text)). The secret never leaves
// the process, so a token holder can't brute force the short answer space
// offline.
type SaltedSHA256 struct {
	secret []byte
}

func NewSaltedSHA256(secret []byte) (*SaltedSHA256, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	return &SaltedSHA256{secret: append([]byte(nil), secret...)}, nil
}

func (s *SaltedSHA256) Hash(text string) string {
	h := sha256.New()
	h.Write(s.secret)
	h.Write([]byte(text))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Verify reports whether text hashes to hash, in constant time with respect
// to the hash contents.
func (s *SaltedSHA256) Verify(hash, text string) bool {
	return subtle.ConstantTimeCompare([]byte(s.Hash(text)), []byte(hash)) == 1
}
