// Package textgen generates the random strings a challenge asks the user to
// read or transcribe.
package textgen

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// Alphabet is the set of symbols a challenge is drawn from.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var ErrInvalidLength = errors.New("textgen: length must be positive")

// Generate returns length independent uniform draws from Alphabet using rng.
func Generate(rng *rand.Rand, length int) (string, error) {
	if length < 1 {
		return "", fmt.Errorf("%w: got %d", ErrInvalidLength, length)
	}

	var sb strings.Builder
	sb.Grow(length)

	for range length {
		sb.WriteByte(Alphabet[rng.IntN(len(Alphabet))])
	}

	return sb.String(), nil
}

// InAlphabet reports whether every byte of text is a member of Alphabet.
func InAlphabet(text string) bool {
	for i := 0; i < len(text); i++ {
		if strings.IndexByte(Alphabet, text[i]) == -1 {
			return false
		}
	}
	return true
}
