package internal

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// NewRand returns a PCG generator seeded from the operating system's entropy
// source. Each challenge issuance owns one; it must not be shared between
// goroutines.
func NewRand() *rand.Rand {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		// crypto/rand.Read never returns an error on supported platforms.
		panic(err)
	}

	return rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(seed[:8]),
		binary.LittleEndian.Uint64(seed[8:]),
	))
}

// NewSeededRand returns a deterministic generator, used by tests and the
// developer CLI to reproduce a challenge.
func NewSeededRand(seed1, seed2 uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed1, seed2))
}
