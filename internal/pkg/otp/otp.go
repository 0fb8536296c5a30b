package otp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
)

// Generator defines the contract for one-time passcode generation.
type Generator interface {
	// Generate returns a fixed-length decimal code from a cryptographically
	// unpredictable source. Leading zeros are preserved.
	Generate() (string, error)
	// Length returns the configured code length.
	Length() int
}

// NumericCode generates uniformly distributed decimal codes of a fixed length.
type NumericCode struct {
	length int
	mod    uint64
}

// NewNumericCode constructs a NumericCode generator. If length is outside the
// supported range, it falls back to the common 6 digits.
func NewNumericCode(length int) *NumericCode {
	if length < 4 || length > 10 {
		length = 6
	}

	return &NumericCode{
		length: length,
		mod:    uint64(math.Pow10(length)),
	}
}

// Generate returns a decimal string of the configured length.
//
// Rejection sampling keeps the distribution uniform: raw 64-bit values from
// crypto/rand are discarded when they fall into the truncated tail of the
// modulus range.
func (g *NumericCode) Generate() (string, error) {
	limit := math.MaxUint64 - (math.MaxUint64 % g.mod)

	for {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return "", err
		}

		v := binary.BigEndian.Uint64(buf[:])
		if v >= limit {
			continue
		}

		return fmt.Sprintf("%0*d", g.length, v%g.mod), nil
	}
}

// Length returns the configured code length.
func (g *NumericCode) Length() int {
	return g.length
}
