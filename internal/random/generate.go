// Cryptographically sourced random values for identifiers and retry jitter
package random

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// Returns n random bytes rendered as 2n lowercase hex characters
func Hex(n int) (text string, err error) {
	if n <= 0 {
		err = fmt.Errorf("byte count must be positive, got %d", n)
		return
	}

	buf := make([]byte, n)
	_, err = rand.Read(buf)
	if err != nil {
		err = fmt.Errorf("failed to read random bytes: %w", err)
		return
	}
	text = hex.EncodeToString(buf)
	return
}

// Generates random integer between two numbers (including the min/max)
func NumberInRange(min, max int64) (randomNumber int64, err error) {
	if min > max {
		err = fmt.Errorf("min must be less than or equal to max")
		return
	}

	n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
	if err != nil {
		err = fmt.Errorf("failed reading in range: %w", err)
		return
	}

	randomNumber = n.Int64() + min
	return
}

// Uniform duration in [0, max]. Falls back to max when the random source fails.
func Duration(max time.Duration) (d time.Duration) {
	if max <= 0 {
		return
	}
	n, err := NumberInRange(0, int64(max))
	if err != nil {
		d = max
		return
	}
	d = time.Duration(n)
	return
}
