package domain

import (
	"crypto/rand"
	"math/big"
)

const (
	joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	joinCodeLength   = 6
)

// NewJoinCode generates a short human-typable code for participant entry.
// Uniqueness is enforced by the quiz store, not here.
func NewJoinCode() string {
	code := make([]byte, joinCodeLength)
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken.
			panic(err)
		}
		code[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(code)
}
