package transfer

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 10
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{10}$`)

// GenerateCode draws a fresh 10-character transaction code over [A-Z0-9]
// from the crypto RNG. Uniqueness is enforced by the store; callers treat
// this as a best-effort draw and retry on collision.
func GenerateCode() (string, error) {
	alphabetSize := big.NewInt(int64(len(codeAlphabet)))
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("unable to draw transaction code: %w", err)
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// ValidCode reports whether s is a well-formed transaction code.
func ValidCode(s string) bool {
	return codePattern.MatchString(s)
}
