package timergroup

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// CodeLength is the number of characters in a group code
	CodeLength = 6
	// codeAlphabet leaves out characters that are easy to misread (0/O, 1/I/L)
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

// CodeGenerator produces candidate group codes
type CodeGenerator func() (string, error)

// GenerateCode returns a random group code
func GenerateCode() (string, error) {
	var b strings.Builder
	b.Grow(CodeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate group code: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeCode upper-cases and trims a user supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
