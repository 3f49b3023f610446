// Package giftcards owns gift card issuance, validation and redemption.
package giftcards

import (
	"crypto/rand"
	"fmt"
	"strings"
	"tourledger/src/types"
)

// CodeAlphabet excludes 0/O and 1/I.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const CodeLength = 12

// GenerateCode returns a random code. len(CodeAlphabet) divides 256, so the
// byte-modulo mapping is uniform.
func GenerateCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = CodeAlphabet[int(buf[i])%len(CodeAlphabet)]
	}
	return string(buf), nil
}

// NormalizeCode strips spaces and dashes and upper-cases the code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.NewReplacer(" ", "", "-", "", "\t", "").Replace(code))
}

// CheckFormat reports whether a normalised code has the 12-character alphanumeric shape.
func CheckFormat(code string) error {
	if len(code) != CodeLength {
		return fmt.Errorf("%w: gift card code must be %d characters", types.ErrValidation, CodeLength)
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return fmt.Errorf("%w: gift card code must be alphanumeric", types.ErrValidation)
		}
	}
	return nil
}
