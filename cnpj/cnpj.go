// Package cnpj handles Brazilian company registration numbers.
package cnpj

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Length is the number of digits in a CNPJ.
const Length = 14

// ErrInvalid is returned by Validate for malformed identifiers.
var ErrInvalid = errors.New("invalid cnpj")

// Identifier is a registration number as typed by the operator,
// e.g. "24.276.421/0001-08".
type Identifier string

// Normalize strips every non-digit character, preserving digit order.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Digits returns the digits-only form of id.
func (id Identifier) Digits() string {
	return Normalize(string(id))
}

// String returns id trimmed of surrounding whitespace.
func (id Identifier) String() string {
	return strings.TrimFunc(string(id), unicode.IsSpace)
}

// Format renders id as NN.NNN.NNN/NNNN-NN. Identifiers that don't have
// exactly 14 digits are returned unchanged.
func (id Identifier) Format() string {
	d := id.Digits()
	if len(d) != Length {
		return id.String()
	}
	return fmt.Sprintf("%s.%s.%s/%s-%s", d[0:2], d[2:5], d[5:8], d[8:12], d[12:14])
}

// Validate checks the digit count and both check digits.
func (id Identifier) Validate() error {
	d := id.Digits()
	if len(d) != Length {
		return fmt.Errorf("%w: %q has %d digits, want %d", ErrInvalid, id.String(), len(d), Length)
	}
	if strings.Count(d, d[:1]) == Length {
		return fmt.Errorf("%w: %q repeats a single digit", ErrInvalid, id.String())
	}
	if checkDigit(d[:12]) != d[12] || checkDigit(d[:13]) != d[13] {
		return fmt.Errorf("%w: %q check digits do not match", ErrInvalid, id.String())
	}
	return nil
}

// checkDigit computes the modulo-11 verifier for the given prefix.
// Weights cycle 2..9 from the rightmost digit.
func checkDigit(prefix string) byte {
	sum, weight := 0, 2
	for i := len(prefix) - 1; i >= 0; i-- {
		sum += int(prefix[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	r := sum % 11
	if r < 2 {
		return '0'
	}
	return byte('0' + 11 - r)
}
