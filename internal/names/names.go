// Package names derives device names for test records.
package names

import (
	"errors"
	"math/rand/v2"
	"strings"
	"unicode/utf8"
)

// ErrEmptyName is returned by DeriveNewName for an empty input.
var ErrEmptyName = errors.New("name must not be empty")

const runIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RunIDLength is the length of identifiers returned by NewRunID.
const RunIDLength = 8

// IncrementChar advances a letter by one within its case, wrapping z to a and
// Z to A. Any other rune yields the next code point.
func IncrementChar(c rune) rune {
	switch c {
	case 'z':
		return 'a'
	case 'Z':
		return 'A'
	}
	return c + 1
}

// DeriveNewName returns original with its last character incremented.
func DeriveNewName(original string) (string, error) {
	if original == "" {
		return "", ErrEmptyName
	}
	last, size := utf8.DecodeLastRuneInString(original)
	return original[:len(original)-size] + string(IncrementChar(last)), nil
}

// NewRunID returns a random upper-case alphanumeric identifier used to keep
// records from independent runs apart. A nil r uses the global source.
func NewRunID(r *rand.Rand) string {
	var b strings.Builder
	b.Grow(RunIDLength)
	for range RunIDLength {
		var n int
		if r != nil {
			n = r.IntN(len(runIDAlphabet))
		} else {
			n = rand.IntN(len(runIDAlphabet))
		}
		b.WriteByte(runIDAlphabet[n])
	}
	return b.String()
}
