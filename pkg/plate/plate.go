// Package plate normalizes Brazilian vehicle plates.
//
// The Mercosul layout is LLLNLNN (three letters, digit, letter, two digits).
// The legacy layout LLLNNNN maps onto it by replacing the second digit d
// with the letter 'A'+d.
package plate

import (
	"errors"
	"strings"
)

// Length is the number of characters in a full plate.
const Length = 7

var ErrInvalidPlate = errors.New("invalid vehicle plate")

// Format applies the format-as-you-type transform to the current input value.
// Non-alphanumerics are dropped, letters are uppercased and each character is
// placed into the next Mercosul slot it fits; characters that fit no slot are
// skipped. A digit typed into the fifth slot becomes its Mercosul letter.
// Format is idempotent.
func Format(raw string) string {
	out := make([]byte, 0, Length)
	for _, r := range raw {
		if len(out) == Length {
			break
		}
		c, ok := asciiAlnum(r)
		if !ok {
			continue
		}
		pos := len(out)
		switch {
		case letterSlot(pos):
			if isLetter(c) {
				out = append(out, c)
			}
		case pos == 4:
			if isLetter(c) {
				out = append(out, c)
			} else {
				out = append(out, 'A'+(c-'0'))
			}
		default:
			if isDigit(c) {
				out = append(out, c)
			}
		}
	}
	return string(out)
}

// Valid reports whether p is a complete Mercosul plate.
func Valid(p string) bool {
	if len(p) != Length {
		return false
	}
	for i := 0; i < Length; i++ {
		c := p[i]
		switch {
		case letterSlot(i) || i == 4:
			if !isLetter(c) {
				return false
			}
		default:
			if !isDigit(c) {
				return false
			}
		}
	}
	return true
}

// ValidLegacy reports whether p is a complete pre-Mercosul plate (LLLNNNN).
func ValidLegacy(p string) bool {
	if len(p) != Length {
		return false
	}
	for i := 0; i < Length; i++ {
		if i < 3 {
			if !isLetter(p[i]) {
				return false
			}
			continue
		}
		if !isDigit(p[i]) {
			return false
		}
	}
	return true
}

// Canonical strips separators, uppercases and returns the Mercosul form of
// a complete plate. Legacy plates are converted.
func Canonical(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if c, ok := asciiAlnum(r); ok {
			b.WriteByte(c)
		}
	}
	p := b.String()
	switch {
	case Valid(p):
		return p, nil
	case ValidLegacy(p):
		return Format(p), nil
	default:
		return "", ErrInvalidPlate
	}
}

func letterSlot(pos int) bool {
	return pos < 3
}

func asciiAlnum(r rune) (byte, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return byte(r - 'a' + 'A'), true
	case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return byte(r), true
	default:
		return 0, false
	}
}

func isLetter(c byte) bool { return c >= 'A' && c <= 'Z' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
