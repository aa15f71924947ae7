// Package cpf formats and checks Brazilian individual taxpayer numbers.
package cpf

import "strings"

const (
	// Digits is the number of digits in a CPF.
	Digits = 11
	// FormattedLength is the length of ddd.ddd.ddd-dd.
	FormattedLength = 14
)

// Normalize keeps only ASCII digits, truncated to 11.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(Digits)
	for _, r := range raw {
		if b.Len() == Digits {
			break
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Format groups the digits of raw as 3-3-3-2 with '.', '.', '-'.
// Partial input is formatted progressively, so it can run on every keystroke.
func Format(raw string) string {
	d := Normalize(raw)
	var b strings.Builder
	b.Grow(FormattedLength)
	for i := 0; i < len(d); i++ {
		switch i {
		case 3, 6:
			b.WriteByte('.')
		case 9:
			b.WriteByte('-')
		}
		b.WriteByte(d[i])
	}
	return b.String()
}

// Valid reports whether raw holds 11 digits with correct check digits.
func Valid(raw string) bool {
	d := Normalize(raw)
	if len(d) != Digits || strings.Count(d, d[:1]) == Digits {
		return false
	}
	return checkDigit(d[:9]) == d[9] && checkDigit(d[:10]) == d[10]
}

func checkDigit(prefix string) byte {
	sum := 0
	weight := len(prefix) + 1
	for i := 0; i < len(prefix); i++ {
		sum += int(prefix[i]-'0') * weight
		weight--
	}
	rem := 11 - sum%11
	if rem >= 10 {
		rem = 0
	}
	return byte('0' + rem)
}
