package domain

import "strings"

// NormalizeISBN drops hyphens and whitespace and upper-cases a trailing x.
func NormalizeISBN(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r == '-' || r == ' ' || r == '\t' || r == '\n' || r == '\r':
			continue
		case r == 'x':
			b.WriteRune('X')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateISBN reports whether raw is a well-formed ISBN-10 or ISBN-13 with a
// correct check digit. Hyphens and spaces are ignored.
func ValidateISBN(raw string) bool {
	code := NormalizeISBN(raw)
	switch len(code) {
	case 10:
		return validISBN10(code)
	case 13:
		return validISBN13(code)
	default:
		return false
	}
}

func validISBN10(code string) bool {
	sum := 0
	for i := 0; i < 10; i++ {
		c := code[i]
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c == 'X' && i == 9:
			v = 10
		default:
			return false
		}
		sum += (10 - i) * v
	}
	return sum%11 == 0
}

func validISBN13(code string) bool {
	sum := 0
	for i := 0; i < 13; i++ {
		c := code[i]
		if c < '0' || c > '9' {
			return false
		}
		v := int(c - '0')
		if i%2 == 1 {
			v *= 3
		}
		sum += v
	}
	return sum%10 == 0
}
