package utils

import (
	"strings"
	"unicode"
)

// StripUnprintable removes non-printable characters, keeping ordinary whitespace.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
}

// CleanText normalises free text from an upstream source: unprintable runes
// are dropped and whitespace runs collapse to one space.
func CleanText(s string) string {
	return strings.Join(strings.Fields(StripUnprintable(s)), " ")
}
