// Package nickname normalizes Exchange mail nicknames (aliases) and suggests
// collision-free replacements for aliases that Exchange Online will reject.
package nickname

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxLength is the longest alias Exchange accepts.
	MaxLength = 64

	// StemLength is the length a normalized alias is cut to, leaving room
	// for a disambiguation suffix.
	StemLength = 60
)

// ForbiddenCharacters lists every character that may not appear in a mail
// nickname.
const ForbiddenCharacters = " \\!#$%&*+/=?^`{}|~<>()';:,[]\"@"

// forbidden is the lookup table for ForbiddenCharacters. All entries are ASCII.
var forbidden = func() [utf8.RuneSelf]bool {
	var table [utf8.RuneSelf]bool
	for i := 0; i < len(ForbiddenCharacters); i++ {
		table[ForbiddenCharacters[i]] = true
	}
	return table
}()

func isForbidden(r rune) bool {
	return r < utf8.RuneSelf && forbidden[r]
}

// Normalize removes forbidden characters, strips leading and trailing periods
// and truncates the result to StemLength characters. Normalize(Normalize(s))
// always equals Normalize(s).
func Normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if isForbidden(r) {
			return -1
		}
		return r
	}, s)
	s = strings.Trim(s, ".")

	if utf8.RuneCountInString(s) > StemLength {
		s = truncate(s, StemLength)
		// Truncation can expose a trailing period.
		s = strings.TrimRight(s, ".")
	}
	return s
}

// IsValid reports whether s is acceptable as a mail nickname as-is.
func IsValid(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < 1 || n > MaxLength {
		return false
	}
	if strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return false
	}
	return strings.IndexFunc(s, isForbidden) < 0
}

// truncate returns the first n characters of s.
func truncate(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
