package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Collapse trims a string and folds any internal run of whitespace
// (including newlines scraped out of HTML) into a single space.
func Collapse(s string) string {
	s = strings.TrimSpace(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}

func StripNonPrintable(s string) string {
	out := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			out.WriteRune(c)
		}
	}
	return out.String()
}

// Clean is the standard treatment for text pulled out of a scraped
// element: drop control characters, then collapse whitespace.
func Clean(s string) string {
	return Collapse(StripNonPrintable(s))
}

func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	// don't cut a rune in half
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
