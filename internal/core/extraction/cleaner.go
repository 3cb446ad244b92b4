package extraction

import (
	"strings"
	"unicode"
)

// CleanText drops non-printable characters, collapses every whitespace run
// (newlines included) to a single space and trims the ends.
func CleanText(s string) string {
	printable := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
	return strings.Join(strings.Fields(printable), " ")
}
