package extraction

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"only whitespace", " \n\t\r\n ", ""},
		{"newline runs", "a\n\n\nb", "a b"},
		{"space runs", "a    b\t\tc", "a b c"},
		{"trim", "  hello  ", "hello"},
		{"null between spaces", "a \x00 b", "a b"},
		{"control chars", "ab\x07c\x1bd", "abcd"},
		{"unicode kept", "Pamantasan  ng Lungsod", "Pamantasan ng Lungsod"},
		{"zero width removed", "co\u200bde", "code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestCleanText_Invariants(t *testing.T) {
	inputs := []string{
		"\x00\x01lead",
		"mixed \n\n\t \x00 \r\n runs   here",
		strings.Repeat("x \x7f ", 50),
		"form\ffeed\vvertical",
	}

	for _, in := range inputs {
		out := CleanText(in)
		for _, r := range out {
			assert.True(t, unicode.IsPrint(r), "non-printable %U in %q", r, out)
		}
		assert.NotContains(t, out, "  ")
		assert.Equal(t, strings.TrimSpace(out), out)
	}
}
