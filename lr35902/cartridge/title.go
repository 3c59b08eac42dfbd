package cartridge

import (
	"strings"
	"unicode"
)

// cleanTitle makes a parsed title safe for display:
// NUL bytes become spaces, non-printable runes become '?', surrounding
// whitespace is trimmed and empty titles get a placeholder.
func cleanTitle(title string) string {
	runes := make([]rune, 0, len(title))

	for _, r := range title {
		if r == 0 {
			r = ' '
		} else if !unicode.IsPrint(r) {
			r = '?'
		}
		runes = append(runes, r)
	}

	cleaned := strings.TrimSpace(string(runes))
	if cleaned == "" {
		return "(Untitled)"
	}

	return cleaned
}
