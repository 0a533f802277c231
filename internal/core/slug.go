package core

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxNameLength bounds derived record names.
const MaxNameLength = 128

// Letters NFD does not decompose into a base letter plus marks.
var transliterations = map[rune]string{
	'ß': "ss", 'æ': "ae", 'œ': "oe", 'ø': "o", 'ł': "l", 'đ': "d", 'ð': "d", 'þ': "th", 'ı': "i",
}

// Slugify derives a record name from free text: lower-cased, diacritics
// stripped, every run of other characters collapsed to a single '-'.
// Returns "" when nothing usable remains.
func Slugify(s string) string {
	s = stripDiacritics(strings.ToLower(strings.TrimSpace(s)))

	var b strings.Builder
	b.Grow(len(s))
	dash := false
	for _, r := range s {
		if t, ok := transliterations[r]; ok {
			b.WriteString(t)
			dash = false
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > MaxNameLength {
		slug = strings.TrimRight(slug[:MaxNameLength], "-")
	}
	return slug
}

// stripDiacritics removes combining marks after NFD decomposition.
func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var result strings.Builder
	result.Grow(len(decomposed))

	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		result.WriteRune(r)
	}

	return result.String()
}
