package schema

import (
	"strings"
	"unicode/utf8"
)

// NormalizeFieldName maps a raw header token to a column identifier.
//
// The token is uppercased, every rune outside [A-Z0-9_] becomes '_', runs of
// '_' collapse to one, and a single leading and trailing '_' are removed.
// Distinct headers may normalize to the same name; Builder disambiguates.
func NormalizeFieldName(s string) string {
	s = strings.ToUpper(s)

	var b strings.Builder
	b.Grow(len(s))

	lastUnderscore := false
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	out := b.String()
	out = strings.TrimPrefix(out, "_")
	out = strings.TrimSuffix(out, "_")
	return out
}

// TruncateFieldName caps s at 63 bytes, the identifier limit shared by the
// storage backends, without splitting a UTF-8 sequence.
func TruncateFieldName(s string) string {
	const maxLen = 63
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.ValidString(s[:cut]) {
		cut--
	}
	if cut <= 0 {
		return s[:maxLen]
	}
	return s[:cut]
}
