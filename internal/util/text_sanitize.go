package util

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SanitizeText removes bytes and control characters that Postgres text columns reject
// (NUL in particular, which some scraped payloads carry).
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\x00", "")

	r := make([]rune, 0, len(s))
	for _, ch := range s {
		if ch == '\n' || ch == '\r' || ch == '\t' {
			r = append(r, ch)
			continue
		}
		if ch < 0x20 || ch == 0x7f {
			continue
		}
		r = append(r, ch)
	}
	return strings.TrimSpace(string(r))
}

// CollapseSpace replaces every run of whitespace with a single space and trims the ends.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CanonicalName is the form names take before they are used as a natural key:
// sanitized, whitespace-collapsed and NFC-composed so that visually identical names
// from different pages compare equal.
func CanonicalName(s string) string {
	return norm.NFC.String(CollapseSpace(SanitizeText(s)))
}
