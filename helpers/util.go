package helpers

import (
	"net/url"
	"strings"
)

// NormalizeSpace trims s and collapses every run of whitespace into one space
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ContainsAny reports whether s contains at least one of the keywords.
// Matching is a plain, case-sensitive substring test.
func ContainsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// ResolveURL resolves href against base. Absolute hrefs are returned unchanged.
func ResolveURL(base, href string) (string, error) {
	href = strings.TrimSpace(href)
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}
