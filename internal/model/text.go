package model

import "strings"

// MaxDescriptionLen caps stored and posted descriptions, in runes.
const MaxDescriptionLen = 200

// CollapseSpace replaces every whitespace run with a single space and trims.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// CleanPattern normalizes a rule pattern for matching: wildcard markers
// ('%' and '*') are dropped, the rest is trimmed and upper-cased.
func CleanPattern(p string) string {
	p = strings.NewReplacer("%", "", "*", "").Replace(p)
	return strings.ToUpper(strings.TrimSpace(p))
}
