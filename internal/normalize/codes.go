package normalize

import (
	"sort"
	"strings"
)

// NormalizeCode trims whitespace and uppercases an ICD-10 code.
// Returns "" if nothing is left.
func NormalizeCode(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

// IsTrauma reports whether a normalized code belongs to the injury chapters
// (S00-T88), i.e. starts with S or T.
func IsTrauma(code string) bool {
	return code != "" && (code[0] == 'S' || code[0] == 'T')
}

// TraumaCodes normalizes raw code fields and keeps the trauma codes as a
// sorted, de-duplicated set. Empty fields are skipped.
func TraumaCodes(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		code := NormalizeCode(r)
		if !IsTrauma(code) {
			continue
		}
		seen[code] = struct{}{}
	}
	return SortedSet(seen)
}

// SortedSet returns the members of a string set in ascending order.
func SortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// TranslatorToken formats a code for the translator vocabulary: a "D"
// prefix and no separator, e.g. "S71.019A" -> "DS71019A".
func TranslatorToken(code string) string {
	return "D" + strings.ReplaceAll(code, ".", "")
}
