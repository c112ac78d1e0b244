package normalize

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

// lookupCodeLen is the length of a bare HCPCS/CPT code. Anything beyond it is
// a modifier suffix.
const lookupCodeLen = 5

var codeSeparators = strings.NewReplacer("-", "", " ", "", ".", "")

// NormalizeCode trims whitespace, uppercases, and strips non-alphanumeric characters.
// Returns nil if the input is nil or the result is empty.
func NormalizeCode(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	s = strings.ToUpper(s)
	s = nonAlphanumeric.ReplaceAllString(s, "")
	if s == "" {
		return nil
	}
	return &s
}

// LookupCode converts a billed procedure code into the key used for reference
// price lookups: dashes, dots and spaces are removed, the result is
// uppercased and truncated to five characters so modifier suffixes are
// dropped. Returns "" when nothing is left.
func LookupCode(code string) string {
	s := codeSeparators.Replace(strings.TrimSpace(code))
	s = strings.ToUpper(s)
	if len(s) > lookupCodeLen {
		s = s[:lookupCodeLen]
	}
	return s
}
