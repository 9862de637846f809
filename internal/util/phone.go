package util

import (
	"regexp"
	"strings"
)

var phoneJunk = regexp.MustCompile(`[^\d\+]+`)

// NormalizePhone strips formatting and returns an E.164-like number.
// A national number with a leading 0 gets countryCode (digits only, e.g. "44")
// when one is configured; otherwise it is returned as is.
func NormalizePhone(raw, countryCode string) string {
	s := phoneJunk.ReplaceAllString(strings.TrimSpace(raw), "")

	switch {
	case strings.HasPrefix(s, "+"):
		return s
	case strings.HasPrefix(s, "00"):
		return "+" + s[2:]
	case countryCode != "" && strings.HasPrefix(s, "0") && len(s) > 1:
		return "+" + strings.TrimPrefix(countryCode, "+") + s[1:]
	}

	return s
}
