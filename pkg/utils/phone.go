package utils

import (
	"regexp"
	"strings"
)

var e164 = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// IsE164 reports whether s is a "+" followed by 8 to 15 digits with a non-zero lead.
func IsE164(s string) bool {
	return e164.MatchString(s)
}

// MaskPhone keeps the country prefix and last two digits for log output.
func MaskPhone(s string) string {
	if len(s) <= 5 {
		return strings.Repeat("*", len(s))
	}
	return s[:3] + strings.Repeat("*", len(s)-5) + s[len(s)-2:]
}
