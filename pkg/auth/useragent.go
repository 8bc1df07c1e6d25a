package auth

import (
	"regexp"
	"strings"
)

var (
	browserPattern = regexp.MustCompile(`(?i)(chrome|firefox|safari|edge|ie|opera)[/\s](\d+)`)
	osPattern      = regexp.MustCompile(`(?i)(windows|mac|linux|android|ios)`)
)

// ParseUserAgent summarizes a User-Agent header as "Browser Version on OS".
// Unrecognized parts become "Unknown".
func ParseUserAgent(userAgent string) string {
	browser := "Unknown"
	if m := browserPattern.FindStringSubmatch(userAgent); m != nil {
		browser = m[1] + " " + m[2]
	}

	os := "Unknown"
	if m := osPattern.FindStringSubmatch(userAgent); m != nil {
		os = m[1]
	}

	return strings.TrimSpace(browser) + " on " + os
}
