package auth

import (
	"net/url"
	"strings"
)

// ValidateReturnTarget checks a post-login redirect target supplied by the
// client (the "next" query parameter of the OAuth login form).
//
// Only same-origin relative paths are accepted: the target must start with a
// single "/" and carry no scheme or host. This blocks open redirects via
// absolute URLs ("https://evil.example"), protocol-relative URLs ("//evil"),
// and scheme smuggling ("javascript:...").
//
// Returns the cleaned target, or fallback when the target is empty or unsafe.
func ValidateReturnTarget(target, fallback string) string {
	if target == "" {
		return fallback
	}

	u, err := url.Parse(target)
	if err != nil {
		return fallback
	}
	if u.Scheme != "" || u.Host != "" || u.User != nil {
		return fallback
	}
	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return fallback
	}
	// Backslashes are treated as slashes by some browsers.
	if strings.Contains(target, "\\") {
		return fallback
	}

	out := u.Path
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out
}
