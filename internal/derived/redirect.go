package derived

import (
	"net/url"
	"strings"
	"unicode"
)

// SanitizeRedirectURL returns raw if it is safe to redirect to after sign-in.
// Any control character is rejected, since browsers drop tab and newline and
// "/\t/host" would become protocol-relative. Root-relative paths are accepted
// unless they could be read as protocol-relative. Absolute URLs are accepted
// only when their scheme://host is one of allowedOrigins, or the host is
// localhost and devMode is set.
func SanitizeRedirectURL(raw string, allowedOrigins []string, devMode bool) (string, bool) {
	if raw == "" || strings.ContainsFunc(raw, unicode.IsControl) {
		return "", false
	}
	if strings.HasPrefix(raw, "/") {
		if strings.Contains(raw, "//") || strings.Contains(raw, `\`) {
			return "", false
		}
		return raw, true
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if devMode && host == "localhost" {
		return raw, true
	}
	origin := scheme + "://" + host
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return raw, true
		}
	}
	return "", false
}
