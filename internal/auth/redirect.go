package auth

import (
	"net/url"
	"strings"
)

// DefaultRedirectPath is where users land when no usable callback is given.
const DefaultRedirectPath = "/dashboard"

// ResolveRedirect decides where to send a user after sign-in.
// A relative path is joined to baseURL, an absolute URL with exactly the
// base origin (scheme, host and port) is kept, and anything else falls back
// to baseURL + DefaultRedirectPath.
func ResolveRedirect(target, baseURL string) string {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return DefaultRedirectPath
	}
	root := strings.TrimRight(base.Scheme+"://"+base.Host+base.Path, "/")
	fallback := root + DefaultRedirectPath

	if target == "" || strings.ContainsAny(target, "\\\r\n\t") {
		return fallback
	}

	if strings.HasPrefix(target, "/") {
		if strings.HasPrefix(target, "//") {
			return fallback
		}
		return root + target
	}

	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" || u.User != nil {
		return fallback
	}
	if sameOrigin(u, base) {
		return u.String()
	}
	return fallback
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(a.Hostname(), b.Hostname()) &&
		effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		return "443"
	case "http":
		return "80"
	}
	return ""
}
