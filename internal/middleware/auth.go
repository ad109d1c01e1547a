package middleware

import (
	"encoding/json"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/dukerupert/noteflow/internal/auth"
	"github.com/dukerupert/noteflow/internal/model"
)

type SessionResolver interface {
	Resolve(r *http.Request) *auth.Session
}

// LoadIdentity resolves the session cookie on every request and stores the
// identity in the request context. Anonymous requests pass through untouched.
func LoadIdentity(sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sess := sessions.Resolve(r); sess != nil {
				r = r.WithContext(auth.WithIdentity(r.Context(), sess.Identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Guard gates whole path prefixes on the presence of an identity.
type Guard struct {
	prefixes   []string
	signInPath string
}

// Decision is the outcome of Guard.Authorize. Redirect is set when Allow is false.
type Decision struct {
	Allow    bool
	Redirect string
}

// NewGuard protects each pattern and everything below it. A trailing
// "/:path*" or "/*" is accepted and ignored.
func NewGuard(patterns []string, signInPath string) *Guard {
	g := &Guard{signInPath: signInPath}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		p = strings.TrimSuffix(p, "/:path*")
		p = strings.TrimSuffix(p, "/*")
		if p == "" {
			continue
		}
		g.prefixes = append(g.prefixes, path.Clean("/"+p))
	}
	return g
}

// Protected reports whether requests to p need an identity.
func (g *Guard) Protected(p string) bool {
	p = path.Clean("/" + p)
	for _, prefix := range g.prefixes {
		if prefix == "/" || p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}

// Authorize decides for a request URI (path with optional query). Open paths
// are always allowed; protected ones need a non-nil identity.
func (g *Guard) Authorize(requestURI string, identity *model.Identity) Decision {
	p, _, _ := strings.Cut(requestURI, "?")
	if !g.Protected(p) || (identity != nil && identity.ID != "") {
		return Decision{Allow: true}
	}
	return Decision{
		Redirect: g.signInPath + "?" + url.Values{"callbackUrl": {requestURI}}.Encode(),
	}
}

// Middleware applies Authorize before any handler runs.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var identity *model.Identity
		if id, ok := auth.FromContext(r.Context()); ok {
			identity = &id
		}

		d := g.Authorize(r.URL.RequestURI(), identity)
		if !d.Allow {
			redirect(w, r, d.Redirect)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireIdentity answers 401 JSON for anonymous API calls.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error":   "unauthorized",
				"message": "authentication required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// redirect is HTMX-aware: it sets HX-Redirect instead of answering 303.
func redirect(w http.ResponseWriter, r *http.Request, to string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", to)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}
