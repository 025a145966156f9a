package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"music-player-go/logcolors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

// PathMatcher reports whether a request path is in a set. Entries ending
// in * match by prefix.
type PathMatcher struct {
	exact    map[string]bool
	prefixes []string
}

func NewPathMatcher(paths []string) PathMatcher {
	m := PathMatcher{exact: make(map[string]bool)}
	for _, p := range paths {
		if strings.HasSuffix(p, "*") {
			m.prefixes = append(m.prefixes, strings.TrimSuffix(p, "*"))
			continue
		}
		m.exact[p] = true
	}
	return m
}

func (m PathMatcher) Match(path string) bool {
	if m.exact[path] {
		return true
	}
	for _, prefix := range m.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func writeAuthError(w http.ResponseWriter, title, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": title, "message": message})
}

// APIKeyMiddleware requires the X-API-Key header when enabled.
// If required is false, all requests pass through.
// If required is true but apiKey is empty, it warns and lets requests through.
// Public paths (like /health) never need a key.
func APIKeyMiddleware(apiKey string, required bool, publicPaths []string) func(http.Handler) http.Handler {
	public := NewPathMatcher(publicPaths)
	if required && apiKey == "" {
		log.Warnf("%s API key required but not configured, control API is open", logcolors.LogAPIKey)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !required || apiKey == "" || public.Match(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			providedKey := r.Header.Get("X-API-Key")
			if providedKey == "" {
				log.Warnf("%s Missing API key from %s for %s %s", logcolors.LogAPIKey, r.RemoteAddr, r.Method, r.URL.Path)
				writeAuthError(w, "API key required", "Provide a valid API key via X-API-Key header")
				return
			}

			if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
				log.Warnf("%s Invalid API key from %s for %s %s", logcolors.LogAPIKey, r.RemoteAddr, r.Method, r.URL.Path)
				writeAuthError(w, "Invalid API key", "The provided API key is not valid")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
