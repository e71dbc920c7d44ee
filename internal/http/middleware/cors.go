package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig holds CORS configuration options.
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to read responses. "*" allows
	// all. Empty sends no CORS headers at all.
	AllowedOrigins []string
	AllowedHeaders []string
	ExposedHeaders []string
	// ExcludedPaths are path prefixes that never get CORS headers,
	// whatever the origin.
	ExcludedPaths []string
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
}

// SessionPaths carry platform tokens or account details and must not be
// readable cross-origin.
var SessionPaths = []string{"/api/license", "/api/status"}

// DefaultCORSConfig allows no origins. Browsers can still load the
// playlist and guide directly; only script reads from other sites are
// refused.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, "Location"},
		ExcludedPaths:  SessionPaths,
		MaxAge:         86400,
	}
}

// CORS returns a CORS middleware with default configuration.
func CORS() func(http.Handler) http.Handler {
	return CORSWithConfig(DefaultCORSConfig())
}

// CORSWithConfig returns a CORS middleware that only permits safe methods.
func CORSWithConfig(config CORSConfig) func(http.Handler) http.Handler {
	wildcard := slices.Contains(config.AllowedOrigins, "*")
	allowedHeaders := strings.Join(config.AllowedHeaders, ", ")
	exposedHeaders := strings.Join(config.ExposedHeaders, ", ")

	allowOrigin := func(r *http.Request) string {
		origin := r.Header.Get("Origin")
		if origin == "" || excluded(config.ExcludedPaths, r.URL.Path) {
			return ""
		}
		switch {
		case wildcard:
			return "*"
		case slices.Contains(config.AllowedOrigins, origin):
			return origin
		default:
			return ""
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")

			origin := allowOrigin(r)
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			if exposedHeaders != "" {
				w.Header().Set("Access-Control-Expose-Headers", exposedHeaders)
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
				if config.MaxAge > 0 {
					w.Header().Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func excluded(prefixes []string, path string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
