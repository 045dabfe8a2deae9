package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"baro-tracker-api/pkg/apierror"
	"baro-tracker-api/pkg/response"
)

// AuthConfig holds configuration for the admin auth middleware.
type AuthConfig struct {
	APIKeys []string
}

// NewAuthMiddleware guards admin routes with X-API-Key or a Bearer key.
// With no keys configured every request is rejected.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					apiKey = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if apiKey == "" {
				response.Error(w, apierror.Unauthorized("Authentication required. Use X-API-Key header."))
				return
			}
			if !isValidKey(apiKey, cfg.APIKeys) {
				LogEntry(r.Context()).Warnf("[Auth] Rejected admin key for %s", r.URL.Path)
				response.Error(w, apierror.Unauthorized("Invalid API key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isValidKey checks if the provided key is in the valid keys list.
func isValidKey(key string, validKeys []string) bool {
	for _, valid := range validKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}
