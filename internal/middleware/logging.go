package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Logging is a middleware that logs HTTP requests.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		entry := LogEntry(r.Context()).WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"remote":   r.RemoteAddr,
			"status":   wrapped.statusCode,
			"duration": time.Since(start).String(),
		})
		switch {
		case wrapped.statusCode >= http.StatusInternalServerError:
			entry.Error("[HTTP] Request failed")
		case wrapped.statusCode >= http.StatusBadRequest:
			entry.Warn("[HTTP] Request rejected")
		default:
			entry.Info("[HTTP] Request served")
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
