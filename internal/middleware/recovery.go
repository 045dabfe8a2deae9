package middleware

import (
	"net/http"
	"runtime/debug"

	"baro-tracker-api/pkg/apierror"
	"baro-tracker-api/pkg/response"
)

// Recovery is a middleware that recovers from panics.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				LogEntry(r.Context()).Errorf("[HTTP] PANIC: %v\n%s", err, debug.Stack())
				response.Error(w, apierror.InternalError("internal server error"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
