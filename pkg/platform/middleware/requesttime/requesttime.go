// Package requesttime pins one "now" per request. Oracle outcomes and
// satellite captures stamped during the request share it.
package requesttime

import (
	"net/http"
	"time"

	"proptoken/pkg/requestcontext"
)

// Middleware stamps each request with the wall clock.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock stamps each request with now().
func WithClock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestcontext.WithTime(r.Context(), now())))
		})
	}
}
