// Package admin guards operator-only routes with a shared static token.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"proptoken/pkg/platform/httputil"
	"proptoken/pkg/requestcontext"
)

const HeaderAdminToken = "X-Admin-Token"

// RequireAdminToken admits requests carrying expected in X-Admin-Token. An
// empty expected admits nothing.
func RequireAdminToken(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenMatches(r.Header.Get(HeaderAdminToken), expected) {
				next.ServeHTTP(w, r)
				return
			}
			if logger != nil {
				logger.WarnContext(r.Context(), "operator route rejected",
					"request_id", requestcontext.RequestID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
				)
			}
			httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{
				"error":             "unauthorized",
				"error_description": "admin token required",
			})
		})
	}
}

func tokenMatches(got, expected string) bool {
	return expected != "" && subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}
