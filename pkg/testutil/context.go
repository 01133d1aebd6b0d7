package testutil

import (
	"net/http"

	"proptoken/pkg/requestcontext"
)

// WithSubmitter simulates what the auth middleware does for authenticated requests.
func WithSubmitter(req *http.Request, submitterID string) *http.Request {
	if submitterID == "" {
		return req
	}
	return req.WithContext(requestcontext.WithSubmitterID(req.Context(), submitterID))
}
