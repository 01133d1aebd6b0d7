package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireAdminToken(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		expected string
		header   string
		status   int
	}{
		{name: "matching token", expected: "s3cret", header: "s3cret", status: http.StatusNoContent},
		{name: "wrong token", expected: "s3cret", header: "guess", status: http.StatusUnauthorized},
		{name: "missing header", expected: "s3cret", status: http.StatusUnauthorized},
		{name: "unconfigured token rejects everything", expected: "", header: "", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/activity", nil)
			if tt.header != "" {
				req.Header.Set(HeaderAdminToken, tt.header)
			}
			rr := httptest.NewRecorder()

			RequireAdminToken(tt.expected, nil)(ok).ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			if tt.status == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"unauthorized","error_description":"admin token required"}`, rr.Body.String())
			}
		})
	}
}
