package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"proptoken/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return s.claims, s.err
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var seen, wallet string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.SubmitterID(r.Context())
		wallet = requestcontext.WalletAddress(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name      string
		header    string
		validator stubValidator
		status    int
		submitter string
		wallet    string
	}{
		{"valid token", "Bearer good", stubValidator{claims: &JWTClaims{SubmitterID: "sub-1"}}, http.StatusNoContent, "sub-1", ""},
		{"wallet claim forwarded", "Bearer good", stubValidator{claims: &JWTClaims{SubmitterID: "sub-1", WalletAddress: "0xabc"}}, http.StatusNoContent, "sub-1", "0xabc"},
		{"missing header", "", stubValidator{}, http.StatusUnauthorized, "", ""},
		{"wrong scheme", "Basic abc", stubValidator{}, http.StatusUnauthorized, "", ""},
		{"empty bearer", "Bearer ", stubValidator{}, http.StatusUnauthorized, "", ""},
		{"rejected token", "Bearer bad", stubValidator{err: errors.New("expired")}, http.StatusUnauthorized, "", ""},
		{"token without subject", "Bearer good", stubValidator{claims: &JWTClaims{}}, http.StatusUnauthorized, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen, wallet = "", ""
			req := httptest.NewRequest(http.MethodPost, "/submissions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			RequireAuth(tt.validator, logger)(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.submitter, seen)
			assert.Equal(t, tt.wallet, wallet)
			if tt.status == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"unauthorized","error_description":"`+errDescription(tt.validator)+`"}`, rr.Body.String())
			}
		})
	}
}

func errDescription(v stubValidator) string {
	if v.err != nil || v.claims != nil {
		return "Invalid or expired token"
	}
	return "Missing or invalid authorization header"
}
