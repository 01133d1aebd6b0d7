// Package auth authenticates submitters from bearer tokens.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"proptoken/pkg/platform/httputil"
	"proptoken/pkg/requestcontext"
)

// JWTValidator checks a raw bearer token.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims is what a validated token says about its submitter.
type JWTClaims struct {
	SubmitterID   string
	WalletAddress string
	JTI           string
}

const (
	descMissingToken = "Missing or invalid authorization header"
	descInvalidToken = "Invalid or expired token"
)

// RequireAuth rejects requests without a valid bearer token. The token subject
// becomes the submitter id and its wallet claim, when present, the default
// wallet for the request.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := bearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				reject(w, descMissingToken)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err == nil && claims.SubmitterID == "" {
				err = errMissingSubject
			}
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				reject(w, descInvalidToken)
				return
			}

			ctx = requestcontext.WithSubmitterID(ctx, claims.SubmitterID)
			if claims.WalletAddress != "" {
				ctx = requestcontext.WithWalletAddress(ctx, claims.WalletAddress)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type authError string

func (e authError) Error() string { return string(e) }

const errMissingSubject = authError("token has no subject")

func bearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

func reject(w http.ResponseWriter, description string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "unauthorized",
		"error_description": description,
	})
}
