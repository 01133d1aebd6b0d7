package jwttoken

import (
	authmw "proptoken/pkg/platform/middleware/auth"
)

// ValidatorFunc adapts a token check to authmw.JWTValidator.
type ValidatorFunc func(token string) (*authmw.JWTClaims, error)

func (f ValidatorFunc) ValidateToken(token string) (*authmw.JWTClaims, error) {
	return f(token)
}

// NewJWTServiceAdapter exposes service as the auth middleware's validator.
// The token subject becomes the submitter id.
func NewJWTServiceAdapter(service *JWTService) ValidatorFunc {
	return func(token string) (*authmw.JWTClaims, error) {
		claims, err := service.ValidateToken(token)
		if err != nil {
			return nil, err
		}
		return &authmw.JWTClaims{
			SubmitterID:   claims.Subject,
			WalletAddress: claims.WalletAddress,
			JTI:           claims.ID,
		}, nil
	}
}
