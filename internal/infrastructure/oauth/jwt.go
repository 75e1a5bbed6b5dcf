package oauth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTExpiry reads the exp claim of a JWT access token without verifying it.
// ok is false when the token is not a JWT or carries no exp.
func JWTExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
