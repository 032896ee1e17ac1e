package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiryFromJWT parses the exp claim out of an access token that happens
// to be a JWT (common for oauth-device-flow and some bearer providers)
// without verifying its signature — the Auth Center trusts the provider
// that issued it and only needs the expiry for proactive-refresh
// scheduling, not for authorization decisions.
func ExpiryFromJWT(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	_, _, err := parser.ParseUnverified(token, claims)
	if err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
