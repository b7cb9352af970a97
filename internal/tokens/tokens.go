// Package tokens reads claims from provider-issued JWTs without verifying
// them. Signature checks belong to the provider and the OIDC verifier; the
// desk only needs to know when a token stops being usable.
package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoExpiry = errors.New("token has no exp claim")

// Claims parses the payload of raw.
func Claims(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ExpiresAt returns the exp claim of raw.
func ExpiresAt(raw string) (time.Time, error) {
	claims, err := Claims(raw)
	if err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}

// Expired reports whether raw expires within skew of now. Unparseable
// tokens count as expired.
func Expired(raw string, now time.Time, skew time.Duration) bool {
	exp, err := ExpiresAt(raw)
	if err != nil {
		return true
	}
	return !now.Add(skew).Before(exp)
}
