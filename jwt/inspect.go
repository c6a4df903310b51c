package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned by Inspect when the token carries no exp claim.
var ErrNoExpiry = errors.New("token has no expiry")

// Info is the unverified subset of claims a client cares about.
type Info struct {
	Subject   string
	Kind      string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

var unverifiedParser = jwt.NewParser()

// Inspect decodes token without verifying its signature.
//
// Opaque (non-JWT) tokens return an error; callers fall back to configured defaults.
func Inspect(token string) (Info, error) {
	claims := &Claims{}
	if _, _, err := unverifiedParser.ParseUnverified(token, claims); err != nil {
		return Info{}, err
	}

	info := Info{Subject: claims.Subject, Kind: claims.Kind}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt == nil {
		return info, ErrNoExpiry
	}
	info.ExpiresAt = claims.ExpiresAt.Time
	return info, nil
}

// ExpiresWithin reports whether token expires before now+leeway. Tokens without a readable
// expiry are never reported as expiring.
func ExpiresWithin(token string, leeway time.Duration, now time.Time) bool {
	if token == "" {
		return false
	}
	info, err := Inspect(token)
	if err != nil {
		return false
	}
	return !info.ExpiresAt.After(now.Add(leeway))
}

// TTL returns the time left until token expires, or false when no expiry is readable or the
// token already expired.
func TTL(token string, now time.Time) (time.Duration, bool) {
	info, err := Inspect(token)
	if err != nil {
		return 0, false
	}
	left := info.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0, false
	}
	return left, true
}
