package credentials

import (
	"context"
	"errors"
)

// ErrCorruptPair is returned when a persisted pair cannot be decoded.
var ErrCorruptPair = errors.New("credential pair corrupt")

// Pair is the current access/refresh credential pair. An empty string means the token is
// absent.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Empty reports whether neither token is present.
func (p Pair) Empty() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// HasRefresh reports whether a refresh token is present.
func (p Pair) HasRefresh() bool {
	return p.RefreshToken != ""
}

// Merge returns p with the non-empty fields of next applied. A refresh response that omits
// the refresh token keeps the current one.
func (p Pair) Merge(next Pair) Pair {
	out := p
	if next.AccessToken != "" {
		out.AccessToken = next.AccessToken
	}
	if next.RefreshToken != "" {
		out.RefreshToken = next.RefreshToken
	}
	return out
}

// Store persists the credential pair.
//
// A Set or Clear must be visible to every Get that happens after it returns. Clear on an
// empty store is not an error.
type Store interface {
	Get(ctx context.Context) (Pair, error)
	Set(ctx context.Context, pair Pair) error
	Clear(ctx context.Context) error
}
