package flows

import (
	"context"
	"fmt"

	"github.com/proxyhub/authclient/credentials"
	"github.com/proxyhub/authclient/refresh"
)

// RefreshCallDeps captures refresh endpoint dependencies.
type RefreshCallDeps struct {
	HTTP             Doer
	URL              string
	UserAgent        string
	MaxResponseBytes int64
}

// RunRefreshCall exchanges refreshToken at the refresh endpoint. The call carries no bearer
// header. Any non-2xx answer is reported as refresh.ErrRefreshRejected.
//
// An empty 2xx body yields an empty pair; the new tokens are then expected to arrive as
// cookies.
func RunRefreshCall(ctx context.Context, refreshToken string, deps RefreshCallDeps) (credentials.Pair, error) {
	status, body, err := postJSON(ctx, deps.HTTP, deps.URL, deps.UserAgent,
		map[string]string{"refresh_token": refreshToken}, deps.MaxResponseBytes)
	if err != nil {
		return credentials.Pair{}, err
	}
	if !Success(status) {
		return credentials.Pair{}, fmt.Errorf("%w: status %d", refresh.ErrRefreshRejected, status)
	}
	tokens, err := decodeTokens(body)
	if err != nil {
		return credentials.Pair{}, fmt.Errorf("%w: %w", refresh.ErrRefreshRejected, err)
	}
	return credentials.Pair{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}
