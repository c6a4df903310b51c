package flows

import (
	"context"
	"fmt"

	"github.com/proxyhub/authclient/credentials"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureTransport
	LoginFailureStatus
	LoginFailureDecode
	LoginFailureNoToken
	LoginFailureStore
)

// LoginResult carries either the stored pair or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	Status  int
	Body    []byte
	Pair    credentials.Pair
}

// LoginRateLimiter bounds login attempts.
type LoginRateLimiter interface {
	CheckLogin(ctx context.Context, key string) error
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	HTTP             Doer
	Store            credentials.Store
	URL              string
	UserAgent        string
	MaxResponseBytes int64
	RateLimiter      LoginRateLimiter
	RateLimitKey     string
}

// RunLogin exchanges an access code for a credential pair and stores it.
func RunLogin(ctx context.Context, accessCode string, deps LoginDeps) LoginResult {
	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckLogin(ctx, deps.RateLimitKey); err != nil {
			return LoginResult{Failure: LoginFailureRateLimited, Err: err}
		}
	}

	status, body, err := postJSON(ctx, deps.HTTP, deps.URL, deps.UserAgent,
		map[string]string{"access_code": accessCode}, deps.MaxResponseBytes)
	if err != nil {
		return LoginResult{Failure: LoginFailureTransport, Err: err, Status: status}
	}
	if !Success(status) {
		return LoginResult{Failure: LoginFailureStatus, Status: status, Body: body}
	}

	tokens, err := decodeTokens(body)
	if err != nil {
		return LoginResult{Failure: LoginFailureDecode, Err: err, Status: status, Body: body}
	}
	pair := credentials.Pair{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}

	if pair.AccessToken == "" {
		// Cookie-backed stores were filled by the response.
		stored, err := deps.Store.Get(ctx)
		if err != nil {
			return LoginResult{Failure: LoginFailureStore, Err: fmt.Errorf("read credentials: %w", err), Status: status}
		}
		if stored.AccessToken == "" {
			return LoginResult{Failure: LoginFailureNoToken, Status: status, Body: body}
		}
		return LoginResult{Status: status, Body: body, Pair: stored}
	}

	if err := deps.Store.Set(ctx, pair); err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: fmt.Errorf("store credentials: %w", err), Status: status}
	}
	return LoginResult{Status: status, Body: body, Pair: pair}
}
