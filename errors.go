package authclient

import (
	"errors"

	"github.com/proxyhub/authclient/internal/rate"
	"github.com/proxyhub/authclient/refresh"
)

var (
	// ErrUnauthorized matches every *APIError with status 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionExpired is the terminal authorization error. Credentials have been cleared and
	// the logout hook has run.
	ErrSessionExpired = refresh.ErrSessionExpired
	// ErrRefreshTimeout indicates the refresh call exceeded Refresh.Timeout.
	ErrRefreshTimeout = refresh.ErrRefreshTimeout
	// ErrRefreshRejected indicates the refresh endpoint refused the refresh token.
	ErrRefreshRejected = refresh.ErrRefreshRejected
	// ErrNoRefreshToken indicates no refresh token was stored when a refresh was needed.
	ErrNoRefreshToken = refresh.ErrNoRefreshToken
	// ErrRefreshRateLimited indicates the refresh throttle rejected a cycle.
	ErrRefreshRateLimited = refresh.ErrRefreshThrottled
	// ErrReplayUnauthorized indicates a request was refused again after its single replay.
	ErrReplayUnauthorized = errors.New("replayed request unauthorized")
	// ErrLoginRateLimited indicates the login throttle rejected an attempt.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrLoginNoToken indicates a successful login response carried no access token.
	ErrLoginNoToken = errors.New("login response carried no access token")
	// ErrClientClosed is returned by operations on a closed Client.
	ErrClientClosed = errors.New("client closed")
	// ErrInvalidRequest indicates a request descriptor that cannot be sent.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRateLimited is the internal limiter error wrapped by the throttle errors.
	ErrRateLimited = rate.ErrRateLimited
)
