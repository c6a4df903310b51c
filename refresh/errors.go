package refresh

import "errors"

var (
	// ErrSessionExpired wraps every terminal refresh failure. The credential store has been
	// cleared by the time a caller sees it.
	ErrSessionExpired = errors.New("session expired")
	// ErrRefreshRejected indicates the refresh endpoint refused the refresh token.
	ErrRefreshRejected = errors.New("refresh rejected")
	// ErrRefreshTimeout indicates the refresh call did not finish within the timeout.
	ErrRefreshTimeout = errors.New("refresh timed out")
	// ErrNoRefreshToken indicates the store held no refresh token.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrRefreshThrottled indicates the refresh budget was exhausted. Credentials are kept.
	ErrRefreshThrottled = errors.New("refresh throttled")
	// ErrPersistFailed indicates the refreshed credentials could not be stored. The cycle
	// fails without ending the session.
	ErrPersistFailed = errors.New("refreshed credentials not persisted")
	// ErrInvalidDeps indicates New was called without a store or refresh function.
	ErrInvalidDeps = errors.New("invalid refresh coordinator dependencies")
)
