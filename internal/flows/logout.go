package flows

import (
	"context"
	"fmt"

	"github.com/proxyhub/authclient/credentials"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Store credentials.Store
}

// LogoutResult reports whether credentials were present and removed.
type LogoutResult struct {
	Cleared bool
	Err     error
}

// RunLogout clears the store. An already empty store is a no-op and reports
// Cleared=false, so callers run their logout side effects at most once.
func RunLogout(ctx context.Context, deps LogoutDeps) LogoutResult {
	pair, err := deps.Store.Get(ctx)
	if err != nil {
		// An unreadable store is cleared regardless.
		if clearErr := deps.Store.Clear(ctx); clearErr != nil {
			return LogoutResult{Err: fmt.Errorf("clear credentials: %w", clearErr)}
		}
		return LogoutResult{Cleared: true}
	}
	if pair.Empty() {
		return LogoutResult{}
	}
	if err := deps.Store.Clear(ctx); err != nil {
		return LogoutResult{Err: fmt.Errorf("clear credentials: %w", err)}
	}
	return LogoutResult{Cleared: true}
}
