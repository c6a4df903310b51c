package middleware

import (
	"context"
	"net/http"

	"github.com/proxyhub/authclient"
)

type sessionContextKey struct{}

// SessionFromContext returns the session stored by RequireSession.
func SessionFromContext(ctx context.Context) (authclient.SessionInfo, bool) {
	info, ok := ctx.Value(sessionContextKey{}).(authclient.SessionInfo)
	return info, ok
}

// RequireSession redirects to loginPath with 303 when c holds no access token, and
// otherwise passes the SessionInfo to next through the request context.
func RequireSession(c *authclient.Client, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c == nil {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}

			info, err := c.Session(r.Context())
			if err != nil {
				http.Error(w, "session unavailable", http.StatusServiceUnavailable)
				return
			}
			if !info.Authenticated {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
