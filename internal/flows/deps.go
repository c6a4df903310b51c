package flows

import (
	"context"
	"net/http"

	"github.com/proxyhub/authclient/credentials"
)

// Doer sends one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Deps groups flow dependency sets. The Client builds this once and delegates to the
// matching flow.
type Deps struct {
	Dispatch DispatchDeps
	Refresh  RefreshCallDeps
	Login    LoginDeps
	Verify   VerifyDeps
	Logout   LogoutDeps
}

// Service is the centralized flow runner built once by the Client.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

func (s Service) Dispatch(ctx context.Context, out Outbound) DispatchResult {
	return RunDispatch(ctx, out, s.deps.Dispatch)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) (credentials.Pair, error) {
	return RunRefreshCall(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Login(ctx context.Context, accessCode string) LoginResult {
	return RunLogin(ctx, accessCode, s.deps.Login)
}

func (s Service) Verify(ctx context.Context) VerifyResult {
	return RunVerify(ctx, s.deps.Verify)
}

func (s Service) Logout(ctx context.Context) LogoutResult {
	return RunLogout(ctx, s.deps.Logout)
}
