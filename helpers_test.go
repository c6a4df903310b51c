package authclient

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/proxyhub/authclient/internal/mockapi"
)

const (
	testAccessCode = "STORE-CODE-1"
	testUser       = "user-42"
)

var testSecret = []byte("mockapi-test-secret-0123456789abcdef")

func newTestBackend(t testing.TB, cookieMode bool) (*mockapi.Server, *httptest.Server) {
	t.Helper()
	api, err := mockapi.New(mockapi.Config{
		Secret:      testSecret,
		AccessCodes: map[string]string{testAccessCode: testUser},
		CookieMode:  cookieMode,
	})
	if err != nil {
		t.Fatalf("mockapi: %v", err)
	}
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return api, srv
}

type logoutRecorder struct {
	mu      sync.Mutex
	reasons []LogoutReason
}

func (r *logoutRecorder) Logout(_ context.Context, reason LogoutReason) {
	r.mu.Lock()
	r.reasons = append(r.reasons, reason)
	r.mu.Unlock()
}

func (r *logoutRecorder) Reasons() []LogoutReason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LogoutReason(nil), r.reasons...)
}

func newTestClient(t *testing.T, baseURL string, mutate func(*Config), opts ...func(*Builder)) (*Client, *logoutRecorder) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Endpoints.BaseURL = baseURL
	if mutate != nil {
		mutate(&cfg)
	}

	rec := &logoutRecorder{}
	b := New().WithConfig(cfg).WithLogoutFunc(rec.Logout)
	for _, opt := range opts {
		opt(b)
	}
	c, err := b.Build()
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	t.Cleanup(c.Close)
	return c, rec
}

func loginTestClient(t *testing.T, c *Client) {
	t.Helper()
	if err := c.Login(context.Background(), testAccessCode); err != nil {
		t.Fatalf("login: %v", err)
	}
}
