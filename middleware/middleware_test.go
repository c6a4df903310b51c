package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/proxyhub/authclient"
	"github.com/proxyhub/authclient/internal/mockapi"
)

func newBackendClient(t *testing.T) (*mockapi.Server, *httptest.Server, *authclient.Client) {
	t.Helper()
	api, err := mockapi.New(mockapi.Config{
		Secret:      []byte("middleware-test-secret-0123456789abcdef"),
		AccessCodes: map[string]string{"CODE-7": "user-7"},
	})
	if err != nil {
		t.Fatalf("mockapi: %v", err)
	}
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	c, err := authclient.New().WithBaseURL(srv.URL).Build()
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	t.Cleanup(c.Close)
	return api, srv, c
}

func TestTransportRefreshesAndReplays(t *testing.T) {
	api, srv, c := newBackendClient(t)
	if err := c.Login(context.Background(), "CODE-7"); err != nil {
		t.Fatalf("login: %v", err)
	}
	api.ExpireAccessTokens()

	hc := NewHTTPClient(c)
	body := strings.NewReader(`{"proxy_id":"socks5-us-1","days":1}`)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/orders", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer caller-supplied")

	resp, err := hc.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 201 after replay, got %d: %s", resp.StatusCode, raw)
	}
	var order struct {
		TotalCents int `json:"total_cents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil || order.TotalCents != 500 {
		t.Fatalf("unexpected order %+v (%v)", order, err)
	}
	if api.RefreshCalls() != 1 {
		t.Fatalf("expected one refresh, got %d", api.RefreshCalls())
	}
}

func TestTransportPassesNonAuthStatuses(t *testing.T) {
	_, srv, c := newBackendClient(t)
	if err := c.Login(context.Background(), "CODE-7"); err != nil {
		t.Fatalf("login: %v", err)
	}

	resp, err := NewHTTPClient(c).Post(srv.URL+"/orders", "application/json", strings.NewReader(`{"proxy_id":"nope","days":1}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestTransportRejectsForeignHost(t *testing.T) {
	_, _, c := newBackendClient(t)
	_, err := NewHTTPClient(c).Get("http://collector.invalid/steal")
	if err == nil {
		t.Fatal("expected foreign host to be rejected")
	}
}

func TestRequireSession(t *testing.T) {
	_, _, c := newBackendClient(t)

	var seen authclient.SessionInfo
	h := RequireSession(c, "/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	if err := c.Login(context.Background(), "CODE-7"); err != nil {
		t.Fatalf("login: %v", err)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected handler to run, got %d", rec.Code)
	}
	if seen.Subject != "user-7" {
		t.Fatalf("expected session subject in context, got %+v", seen)
	}
}
