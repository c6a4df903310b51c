package flows

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/proxyhub/authclient/credentials"
	"github.com/proxyhub/authclient/refresh"
)

type capturedRequest struct {
	method string
	path   string
	header http.Header
	body   string
}

func newCaptureServer(t *testing.T, status int, body string) (*httptest.Server, chan capturedRequest) {
	t.Helper()
	seen := make(chan capturedRequest, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		seen <- capturedRequest{method: r.Method, path: r.URL.Path, header: r.Header.Clone(), body: string(raw)}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestRunDispatchAttachesBearer(t *testing.T) {
	srv, seen := newCaptureServer(t, http.StatusOK, `{"items":[]}`)
	store := credentials.NewMemoryStore(credentials.Pair{AccessToken: "a1", RefreshToken: "r1"})

	res := RunDispatch(context.Background(), Outbound{
		Method:    http.MethodGet,
		URL:       srv.URL + "/proxies",
		Header:    http.Header{"Authorization": []string{"Bearer caller-supplied"}},
		RequestID: "req-1",
	}, DispatchDeps{HTTP: srv.Client(), Store: store, UserAgent: "authclient-test"})

	if res.Err != nil || res.Status != http.StatusOK {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.UsedToken != "a1" {
		t.Fatalf("expected used token a1, got %q", res.UsedToken)
	}
	got := <-seen
	if got.header.Get("Authorization") != "Bearer a1" {
		t.Fatalf("unexpected authorization header %q", got.header.Get("Authorization"))
	}
	if got.header.Get("X-Request-ID") != "req-1" || got.header.Get("User-Agent") != "authclient-test" {
		t.Fatalf("missing request headers: %v", got.header)
	}
	if string(res.Body) != `{"items":[]}` {
		t.Fatalf("unexpected body %q", res.Body)
	}
}

func TestRunDispatchUnauthenticatedWithoutToken(t *testing.T) {
	srv, seen := newCaptureServer(t, http.StatusUnauthorized, `{"detail":"not authenticated"}`)
	store := credentials.NewMemoryStore(credentials.Pair{})

	res := RunDispatch(context.Background(), Outbound{
		Method: http.MethodPost,
		URL:    srv.URL + "/orders",
		Body:   []byte(`{"product":"socks5"}`),
		Header: http.Header{"Authorization": []string{"Bearer stale"}},
	}, DispatchDeps{HTTP: srv.Client(), Store: store})

	if res.Status != http.StatusUnauthorized || res.UsedToken != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	got := <-seen
	if got.header.Get("Authorization") != "" {
		t.Fatalf("request must be unauthenticated, got %q", got.header.Get("Authorization"))
	}
	if got.body != `{"product":"socks5"}` {
		t.Fatalf("body not forwarded: %q", got.body)
	}
}

func TestRunDispatchTransportError(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusOK, "")
	url := srv.URL
	srv.Close()

	res := RunDispatch(context.Background(), Outbound{Method: http.MethodGet, URL: url},
		DispatchDeps{HTTP: http.DefaultClient, Store: credentials.NewMemoryStore(credentials.Pair{AccessToken: "a1"})})
	if res.Failure != DispatchFailureTransport || res.Err == nil || res.Status != 0 {
		t.Fatalf("expected transport failure, got %+v", res)
	}
}

func TestRunDispatchCapsBody(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusOK, strings.Repeat("x", 64))
	res := RunDispatch(context.Background(), Outbound{Method: http.MethodGet, URL: srv.URL},
		DispatchDeps{HTTP: srv.Client(), Store: credentials.NewMemoryStore(credentials.Pair{}), MaxResponseBytes: 16})
	if res.Failure != DispatchFailureBody || !errors.Is(res.Err, ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge, got %+v", res)
	}
}

func TestRunRefreshCall(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv, seen := newCaptureServer(t, http.StatusOK, `{"access_token":"a2","refresh_token":"r2"}`)
		pair, err := RunRefreshCall(context.Background(), "r1", RefreshCallDeps{HTTP: srv.Client(), URL: srv.URL + "/auth/refresh"})
		if err != nil {
			t.Fatalf("refresh call: %v", err)
		}
		if pair.AccessToken != "a2" || pair.RefreshToken != "r2" {
			t.Fatalf("unexpected pair %+v", pair)
		}
		got := <-seen
		if got.header.Get("Authorization") != "" {
			t.Fatal("refresh call must not carry a bearer header")
		}
		var payload map[string]string
		if err := json.Unmarshal([]byte(got.body), &payload); err != nil || payload["refresh_token"] != "r1" {
			t.Fatalf("unexpected payload %q", got.body)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		srv, _ := newCaptureServer(t, http.StatusUnauthorized, `{"detail":"invalid refresh token"}`)
		_, err := RunRefreshCall(context.Background(), "bad", RefreshCallDeps{HTTP: srv.Client(), URL: srv.URL})
		if !errors.Is(err, refresh.ErrRefreshRejected) {
			t.Fatalf("expected ErrRefreshRejected, got %v", err)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		srv, _ := newCaptureServer(t, http.StatusNoContent, "")
		pair, err := RunRefreshCall(context.Background(), "r1", RefreshCallDeps{HTTP: srv.Client(), URL: srv.URL})
		if err != nil || !pair.Empty() {
			t.Fatalf("expected empty pair, got %+v %v", pair, err)
		}
	})
}

type denyLogin struct{}

func (denyLogin) CheckLogin(context.Context, string) error { return errors.New("limited") }

func TestRunLogin(t *testing.T) {
	t.Run("stores pair", func(t *testing.T) {
		srv, seen := newCaptureServer(t, http.StatusOK, `{"access_token":"a1","refresh_token":"r1","user":{"id":7}}`)
		store := credentials.NewMemoryStore(credentials.Pair{})
		res := RunLogin(context.Background(), "CODE-123", LoginDeps{HTTP: srv.Client(), Store: store, URL: srv.URL + "/auth/login"})
		if res.Failure != LoginFailureNone || res.Err != nil {
			t.Fatalf("unexpected failure %+v", res)
		}
		pair, _ := store.Get(context.Background())
		if pair.AccessToken != "a1" || pair.RefreshToken != "r1" {
			t.Fatalf("pair not stored: %+v", pair)
		}
		if got := <-seen; !strings.Contains(got.body, `"access_code":"CODE-123"`) {
			t.Fatalf("unexpected login payload %q", got.body)
		}
	})

	t.Run("status failure", func(t *testing.T) {
		srv, _ := newCaptureServer(t, http.StatusUnauthorized, `{"detail":"bad code","error_code":"INVALID_CODE"}`)
		store := credentials.NewMemoryStore(credentials.Pair{})
		res := RunLogin(context.Background(), "nope", LoginDeps{HTTP: srv.Client(), Store: store, URL: srv.URL})
		if res.Failure != LoginFailureStatus || res.Status != http.StatusUnauthorized {
			t.Fatalf("expected status failure, got %+v", res)
		}
		if pair, _ := store.Get(context.Background()); !pair.Empty() {
			t.Fatalf("failed login must not store credentials: %+v", pair)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		res := RunLogin(context.Background(), "code", LoginDeps{RateLimiter: denyLogin{}})
		if res.Failure != LoginFailureRateLimited {
			t.Fatalf("expected rate limited, got %+v", res)
		}
	})
}

func TestRunVerify(t *testing.T) {
	srv, seen := newCaptureServer(t, http.StatusOK, `{"valid":true,"user_id":"u1"}`)
	store := credentials.NewMemoryStore(credentials.Pair{AccessToken: "a1"})
	res := RunVerify(context.Background(), VerifyDeps{
		Dispatch:  DispatchDeps{HTTP: srv.Client(), Store: store},
		URL:       srv.URL + "/auth/verify",
		RequestID: func() string { return "req-verify" },
	})
	if res.Err != nil || !res.Valid || res.Fields["user_id"] != "u1" {
		t.Fatalf("unexpected verify result %+v", res)
	}
	got := <-seen
	if got.method != http.MethodPost || got.header.Get("Authorization") != "Bearer a1" {
		t.Fatalf("unexpected verify request %+v", got)
	}
}

func TestRunLogoutIdempotent(t *testing.T) {
	store := credentials.NewMemoryStore(credentials.Pair{AccessToken: "a1", RefreshToken: "r1"})
	deps := LogoutDeps{Store: store}

	first := RunLogout(context.Background(), deps)
	if first.Err != nil || !first.Cleared {
		t.Fatalf("first logout: %+v", first)
	}
	second := RunLogout(context.Background(), deps)
	if second.Err != nil || second.Cleared {
		t.Fatalf("second logout must be a no-op: %+v", second)
	}
}

func TestRunDispatchTokenOverride(t *testing.T) {
	srv, seen := newCaptureServer(t, http.StatusOK, "{}")
	store := credentials.NewMemoryStore(credentials.Pair{AccessToken: "stored"})
	res := RunDispatch(context.Background(), Outbound{Method: http.MethodGet, URL: srv.URL, Token: "fresh"},
		DispatchDeps{HTTP: srv.Client(), Store: store})
	if res.UsedToken != "fresh" {
		t.Fatalf("expected override token, got %q", res.UsedToken)
	}
	if got := <-seen; got.header.Get("Authorization") != "Bearer fresh" {
		t.Fatalf("unexpected authorization header %q", got.header.Get("Authorization"))
	}
}

func TestRunDispatchReportsWrittenBeforeResponse(t *testing.T) {
	wrote := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-wrote:
			w.WriteHeader(http.StatusOK)
		case <-time.After(2 * time.Second):
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)

	var calls atomic.Int32
	res := RunDispatch(context.Background(), Outbound{
		Method: http.MethodGet,
		URL:    srv.URL + "/proxies",
		Token:  "a2",
		Written: func() {
			if calls.Add(1) == 1 {
				close(wrote)
			}
		},
	}, DispatchDeps{HTTP: srv.Client(), Store: credentials.NewMemoryStore(credentials.Pair{})})

	if res.Status != http.StatusOK {
		t.Fatalf("server answered before the request was reported written: %+v", res)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one written notification, got %d", got)
	}
}

func TestRunDispatchReportsWrittenOnEarlyFailure(t *testing.T) {
	var calls atomic.Int32
	res := RunDispatch(context.Background(), Outbound{
		Method:  "BAD METHOD",
		URL:     "http://127.0.0.1/proxies",
		Token:   "a2",
		Written: func() { calls.Add(1) },
	}, DispatchDeps{HTTP: http.DefaultClient, Store: credentials.NewMemoryStore(credentials.Pair{})})

	if res.Failure != DispatchFailureBuild {
		t.Fatalf("expected build failure, got %+v", res)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one written notification, got %d", got)
	}
}
