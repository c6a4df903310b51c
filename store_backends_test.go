package authclient

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/proxyhub/authclient/credentials"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestCookieBackendRefreshesFromResponseCookies(t *testing.T) {
	api, srv := newTestBackend(t, true)
	c, logout := newTestClient(t, srv.URL, func(cfg *Config) {
		cfg.Store.Backend = StoreCookie
	})
	loginTestClient(t, c)

	before, err := c.Session(context.Background())
	if err != nil || !before.Authenticated || before.Subject != testUser {
		t.Fatalf("expected cookie session after login, got %+v %v", before, err)
	}

	api.ExpireAccessTokens()
	resp, err := c.Get(context.Background(), "/balance")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if resp.Attempt != ReplayAttempt || api.RefreshCalls() != 1 {
		t.Fatalf("expected one refresh and a replay, got %s / %d", resp.Attempt, api.RefreshCalls())
	}
	if len(logout.Reasons()) != 0 {
		t.Fatal("cookie refresh must not log out")
	}
	if c.HTTPClient().Jar == nil {
		t.Fatal("cookie backend must install a jar")
	}
}

func TestRedisBackendSharesSessionAcrossClients(t *testing.T) {
	api, srv := newTestBackend(t, false)
	mr, rdb := newTestRedis(t)

	useRedis := func(cfg *Config) {
		cfg.Store.Backend = StoreRedis
		cfg.Store.Namespace = "account-42"
	}
	withRedis := func(b *Builder) { b.WithRedis(rdb) }

	storefront, _ := newTestClient(t, srv.URL, useRedis, withRedis)
	worker, _ := newTestClient(t, srv.URL, useRedis, withRedis)
	loginTestClient(t, storefront)

	if !mr.Exists("ac:cred:account-42") {
		t.Fatal("expected credentials under the namespaced key")
	}
	if ttl := mr.TTL("ac:cred:account-42"); ttl <= 0 {
		t.Fatalf("expected key TTL from the refresh token, got %s", ttl)
	}

	api.ExpireAccessTokens()
	if _, err := storefront.Get(context.Background(), "/proxies"); err != nil {
		t.Fatalf("storefront get: %v", err)
	}
	resp, err := worker.Get(context.Background(), "/balance")
	if err != nil {
		t.Fatalf("worker get: %v", err)
	}
	if resp.Attempt != FirstAttempt {
		t.Fatal("worker must pick up the refreshed token from redis")
	}
	if api.RefreshCalls() != 1 {
		t.Fatalf("expected one refresh across both clients, got %d", api.RefreshCalls())
	}

	if err := worker.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if info, _ := storefront.Session(context.Background()); info.Authenticated {
		t.Fatal("logout must be visible to every client of the namespace")
	}
}

func TestSealedFileBackendSurvivesRestart(t *testing.T) {
	_, srv := newTestBackend(t, false)
	path := filepath.Join(t.TempDir(), "session.bin")
	useFile := func(cfg *Config) {
		cfg.Store.Backend = StoreFile
		cfg.Store.FilePath = path
		cfg.Store.Passphrase = "correct horse battery staple"
		cfg.Store.Seal.Memory = 8 * 1024
		cfg.Store.Seal.Time = 1
		cfg.Store.Seal.Parallelism = 1
	}

	first, _ := newTestClient(t, srv.URL, useFile)
	loginTestClient(t, first)
	info, err := first.Session(context.Background())
	if err != nil || !info.Authenticated {
		t.Fatalf("expected session, got %+v %v", info, err)
	}
	first.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read session file: %v", err)
	}
	if bytes.Contains(raw, []byte(testUser)) || bytes.Contains(raw, []byte("eyJ")) {
		t.Fatal("sealed file must not contain token material in clear")
	}

	second, _ := newTestClient(t, srv.URL, useFile)
	if _, err := second.Get(context.Background(), "/balance"); err != nil {
		t.Fatalf("restarted client get: %v", err)
	}

	wrong, _ := newTestClient(t, srv.URL, func(cfg *Config) {
		useFile(cfg)
		cfg.Store.Passphrase = "not the right passphrase"
	})
	if _, err := wrong.Session(context.Background()); !errors.Is(err, credentials.ErrSealOpen) {
		t.Fatalf("expected ErrSealOpen, got %v", err)
	}
}
