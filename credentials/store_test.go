package credentials

import (
	"context"
	"errors"
	"net/http/cookiejar"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/proxyhub/authclient/jwt"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb, "ac", "storefront", time.Hour)
	return store, mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func testSealer(t *testing.T) *Sealer {
	t.Helper()
	s, err := NewSealer("correct-horse-battery", SealConfig{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16})
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	return s
}

func newCookieStoreTest(t *testing.T) *CookieStore {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	store, err := NewCookieStore(jar, "http://api.proxyhub.test/v1", "", "")
	if err != nil {
		t.Fatalf("new cookie store: %v", err)
	}
	return store
}

// Every strategy must honor the same Get/Set/Clear contract.
func TestStoreContract(t *testing.T) {
	redisStore, _, done := newRedisStoreTest(t)
	defer done()

	dir := t.TempDir()
	stores := map[string]Store{
		"memory":      NewMemoryStore(Pair{}),
		"redis":       redisStore,
		"file":        NewFileStore(filepath.Join(dir, "plain", "credentials"), nil),
		"sealed-file": NewFileStore(filepath.Join(dir, "sealed", "credentials"), testSealer(t)),
		"cookie":      newCookieStoreTest(t),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			got, err := store.Get(ctx)
			if err != nil {
				t.Fatalf("get on empty store: %v", err)
			}
			if !got.Empty() {
				t.Fatalf("expected empty pair, got %+v", got)
			}

			want := Pair{AccessToken: "access-1", RefreshToken: "refresh-1"}
			if err := store.Set(ctx, want); err != nil {
				t.Fatalf("set: %v", err)
			}
			if got, _ := store.Get(ctx); got != want {
				t.Fatalf("expected %+v after set, got %+v", want, got)
			}

			rotated := want.Merge(Pair{AccessToken: "access-2"})
			if err := store.Set(ctx, rotated); err != nil {
				t.Fatalf("set rotated: %v", err)
			}
			if got, _ := store.Get(ctx); got.AccessToken != "access-2" || got.RefreshToken != "refresh-1" {
				t.Fatalf("unexpected rotated pair %+v", got)
			}

			if err := store.Clear(ctx); err != nil {
				t.Fatalf("clear: %v", err)
			}
			if err := store.Clear(ctx); err != nil {
				t.Fatalf("second clear must be a no-op: %v", err)
			}
			if got, _ := store.Get(ctx); !got.Empty() {
				t.Fatalf("expected empty pair after clear, got %+v", got)
			}
		})
	}
}

func TestRedisStoreTTLFollowsRefreshToken(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()

	m, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    10 * time.Minute,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
	})
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}
	refresh, err := m.CreateRefresh("u-1")
	if err != nil {
		t.Fatalf("create refresh: %v", err)
	}

	if err := store.Set(ctx, Pair{AccessToken: "a", RefreshToken: refresh}); err != nil {
		t.Fatalf("set: %v", err)
	}
	ttl := mr.TTL(store.Key())
	if ttl <= 9*time.Minute || ttl > 10*time.Minute {
		t.Fatalf("expected ttl near 10m, got %s", ttl)
	}

	if err := store.Set(ctx, Pair{AccessToken: "a", RefreshToken: "opaque"}); err != nil {
		t.Fatalf("set opaque: %v", err)
	}
	if ttl := mr.TTL(store.Key()); ttl != time.Hour {
		t.Fatalf("expected default ttl for opaque refresh token, got %s", ttl)
	}
}

func TestRedisStoreCorruptBlob(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()

	if err := mr.Set(store.Key(), "bad"); err != nil {
		t.Fatalf("seed corrupt blob: %v", err)
	}
	if _, err := store.Get(context.Background()); !errors.Is(err, ErrCorruptPair) {
		t.Fatalf("expected ErrCorruptPair, got %v", err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()
	mr.Close()

	if _, err := store.Get(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestSealedFileRejectsWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")
	ctx := context.Background()

	if err := NewFileStore(path, testSealer(t)).Set(ctx, Pair{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	other, err := NewSealer("a-different-passphrase", SealConfig{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16})
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	if _, err := NewFileStore(path, other).Get(ctx); !errors.Is(err, ErrSealOpen) {
		t.Fatalf("expected ErrSealOpen, got %v", err)
	}
	if _, err := NewFileStore(path, nil).Get(ctx); !errors.Is(err, ErrCorruptPair) {
		t.Fatalf("expected sealed blob to be unreadable without a sealer, got %v", err)
	}
}

func TestNewSealerValidation(t *testing.T) {
	if _, err := NewSealer("short", DefaultSealConfig()); err == nil {
		t.Fatal("expected short passphrase to be rejected")
	}
	if _, err := NewSealer("long-enough-passphrase", SealConfig{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16}); err == nil {
		t.Fatal("expected low memory cost to be rejected")
	}
}

func TestNewCookieStoreRequiresAbsoluteOrigin(t *testing.T) {
	jar, _ := cookiejar.New(nil)
	if _, err := NewCookieStore(jar, "/relative", "", ""); err == nil {
		t.Fatal("expected relative origin to be rejected")
	}
	if _, err := NewCookieStore(nil, "http://x.test", "", ""); err == nil {
		t.Fatal("expected nil jar to be rejected")
	}
}
