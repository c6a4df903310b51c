package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testHMACKey = []byte("0123456789abcdef0123456789abcdef")

func newHSManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    testHMACKey,
		Issuer:        "proxyhub",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero ttl", Config{SigningMethod: MethodHS256, PrivateKey: testHMACKey}},
		{"short hmac key", Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("short")}},
		{"ed25519 without public key", Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodEd25519}},
		{"unknown method", Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: "rs256"}},
		{"leeway too large", Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: testHMACKey, Leeway: time.Hour}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewManager(tc.cfg); err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}

func TestCreateAndParseRoundTrip(t *testing.T) {
	m := newHSManager(t)

	access, err := m.CreateAccess("user-1")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	claims, err := m.Parse(access, KindAccess)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.Subject != "user-1" || claims.ID == "" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := m.Parse(access, KindRefresh); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := newHSManager(t)
	past := m.WithClock(func() time.Time { return time.Now().Add(-time.Hour) })

	access, err := past.CreateAccess("user-1")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	_, err = m.Parse(access, KindAccess)
	if !IsExpired(err) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	ed, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{Kind: KindAccess, RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testHMACKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := ed.Parse(token, KindAccess); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}

	good, err := ed.CreateAccess("u")
	if err != nil {
		t.Fatalf("create ed25519 access: %v", err)
	}
	if _, err := ed.Parse(good, KindAccess); err != nil {
		t.Fatalf("expected ed25519 token to parse: %v", err)
	}
}
