package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/proxyhub/authclient/jwt"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis failures other than a missing key.
var ErrRedisUnavailable = errors.New("redis unavailable")

const minRedisTTL = time.Second

// RedisStore keeps the pair under one Redis key so several processes (for example a
// storefront and an admin worker acting for the same account) share a session.
//
// The key expires with the refresh token: its TTL is read from the refresh token's exp claim
// when it is a JWT, otherwise defaultTTL is used.
type RedisStore struct {
	redis      redis.UniversalClient
	key        string
	defaultTTL time.Duration
	now        func() time.Time
}

// NewRedisStore returns a store writing to prefix:namespace.
func NewRedisStore(client redis.UniversalClient, prefix, namespace string, defaultTTL time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "ac"
	}
	return &RedisStore{
		redis:      client,
		key:        prefix + ":cred:" + namespace,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Key returns the Redis key holding the encoded pair.
func (s *RedisStore) Key() string {
	return s.key
}

func (s *RedisStore) Get(ctx context.Context) (Pair, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Pair{}, nil
	}
	if err != nil {
		return Pair{}, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return Decode(data)
}

func (s *RedisStore) Set(ctx context.Context, pair Pair) error {
	if pair.Empty() {
		return s.Clear(ctx)
	}
	data, err := encodeAt(pair, s.now())
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key, data, s.ttlFor(pair)).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) ttlFor(pair Pair) time.Duration {
	ttl := s.defaultTTL
	if pair.RefreshToken != "" {
		if left, ok := jwt.TTL(pair.RefreshToken, s.now()); ok {
			ttl = left
		}
	}
	if ttl <= 0 {
		// 0 means no expiry for go-redis.
		return 0
	}
	if ttl < minRedisTTL {
		return minRedisTTL
	}
	return ttl
}
