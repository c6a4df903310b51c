package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Config holds throttle tuning parameters.
type Config struct {
	EnableLoginThrottle     bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// Limiter enforces per-key budgets for login and refresh attempts.
type Limiter struct {
	config  Config
	login   *limiter.Limiter
	refresh *limiter.Limiter
}

// New creates a Limiter with process-local counters.
func New(cfg Config) *Limiter {
	l := &Limiter{config: cfg}
	if cfg.EnableLoginThrottle && cfg.MaxLoginAttempts > 0 && cfg.LoginCooldownDuration > 0 {
		l.login = limiter.New(
			memory.NewStoreWithOptions(limiter.StoreOptions{
				Prefix:          "login",
				CleanUpInterval: cfg.LoginCooldownDuration,
			}),
			limiter.Rate{Period: cfg.LoginCooldownDuration, Limit: int64(cfg.MaxLoginAttempts)},
		)
	}
	if cfg.EnableRefreshThrottle && cfg.MaxRefreshAttempts > 0 && cfg.RefreshCooldownDuration > 0 {
		l.refresh = limiter.New(
			memory.NewStoreWithOptions(limiter.StoreOptions{
				Prefix:          "refresh",
				CleanUpInterval: cfg.RefreshCooldownDuration,
			}),
			limiter.Rate{Period: cfg.RefreshCooldownDuration, Limit: int64(cfg.MaxRefreshAttempts)},
		)
	}
	return l
}

// CheckLogin consumes one login attempt for key.
func (l *Limiter) CheckLogin(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}
	return check(ctx, l.login, key)
}

// CheckRefresh consumes one refresh attempt for key.
func (l *Limiter) CheckRefresh(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}
	return check(ctx, l.refresh, key)
}

func check(ctx context.Context, lim *limiter.Limiter, key string) error {
	if lim == nil {
		return nil
	}
	res, err := lim.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if res.Reached {
		return ErrRateLimited
	}
	return nil
}
