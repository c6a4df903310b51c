package authclient

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ConfigFromEnv overlays environment variables named prefix+"_"+KEY on DefaultConfig.
// An empty prefix means "AUTHCLIENT". Binaries load a .env file before calling it.
//
// Recognized keys: BASE_URL, LOGIN_PATH, REFRESH_PATH, VERIFY_PATH, REFRESH_TIMEOUT,
// PROACTIVE_LEEWAY, LOGOUT_ON_REPLAY_REJECTED, REFRESH_THROTTLE, LOGIN_THROTTLE, REQUEST_TIMEOUT,
// USER_AGENT, STORE_BACKEND, REDIS_PREFIX, STORE_NAMESPACE, STORE_FILE, STORE_PASSPHRASE,
// METRICS_ENABLED, AUDIT_ENABLED, LOG_LEVEL, LOG_FORMAT.
func ConfigFromEnv(prefix string) (Config, error) {
	if prefix == "" {
		prefix = "AUTHCLIENT"
	}
	env := envReader{prefix: prefix}
	cfg := DefaultConfig()

	cfg.Endpoints.BaseURL = env.str("BASE_URL", cfg.Endpoints.BaseURL)
	cfg.Endpoints.LoginPath = env.str("LOGIN_PATH", cfg.Endpoints.LoginPath)
	cfg.Endpoints.RefreshPath = env.str("REFRESH_PATH", cfg.Endpoints.RefreshPath)
	cfg.Endpoints.VerifyPath = env.str("VERIFY_PATH", cfg.Endpoints.VerifyPath)

	cfg.Refresh.Timeout = env.duration("REFRESH_TIMEOUT", cfg.Refresh.Timeout)
	cfg.Refresh.ProactiveLeeway = env.duration("PROACTIVE_LEEWAY", cfg.Refresh.ProactiveLeeway)
	cfg.Refresh.LogoutOnReplayRejected = env.boolean("LOGOUT_ON_REPLAY_REJECTED", cfg.Refresh.LogoutOnReplayRejected)
	cfg.Refresh.EnableRefreshThrottle = env.boolean("REFRESH_THROTTLE", cfg.Refresh.EnableRefreshThrottle)

	cfg.Login.EnableLoginThrottle = env.boolean("LOGIN_THROTTLE", cfg.Login.EnableLoginThrottle)

	cfg.Transport.RequestTimeout = env.duration("REQUEST_TIMEOUT", cfg.Transport.RequestTimeout)
	cfg.Transport.UserAgent = env.str("USER_AGENT", cfg.Transport.UserAgent)

	cfg.Store.Backend = StoreBackend(env.str("STORE_BACKEND", string(cfg.Store.Backend)))
	cfg.Store.RedisPrefix = env.str("REDIS_PREFIX", cfg.Store.RedisPrefix)
	cfg.Store.Namespace = env.str("STORE_NAMESPACE", cfg.Store.Namespace)
	cfg.Store.FilePath = env.str("STORE_FILE", cfg.Store.FilePath)
	cfg.Store.Passphrase = env.str("STORE_PASSPHRASE", cfg.Store.Passphrase)

	cfg.Metrics.Enabled = env.boolean("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Audit.Enabled = env.boolean("AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.Audit.SinkTimeout = env.duration("AUDIT_SINK_TIMEOUT", cfg.Audit.SinkTimeout)

	cfg.Log.Level = env.str("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = env.str("LOG_FORMAT", cfg.Log.Format)

	if env.err != nil {
		return Config{}, env.err
	}
	return cfg, nil
}

type envReader struct {
	prefix string
	err    error
}

func (e *envReader) lookup(key string) (string, bool) {
	v := os.Getenv(e.prefix + "_" + key)
	return v, v != ""
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s_%s: %w", e.prefix, key, err)
	}
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return d
}

func (e *envReader) boolean(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return b
}
