package authclient

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/proxyhub/authclient/credentials"
	"github.com/proxyhub/authclient/internal/audit"
	"github.com/proxyhub/authclient/internal/flows"
	"github.com/proxyhub/authclient/internal/rate"
	"github.com/proxyhub/authclient/refresh"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Builder assembles a Client. A Builder is single-use.
type Builder struct {
	config Config

	store      credentials.Store
	redis      redis.UniversalClient
	httpClient *http.Client
	logout     LogoutFunc
	auditSink  AuditSink
	logger     logrus.FieldLogger

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBaseURL sets Endpoints.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.Endpoints.BaseURL = baseURL
	return b
}

// WithCredentialStore injects a store and bypasses Store.Backend.
func (b *Builder) WithCredentialStore(store credentials.Store) *Builder {
	b.store = store
	return b
}

// WithRedis provides the client used by the redis store backend.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient sets the HTTP client. It is copied; the cookie backend installs its jar on
// the copy when the client has none.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithLogoutFunc sets the hook run once per forced or explicit logout.
func (b *Builder) WithLogoutFunc(fn LogoutFunc) *Builder {
	b.logout = fn
	return b
}

// WithAuditSink sets the audit sink and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithLogger injects a logger and bypasses Log.
func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(strings.TrimRight(cfg.Endpoints.BaseURL, "/"))
	if err != nil {
		return nil, err
	}

	// -------- HTTP CLIENT --------
	hc := &http.Client{}
	if b.httpClient != nil {
		copied := *b.httpClient
		hc = &copied
	}

	// -------- LOGGER --------
	logger := b.logger
	if logger == nil {
		l, err := NewLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
		logger = l
	}

	// -------- CREDENTIAL STORE --------
	store := b.store
	if store == nil {
		store, err = b.buildStore(cfg, base, hc)
		if err != nil {
			return nil, err
		}
	}

	limiter := rate.New(rate.Config{
		EnableLoginThrottle:     cfg.Login.EnableLoginThrottle,
		EnableRefreshThrottle:   cfg.Refresh.EnableRefreshThrottle,
		MaxLoginAttempts:        cfg.Login.MaxLoginAttempts,
		LoginCooldownDuration:   cfg.Login.LoginCooldownDuration,
		MaxRefreshAttempts:      cfg.Refresh.MaxRefreshAttempts,
		RefreshCooldownDuration: cfg.Refresh.RefreshCooldownDuration,
	})

	c := &Client{
		config:     cfg,
		baseURL:    base,
		loginURL:   base.JoinPath(cfg.Endpoints.LoginPath),
		refreshURL: base.JoinPath(cfg.Endpoints.RefreshPath),
		verifyURL:  base.JoinPath(cfg.Endpoints.VerifyPath),
		http:       hc,
		store:      store,
		logout:     b.logout,
		logger:     logger.WithField("component", "authclient"),
		metrics:    NewMetrics(cfg.Metrics),
	}
	c.audit = audit.NewDispatcher(audit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		SinkTimeout: cfg.Audit.SinkTimeout,
		OnDrop:      c.auditDropped,
	}, b.auditSink)

	dispatch := flows.DispatchDeps{
		HTTP:             hc,
		Store:            store,
		UserAgent:        cfg.Transport.UserAgent,
		RequestTimeout:   cfg.Transport.RequestTimeout,
		MaxResponseBytes: cfg.Transport.MaxResponseBytes,
	}
	c.flows = flows.New(flows.Deps{
		Dispatch: dispatch,
		Refresh: flows.RefreshCallDeps{
			HTTP:             hc,
			URL:              c.refreshURL.String(),
			UserAgent:        cfg.Transport.UserAgent,
			MaxResponseBytes: cfg.Transport.MaxResponseBytes,
		},
		Login: flows.LoginDeps{
			HTTP:             hc,
			Store:            store,
			URL:              c.loginURL.String(),
			UserAgent:        cfg.Transport.UserAgent,
			MaxResponseBytes: cfg.Transport.MaxResponseBytes,
			RateLimiter:      limiter,
			RateLimitKey:     cfg.Store.Namespace,
		},
		Verify: flows.VerifyDeps{
			Dispatch:  dispatch,
			URL:       c.verifyURL.String(),
			RequestID: uuidString,
		},
		Logout: flows.LogoutDeps{Store: store},
	})

	coordinator, err := refresh.New(refresh.Deps{
		Store:       store,
		Refresh:     c.flows.Refresh,
		Logout:      c.onTerminalRefresh,
		Timeout:     cfg.Refresh.Timeout,
		Limiter:     limiter,
		ThrottleKey: cfg.Store.Namespace,
		Observer:    clientObserver{c: c},
		Logger:      c.logger,
	})
	if err != nil {
		c.audit.Close()
		return nil, err
	}
	c.coordinator = coordinator

	b.built = true
	return c, nil
}

func (b *Builder) buildStore(cfg Config, base *url.URL, hc *http.Client) (credentials.Store, error) {
	switch cfg.Store.Backend {
	case StoreMemory:
		return credentials.NewMemoryStore(credentials.Pair{}), nil
	case StoreRedis:
		if b.redis == nil {
			return nil, errors.New("redis store backend requires a redis client")
		}
		return credentials.NewRedisStore(b.redis, cfg.Store.RedisPrefix, cfg.Store.Namespace, cfg.Store.DefaultTTL), nil
	case StoreFile:
		var sealer *credentials.Sealer
		if cfg.Store.Passphrase != "" {
			s, err := credentials.NewSealer(cfg.Store.Passphrase, cfg.Store.Seal)
			if err != nil {
				return nil, fmt.Errorf("file store: %w", err)
			}
			sealer = s
		}
		return credentials.NewFileStore(cfg.Store.FilePath, sealer), nil
	case StoreCookie:
		if hc.Jar == nil {
			jar, err := cookiejar.New(nil)
			if err != nil {
				return nil, err
			}
			hc.Jar = jar
		}
		return credentials.NewCookieStore(hc.Jar, base.String(), cfg.Store.AccessCookie, cfg.Store.RefreshCookie)
	default:
		return nil, errors.New("unsupported Store Backend")
	}
}
