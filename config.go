package authclient

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/proxyhub/authclient/credentials"
)

// Config is the full Client configuration. Start from DefaultConfig and override fields.
type Config struct {
	Endpoints EndpointsConfig
	Refresh   RefreshConfig
	Login     LoginConfig
	Transport TransportConfig
	Store     StoreConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Log       LogConfig
}

/*
====================================
ENDPOINTS CONFIG
====================================
*/

// EndpointsConfig locates the backend. Paths are resolved against BaseURL.
type EndpointsConfig struct {
	BaseURL     string
	LoginPath   string
	RefreshPath string
	VerifyPath  string
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig tunes the refresh coordinator.
type RefreshConfig struct {
	// Timeout bounds one refresh call. Expiry ends the session.
	Timeout time.Duration
	// ProactiveLeeway refreshes before sending when the access token is a JWT expiring
	// within the leeway. Zero disables it.
	ProactiveLeeway time.Duration
	// LogoutOnReplayRejected forces logout when a replayed request is refused again.
	LogoutOnReplayRejected bool

	EnableRefreshThrottle   bool
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// LoginConfig throttles outbound login attempts.
type LoginConfig struct {
	EnableLoginThrottle   bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

/*
====================================
TRANSPORT CONFIG
====================================
*/

// TransportConfig applies to every request the Client sends.
type TransportConfig struct {
	RequestTimeout   time.Duration
	MaxResponseBytes int64
	UserAgent        string
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreBackend selects the credential store built when none is injected.
type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreRedis  StoreBackend = "redis"
	StoreFile   StoreBackend = "file"
	StoreCookie StoreBackend = "cookie"
)

// StoreConfig configures the credential store built by the Builder.
type StoreConfig struct {
	Backend StoreBackend

	// Redis
	RedisPrefix string
	Namespace   string
	DefaultTTL  time.Duration

	// File
	FilePath   string
	Passphrase string
	Seal       credentials.SealConfig

	// Cookie
	AccessCookie  string
	RefreshCookie string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// SinkTimeout bounds the delivery of one event to the sink.
	SinkTimeout time.Duration
}

// MetricsConfig controls in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// LogConfig controls the logger built when none is injected.
type LogConfig struct {
	// Level is a logrus level name. Empty disables logging.
	Level string
	// Format is "json" or "text".
	Format string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the recommended configuration. Endpoints.BaseURL must still be set.
func DefaultConfig() Config {
	return Config{
		Endpoints: EndpointsConfig{
			LoginPath:   "/auth/login",
			RefreshPath: "/auth/refresh",
			VerifyPath:  "/auth/verify",
		},
		Refresh: RefreshConfig{
			Timeout:                 10 * time.Second,
			LogoutOnReplayRejected:  true,
			MaxRefreshAttempts:      20,
			RefreshCooldownDuration: time.Minute,
		},
		Login: LoginConfig{
			MaxLoginAttempts:      5,
			LoginCooldownDuration: time.Minute,
		},
		Transport: TransportConfig{
			RequestTimeout:   30 * time.Second,
			MaxResponseBytes: 4 << 20,
			UserAgent:        "proxyhub-authclient/1",
		},
		Store: StoreConfig{
			Backend:       StoreMemory,
			RedisPrefix:   "ac",
			Namespace:     "default",
			DefaultTTL:    7 * 24 * time.Hour,
			Seal:          credentials.DefaultSealConfig(),
			AccessCookie:  credentials.DefaultAccessCookie,
			RefreshCookie: credentials.DefaultRefreshCookie,
		},
		Audit: AuditConfig{
			BufferSize:  256,
			DropIfFull:  true,
			SinkTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Format: "text",
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks cfg for values the Client cannot run with.
func (c *Config) Validate() error {
	// Endpoints
	if strings.TrimSpace(c.Endpoints.BaseURL) == "" {
		return errors.New("Endpoints BaseURL must be set")
	}
	u, err := url.Parse(c.Endpoints.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("Endpoints BaseURL must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("Endpoints BaseURL scheme must be http or https")
	}
	for _, p := range []string{c.Endpoints.LoginPath, c.Endpoints.RefreshPath, c.Endpoints.VerifyPath} {
		if !strings.HasPrefix(p, "/") {
			return errors.New("Endpoints paths must start with /")
		}
	}
	if c.Endpoints.LoginPath == c.Endpoints.RefreshPath {
		return errors.New("Endpoints LoginPath and RefreshPath must differ")
	}

	// Refresh
	if c.Refresh.Timeout <= 0 {
		return errors.New("Refresh Timeout must be > 0")
	}
	if c.Refresh.ProactiveLeeway < 0 {
		return errors.New("Refresh ProactiveLeeway must be >= 0")
	}
	if c.Refresh.EnableRefreshThrottle {
		if c.Refresh.MaxRefreshAttempts <= 0 {
			return errors.New("Refresh MaxRefreshAttempts must be > 0 when throttling")
		}
		if c.Refresh.RefreshCooldownDuration <= 0 {
			return errors.New("Refresh RefreshCooldownDuration must be > 0 when throttling")
		}
	}

	// Login
	if c.Login.EnableLoginThrottle {
		if c.Login.MaxLoginAttempts <= 0 {
			return errors.New("Login MaxLoginAttempts must be > 0 when throttling")
		}
		if c.Login.LoginCooldownDuration <= 0 {
			return errors.New("Login LoginCooldownDuration must be > 0 when throttling")
		}
	}

	// Transport
	if c.Transport.RequestTimeout < 0 {
		return errors.New("Transport RequestTimeout must be >= 0")
	}
	if c.Transport.MaxResponseBytes <= 0 {
		return errors.New("Transport MaxResponseBytes must be > 0")
	}

	// Store
	switch c.Store.Backend {
	case StoreMemory, StoreCookie:
	case StoreRedis:
		if c.Store.Namespace == "" {
			return errors.New("Store Namespace must be set for the redis backend")
		}
		if c.Store.DefaultTTL < 0 {
			return errors.New("Store DefaultTTL must be >= 0")
		}
	case StoreFile:
		if c.Store.FilePath == "" {
			return errors.New("Store FilePath must be set for the file backend")
		}
	default:
		return errors.New("unsupported Store Backend")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	if c.Audit.SinkTimeout < 0 {
		return errors.New("Audit SinkTimeout must be >= 0")
	}

	// Log
	if c.Log.Format != "" && c.Log.Format != "json" && c.Log.Format != "text" {
		return errors.New("Log Format must be json or text")
	}

	return nil
}
