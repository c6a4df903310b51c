package mockapi

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/proxyhub/authclient/jwt"
)

// Config configures a Server.
type Config struct {
	Secret      []byte
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	AccessCodes map[string]string // access code -> user ID
	// CookieMode answers login and refresh with httpOnly cookies and no tokens in the body.
	CookieMode bool
}

// Proxy is one product of the shop catalogue.
type Proxy struct {
	ID       string `json:"id"`
	Protocol string `json:"protocol"`
	Country  string `json:"country"`
	Price    int    `json:"price_cents"`
}

// Server is the fake backend. All knobs are safe to change while requests are in flight.
type Server struct {
	tokens     *jwt.Manager
	cookieMode bool
	engine     *gin.Engine

	mu          sync.Mutex
	accessCodes map[string]string
	access      map[string]struct{}
	refreshes   map[string]struct{}

	refreshCalls atomic.Int64
	refreshDelay atomic.Int64
	refreshHold  atomic.Pointer[chan struct{}]
	rejectAll    atomic.Bool
	alwaysDeny   sync.Map
}

// New returns a Server with the shop routes mounted.
func New(cfg Config) (*Server, error) {
	if len(cfg.AccessCodes) == 0 {
		return nil, errors.New("mockapi: at least one access code required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 5 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 24 * time.Hour
	}
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    cfg.Secret,
		Issuer:        "proxyhub-mockapi",
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		tokens:      tokens,
		cookieMode:  cfg.CookieMode,
		accessCodes: make(map[string]string, len(cfg.AccessCodes)),
		access:      map[string]struct{}{},
		refreshes:   map[string]struct{}{},
	}
	for code, user := range cfg.AccessCodes {
		s.accessCodes[code] = user
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.denyOverride())

	auth := r.Group("/auth")
	auth.POST("/login", s.login)
	auth.POST("/refresh", s.refresh)
	auth.POST("/verify", s.requireAccess(), s.verify)

	shop := r.Group("/", s.requireAccess())
	shop.GET("/proxies", s.listProxies)
	shop.GET("/balance", s.balance)
	shop.POST("/orders", s.createOrder)

	s.engine = r
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// RefreshCalls returns how many refresh requests reached the server.
func (s *Server) RefreshCalls() int {
	return int(s.refreshCalls.Load())
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	s.access = map[string]struct{}{}
	s.mu.Unlock()
}

// RevokeRefreshTokens invalidates every refresh token issued so far.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	s.refreshes = map[string]struct{}{}
	s.mu.Unlock()
}

// SetRefreshDelay delays every refresh answer by d.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.refreshDelay.Store(int64(d))
}

// HoldRefreshes parks every refresh request until the returned release is called.
func (s *Server) HoldRefreshes() (release func()) {
	gate := make(chan struct{})
	s.refreshHold.Store(&gate)
	return sync.OnceFunc(func() {
		s.refreshHold.CompareAndSwap(&gate, nil)
		close(gate)
	})
}

// RejectAllRequests makes every protected endpoint answer 401 regardless of the token.
func (s *Server) RejectAllRequests(reject bool) {
	s.rejectAll.Store(reject)
}

// AlwaysDeny makes path answer 401 before any other handling.
func (s *Server) AlwaysDeny(path string) {
	s.alwaysDeny.Store(path, struct{}{})
}

func (s *Server) issue(user string) (access, refresh string, err error) {
	access, err = s.tokens.CreateAccess(user)
	if err != nil {
		return "", "", err
	}
	refresh, err = s.tokens.CreateRefresh(user)
	if err != nil {
		return "", "", err
	}
	s.mu.Lock()
	s.access[access] = struct{}{}
	s.refreshes[refresh] = struct{}{}
	s.mu.Unlock()
	return access, refresh, nil
}

func (s *Server) denyOverride() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := s.alwaysDeny.Load(c.Request.URL.Path); ok {
			unauthorized(c, "Access denied", "DENIED")
			return
		}
		c.Next()
	}
}

func (s *Server) requireAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.rejectAll.Load() {
			unauthorized(c, "Token revoked", "TOKEN_REVOKED")
			return
		}
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "Not authenticated", "NOT_AUTHENTICATED")
			return
		}
		claims, err := s.tokens.Parse(token, jwt.KindAccess)
		if err != nil {
			unauthorized(c, "Invalid token", "INVALID_TOKEN")
			return
		}
		s.mu.Lock()
		_, live := s.access[token]
		s.mu.Unlock()
		if !live {
			unauthorized(c, "Token expired", "TOKEN_EXPIRED")
			return
		}
		c.Set("user_id", claims.Subject)
		c.Next()
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func unauthorized(c *gin.Context, detail, code string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": detail, "error_code": code})
}
