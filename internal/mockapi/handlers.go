package mockapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/proxyhub/authclient/jwt"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
)

var catalogue = []Proxy{
	{ID: "socks5-de-1", Protocol: "socks5", Country: "DE", Price: 450},
	{ID: "socks5-us-1", Protocol: "socks5", Country: "US", Price: 500},
	{ID: "pptp-nl-1", Protocol: "pptp", Country: "NL", Price: 300},
}

type loginRequest struct {
	AccessCode string `json:"access_code" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type orderRequest struct {
	ProxyID string `json:"proxy_id" binding:"required"`
	Days    int    `json:"days" binding:"required,min=1"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error(), "error_code": "VALIDATION_ERROR"})
		return
	}
	s.mu.Lock()
	user, ok := s.accessCodes[req.AccessCode]
	s.mu.Unlock()
	if !ok {
		unauthorized(c, "Invalid access code", "INVALID_ACCESS_CODE")
		return
	}
	s.respondTokens(c, user)
}

func (s *Server) refresh(c *gin.Context) {
	s.refreshCalls.Add(1)
	if d := time.Duration(s.refreshDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-c.Request.Context().Done():
			return
		}
	}

	if gate := s.refreshHold.Load(); gate != nil {
		select {
		case <-*gate:
		case <-c.Request.Context().Done():
			return
		}
	}

	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	token := req.RefreshToken
	if token == "" && s.cookieMode {
		token, _ = c.Cookie(refreshCookie)
	}
	if token == "" {
		unauthorized(c, "Refresh token required", "REFRESH_REQUIRED")
		return
	}

	claims, err := s.tokens.Parse(token, jwt.KindRefresh)
	if err != nil {
		unauthorized(c, "Invalid refresh token", "INVALID_REFRESH_TOKEN")
		return
	}
	s.mu.Lock()
	_, live := s.refreshes[token]
	delete(s.refreshes, token)
	s.mu.Unlock()
	if !live {
		unauthorized(c, "Refresh token revoked", "REFRESH_REVOKED")
		return
	}
	s.respondTokens(c, claims.Subject)
}

func (s *Server) respondTokens(c *gin.Context, user string) {
	access, refresh, err := s.issue(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "token issue failed"})
		return
	}
	if s.cookieMode {
		c.SetCookie(accessCookie, access, 0, "/", "", false, true)
		c.SetCookie(refreshCookie, refresh, 0, "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"user": gin.H{"id": user}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
		"user":          gin.H{"id": user},
	})
}

func (s *Server) verify(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"valid": true, "user_id": c.GetString("user_id")})
}

func (s *Server) listProxies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": catalogue, "total": len(catalogue)})
}

func (s *Server) balance(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id"), "balance_cents": 10000})
}

func (s *Server) createOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error(), "error_code": "VALIDATION_ERROR"})
		return
	}
	for _, p := range catalogue {
		if p.ID == req.ProxyID {
			c.JSON(http.StatusCreated, gin.H{
				"order_id":    uuid.NewString(),
				"proxy_id":    p.ID,
				"total_cents": p.Price * req.Days,
			})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"detail": "Proxy not found", "error_code": "PROXY_NOT_FOUND"})
}
