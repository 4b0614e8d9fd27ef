package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alefiaschi96/networth-gateway/internal/api"
	"github.com/alefiaschi96/networth-gateway/internal/config"
	"github.com/alefiaschi96/networth-gateway/internal/session"
	"github.com/alefiaschi96/networth-gateway/internal/tokenstore"
	"github.com/alefiaschi96/networth-gateway/pkg/logger"
)

// LoginRequest carries the password login form.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest is forwarded to the backend as-is after validation.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthHandler exposes the session lifecycle over HTTP. Every request gets
// its own store bound to the caller's cookies and device id, so handlers
// never share credential state.
type AuthHandler struct {
	cfg   *config.Config
	repo  tokenstore.Repository
	httpc *http.Client
}

func NewAuthHandler(cfg *config.Config, repo tokenstore.Repository, httpc *http.Client) *AuthHandler {
	return &AuthHandler{cfg: cfg, repo: repo, httpc: httpc}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/register", h.SignUp)
	a.POST("/logout", h.Logout)
	a.POST("/refresh", h.Refresh)
	a.GET("/me", h.Me)
	a.GET("/session", h.Session)
}

// service builds the per-request session service and token store.
func (h *AuthHandler) service(c *gin.Context) (*session.Service, *tokenstore.Store) {
	deviceID := tokenstore.EnsureDeviceID(c, h.cfg.Cookies.DeviceName, h.cfg.Cookies.Secure)
	store := tokenstore.New(
		tokenstore.GinCookies(c, h.cfg.Cookies.Secure),
		h.repo,
		deviceID,
		tokenstore.Names{Access: h.cfg.Cookies.AccessName, Refresh: h.cfg.Cookies.RefreshName},
	)
	svc := session.NewService(h.cfg.Backend.BaseURL, h.cfg.Backend.Endpoints, store, h.httpc)
	return svc, store
}

// Login exchanges credentials with the backend and sets the session
// cookies. When the request carries a callbackUrl query parameter the
// response names it as the post-login destination.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "email and password are required"})
		return
	}

	svc, _ := h.service(c)
	user, err := svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if ae, ok := err.(*session.AuthError); ok {
			c.JSON(http.StatusUnauthorized, gin.H{"message": ae.Message})
			return
		}
		logger.Errorf("login against backend failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"message": "authentication service unavailable"})
		return
	}

	resp := gin.H{"user": user}
	if target := sanitizeCallbackURL(c.Query("callbackUrl")); target != "" {
		resp["redirectTo"] = target
	}
	c.JSON(http.StatusOK, resp)
}

// SignUp forwards the registration to the backend without touching the
// session: the caller logs in afterwards.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "name, email and password are required"})
		return
	}

	client := api.NewClient(h.cfg.Backend.BaseURL, nil, h.httpc)
	body, err := client.Do(c.Request.Context(), h.cfg.Backend.Endpoints.Register, api.Options{
		Method:          http.MethodPost,
		Body:            req,
		Unauthenticated: true,
	})
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.Data(http.StatusCreated, "application/json", body)
}

// Logout clears the session. Always responds 200.
func (h *AuthHandler) Logout(c *gin.Context) {
	svc, _ := h.service(c)
	svc.Logout(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh forces a token rotation. 401 when the session cannot be
// refreshed, in which case it has already been cleared.
func (h *AuthHandler) Refresh(c *gin.Context) {
	svc, _ := h.service(c)
	if creds := svc.RefreshToken(c.Request.Context()); creds == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "session expired"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refreshed"})
}

// Me proxies the backend profile endpoint through the authenticated
// client, so a stale access token is refreshed transparently.
func (h *AuthHandler) Me(c *gin.Context) {
	svc, _ := h.service(c)
	client := api.NewClient(h.cfg.Backend.BaseURL, svc, h.httpc)
	body, err := client.Get(c.Request.Context(), h.cfg.Backend.Endpoints.Profile)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

// Session restores the session state from whatever the request carries
// and reports it. A stale access token is refreshed once; an
// unrecoverable session is cleared and reported anonymous.
func (h *AuthHandler) Session(c *gin.Context) {
	svc, _ := h.service(c)
	client := api.NewClient(h.cfg.Backend.BaseURL, svc, h.httpc)
	st := session.NewState(svc, client, h.cfg.Backend.Endpoints.Profile)
	st.Restore(c.Request.Context())

	resp := gin.H{"authenticated": st.IsAuthenticated()}
	if u := st.User(); u != nil {
		resp["user"] = u
	}
	c.JSON(http.StatusOK, resp)
}

// sanitizeCallbackURL accepts only same-site relative paths. Anything
// with a scheme, a host, or a protocol-relative prefix is dropped.
func sanitizeCallbackURL(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return ""
	}
	if strings.Contains(raw, "\\") {
		return ""
	}
	return raw
}

// writeAPIError maps a client error onto the gateway response, keeping
// the backend's status and normalized message when available.
func writeAPIError(c *gin.Context, err error) {
	if apiErr, ok := err.(*api.Error); ok {
		c.JSON(apiErr.Status, gin.H{"message": apiErr.Message})
		return
	}
	if _, ok := err.(*api.ParseError); ok {
		c.JSON(http.StatusBadGateway, gin.H{"message": "invalid response from backend"})
		return
	}
	logger.Errorf("backend call failed: %v", err)
	c.JSON(http.StatusBadGateway, gin.H{"message": "backend unavailable"})
}
