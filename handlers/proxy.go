package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alefiaschi96/networth-gateway/internal/api"
	"github.com/alefiaschi96/networth-gateway/internal/config"
	"github.com/alefiaschi96/networth-gateway/internal/session"
	"github.com/alefiaschi96/networth-gateway/internal/tokenstore"
)

// ProxyHandler forwards /api/* resource calls to the backend through the
// authenticated client: the bearer header comes from the caller's stored
// session and a 401 is retried once after a transparent refresh.
type ProxyHandler struct {
	cfg   *config.Config
	repo  tokenstore.Repository
	httpc *http.Client
}

func NewProxyHandler(cfg *config.Config, repo tokenstore.Repository, httpc *http.Client) *ProxyHandler {
	return &ProxyHandler{cfg: cfg, repo: repo, httpc: httpc}
}

// Register mounts the resource routes. Paths mirror the backend's own,
// so the gateway stays an access layer, not a second API.
func (h *ProxyHandler) Register(rg *gin.RouterGroup) {
	for _, prefix := range []string{
		"/accounts",
		"/bank-accounts",
		"/assets",
		"/transactions",
		"/net-worth",
		"/dashboard",
		"/isin",
	} {
		g := rg.Group(prefix)
		g.GET("", h.forward)
		g.POST("", h.forward)
		g.GET("/*rest", h.forward)
		g.POST("/*rest", h.forward)
		g.PUT("/*rest", h.forward)
		g.DELETE("/*rest", h.forward)
	}
}

func (h *ProxyHandler) client(c *gin.Context) *api.Client {
	deviceID := tokenstore.EnsureDeviceID(c, h.cfg.Cookies.DeviceName, h.cfg.Cookies.Secure)
	store := tokenstore.New(
		tokenstore.GinCookies(c, h.cfg.Cookies.Secure),
		h.repo,
		deviceID,
		tokenstore.Names{Access: h.cfg.Cookies.AccessName, Refresh: h.cfg.Cookies.RefreshName},
	)
	svc := session.NewService(h.cfg.Backend.BaseURL, h.cfg.Backend.Endpoints, store, h.httpc)
	return api.NewClient(h.cfg.Backend.BaseURL, svc, h.httpc)
}

// forward replays the incoming method, path and body against the backend.
func (h *ProxyHandler) forward(c *gin.Context) {
	endpoint := c.Request.URL.Path
	if q := c.Request.URL.RawQuery; q != "" {
		endpoint += "?" + q
	}

	var payload []byte
	if c.Request.Body != nil {
		b, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "unreadable request body"})
			return
		}
		payload = b
	}

	opts := api.Options{Method: c.Request.Method}
	if len(payload) > 0 {
		opts.Body = payload
		if ct := c.ContentType(); ct != "" {
			opts.Header = http.Header{"Content-Type": []string{ct}}
		}
	}

	body, err := h.client(c).Do(c.Request.Context(), endpoint, opts)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}
