package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alefiaschi96/networth-gateway/pkg/metrics"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface strict guard mode depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// GuardOptions configures the route guard.
type GuardOptions struct {
	// LoginPath is the redirect target for unauthenticated requests.
	LoginPath string
	// AccessCookie is the cookie holding the access token.
	AccessCookie string
	// PublicPaths bypass the guard by exact match or sub-path.
	PublicPaths []string
	// StaticPrefixes bypass the guard by prefix.
	StaticPrefixes []string
	// ProtectedPrefixes are the only path spaces the guard gates.
	ProtectedPrefixes []string
	// Verifier, when set, verifies present cookies instead of only
	// checking presence. Nil keeps the default presence-only check:
	// an expired-but-present cookie passes, and invalidity surfaces
	// on the next authenticated API call.
	Verifier Verifier
}

// RouteGuard returns a Gin middleware gating the protected path prefixes
// on the presence of the access-token cookie. Unauthenticated requests
// are redirected to the login page with a callbackUrl query parameter
// carrying the originally requested URL.
func RouteGuard(opts GuardOptions) gin.HandlerFunc {
	if opts.LoginPath == "" {
		opts.LoginPath = "/auth/login"
	}
	if opts.AccessCookie == "" {
		opts.AccessCookie = "accessToken"
	}
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		if matchesPrefix(path, opts.StaticPrefixes) || isPublicPath(path, opts.PublicPaths) {
			c.Next()
			return
		}
		if !matchesPathSpace(path, opts.ProtectedPrefixes) {
			c.Next()
			return
		}

		tok, err := c.Cookie(opts.AccessCookie)
		if err != nil || tok == "" {
			redirectToLogin(c, opts.LoginPath)
			return
		}
		if opts.Verifier != nil {
			if _, err := opts.Verifier.Verify(c.Request.Context(), tok); err != nil {
				redirectToLogin(c, opts.LoginPath)
				return
			}
		}

		metrics.GuardDecisions.WithLabelValues("pass").Inc()
		c.Next()
	}
}

func redirectToLogin(c *gin.Context, loginPath string) {
	metrics.GuardDecisions.WithLabelValues("redirect").Inc()
	target := loginPath + "?callbackUrl=" + url.QueryEscape(c.Request.URL.RequestURI())
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

// isPublicPath matches exact public paths and their sub-paths.
func isPublicPath(path string, public []string) bool {
	for _, p := range public {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func matchesPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// matchesPathSpace matches a prefix and its sub-paths but not unrelated
// paths sharing the prefix text (/dashboard, /dashboard/x, not /dashboardx).
func matchesPathSpace(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
