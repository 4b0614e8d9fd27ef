package tokenstore

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Cookies is the edge-readable store tier: whatever cookie source the
// current request carries. Implementations must tolerate absent values.
type Cookies interface {
	// Get returns the cookie value, or "" when absent.
	Get(name string) string
	Set(name, value string, maxAge time.Duration)
	Delete(name string)
}

// ginCookies adapts a live gin request/response to the Cookies interface.
// All cookies are written with Path=/ and SameSite=Strict. Writes are
// kept in an overlay so that a value set earlier in the same request is
// what Get returns, not the stale request cookie: a token rotated during
// the request must be visible to the retried call.
type ginCookies struct {
	c       *gin.Context
	secure  bool
	overlay map[string]string
}

func GinCookies(c *gin.Context, secure bool) Cookies {
	return &ginCookies{c: c, secure: secure, overlay: map[string]string{}}
}

func (g *ginCookies) Get(name string) string {
	if v, ok := g.overlay[name]; ok {
		return v
	}
	v, err := g.c.Cookie(name)
	if err != nil {
		return ""
	}
	return v
}

func (g *ginCookies) Set(name, value string, maxAge time.Duration) {
	g.overlay[name] = value
	g.c.SetSameSite(http.SameSiteStrictMode)
	g.c.SetCookie(name, value, int(maxAge.Seconds()), "/", "", g.secure, false)
}

func (g *ginCookies) Delete(name string) {
	g.overlay[name] = ""
	g.c.SetSameSite(http.SameSiteStrictMode)
	g.c.SetCookie(name, "", -1, "/", "", g.secure, false)
}

// deviceCookieTTL keeps the device id stable well past the refresh
// token's lifetime.
const deviceCookieTTL = 365 * 24 * time.Hour

// EnsureDeviceID returns the device id from the request cookie, minting
// and setting a new one when absent. The device id keys the server-side
// store tier.
func EnsureDeviceID(c *gin.Context, name string, secure bool) string {
	if v, err := c.Cookie(name); err == nil && v != "" {
		return v
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, id, int(deviceCookieTTL.Seconds()), "/", "", secure, true)
	return id
}
