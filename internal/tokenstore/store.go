package tokenstore

import (
	"context"
	"time"

	"github.com/alefiaschi96/networth-gateway/internal/models"
	"github.com/alefiaschi96/networth-gateway/internal/tokens"
	"github.com/alefiaschi96/networth-gateway/pkg/logger"
)

const (
	// accessFallbackTTL is used for the access cookie when the token's
	// own exp claim cannot be decoded.
	accessFallbackTTL = 24 * time.Hour
	// refreshTTL bounds the refresh cookie and the server-side record.
	refreshTTL = 30 * 24 * time.Hour
)

// Names configures the cookie names the store reads and writes.
type Names struct {
	Access  string
	Refresh string
}

func DefaultNames() Names {
	return Names{Access: "accessToken", Refresh: "refreshToken"}
}

// Store is the two-tier credential store: the cookie tier is readable by
// the edge route guard, the repository tier survives without request
// cookies. Reads resolve cookie-first with repository fallback; every
// write mirrors into both tiers.
//
// Either tier may be nil: a nil Cookies source (no request in scope)
// falls through to the repository, a nil Repository leaves cookies as
// the only tier. Absence is always the empty value, never an error.
type Store struct {
	cookies  Cookies
	repo     Repository
	deviceID string
	names    Names
}

func New(cookies Cookies, repo Repository, deviceID string, names Names) *Store {
	if names.Access == "" || names.Refresh == "" {
		names = DefaultNames()
	}
	return &Store{cookies: cookies, repo: repo, deviceID: deviceID, names: names}
}

// Save writes a new credential pair to both tiers. The access cookie
// expires with the token's own exp claim (fallback 24h), the refresh
// cookie after 30 days. The cached user record is carried over.
func (s *Store) Save(ctx context.Context, accessToken, refreshToken string) {
	if s.cookies != nil {
		ttl := time.Until(tokens.Expiry(accessToken))
		if ttl <= 0 {
			ttl = accessFallbackTTL
		}
		s.cookies.Set(s.names.Access, accessToken, ttl)
		s.cookies.Set(s.names.Refresh, refreshToken, refreshTTL)
	}
	if s.repo != nil && s.deviceID != "" {
		rec, err := s.repo.Get(ctx, s.deviceID)
		if err != nil {
			logger.Debugf("tokenstore: read before save failed: %v", err)
		}
		var user *models.User
		if rec != nil {
			user = rec.User
		}
		next := &Record{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			User:         user,
			ExpiresAt:    time.Now().UTC().Add(refreshTTL),
		}
		if err := s.repo.Put(ctx, s.deviceID, next, refreshTTL); err != nil {
			logger.Warnf("tokenstore: mirror write failed: %v", err)
		}
	}
}

// AccessToken returns the access token, cookie tier first.
func (s *Store) AccessToken(ctx context.Context) string {
	if s.cookies != nil {
		if v := s.cookies.Get(s.names.Access); v != "" {
			return v
		}
	}
	if rec := s.record(ctx); rec != nil {
		return rec.AccessToken
	}
	return ""
}

// RefreshToken returns the refresh token, cookie tier first.
func (s *Store) RefreshToken(ctx context.Context) string {
	if s.cookies != nil {
		if v := s.cookies.Get(s.names.Refresh); v != "" {
			return v
		}
	}
	if rec := s.record(ctx); rec != nil {
		return rec.RefreshToken
	}
	return ""
}

// User returns the cached user record, or nil when none is stored.
func (s *Store) User(ctx context.Context) *models.User {
	if rec := s.record(ctx); rec != nil {
		return rec.User
	}
	return nil
}

// SaveUser caches the user record alongside the stored credential pair.
func (s *Store) SaveUser(ctx context.Context, u *models.User) {
	if s.repo == nil || s.deviceID == "" {
		return
	}
	rec := s.record(ctx)
	if rec == nil {
		rec = &Record{ExpiresAt: time.Now().UTC().Add(refreshTTL)}
	}
	rec.User = u
	if err := s.repo.Put(ctx, s.deviceID, rec, refreshTTL); err != nil {
		logger.Warnf("tokenstore: user cache write failed: %v", err)
	}
}

// Clear erases both cookies, the mirrored record and the cached user.
// Always succeeds from the caller's perspective.
func (s *Store) Clear(ctx context.Context) {
	if s.cookies != nil {
		s.cookies.Delete(s.names.Access)
		s.cookies.Delete(s.names.Refresh)
	}
	if s.repo != nil && s.deviceID != "" {
		if err := s.repo.Delete(ctx, s.deviceID); err != nil {
			logger.Warnf("tokenstore: clear failed: %v", err)
		}
	}
}

func (s *Store) record(ctx context.Context) *Record {
	if s.repo == nil || s.deviceID == "" {
		return nil
	}
	rec, err := s.repo.Get(ctx, s.deviceID)
	if err != nil {
		logger.Debugf("tokenstore: repository read failed: %v", err)
		return nil
	}
	return rec
}
