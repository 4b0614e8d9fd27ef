package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alefiaschi96/networth-gateway/internal/api"
	"github.com/alefiaschi96/networth-gateway/internal/config"
	"github.com/alefiaschi96/networth-gateway/internal/models"
	"github.com/alefiaschi96/networth-gateway/internal/tokens"
	"github.com/alefiaschi96/networth-gateway/internal/tokenstore"
	"github.com/alefiaschi96/networth-gateway/pkg/logger"
	"github.com/alefiaschi96/networth-gateway/pkg/metrics"
)

// Credentials is one access/refresh pair as issued by the backend.
// A pair is superseded whole on login and refresh, never mutated.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthError carries the backend's rejection message for a login attempt.
// It is the only login failure surfaced to the user.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

type loginResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         *models.User `json:"user"`
}

// Service orchestrates the credential lifecycle against the backend's
// auth endpoints: login, logout, refresh and expiry inspection.
type Service struct {
	baseURL string
	eps     config.Endpoints
	store   *tokenstore.Store
	httpc   *http.Client
}

// NewService builds a session service bound to one request's token
// store. httpc defaults to a 30s-timeout client when nil.
func NewService(baseURL string, eps config.Endpoints, store *tokenstore.Store, httpc *http.Client) *Service {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Service{baseURL: baseURL, eps: eps, store: store, httpc: httpc}
}

// Login exchanges credentials for a token pair, persists it and caches
// the user record. A backend rejection becomes an *AuthError carrying
// the backend's message.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	body, status, err := s.postJSON(ctx, s.eps.Login, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("login request: %w", err)
	}
	if status < 200 || status >= 300 {
		return nil, &AuthError{Message: api.NewError(status, body).Message}
	}

	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	s.store.Save(ctx, lr.AccessToken, lr.RefreshToken)
	if lr.User != nil {
		s.store.SaveUser(ctx, lr.User)
	}
	return lr.User, nil
}

// Logout wipes the stored session. It always succeeds: the backend
// logout endpoint is notified in the background and its response is
// ignored, so no network failure can block a logout.
func (s *Service) Logout(ctx context.Context) {
	refresh := s.store.RefreshToken(ctx)
	s.store.Clear(ctx)
	if refresh == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, _, err := s.postJSON(ctx, s.eps.Logout, map[string]string{"refreshToken": refresh}); err != nil {
			logger.Debugf("session: backend logout notify failed: %v", err)
		}
	}()
}

// RefreshToken trades the stored refresh token for a new pair. Returns
// nil without touching the store when no refresh token exists; on any
// exchange failure the session is unrecoverable, the store is cleared
// and nil is returned. Expected failures never surface as errors.
func (s *Service) RefreshToken(ctx context.Context) *Credentials {
	refresh := s.store.RefreshToken(ctx)
	if refresh == "" {
		metrics.TokenRefreshes.WithLabelValues("no_token").Inc()
		return nil
	}

	body, status, err := s.postJSON(ctx, s.eps.Refresh, map[string]string{"refreshToken": refresh})
	if err != nil || status < 200 || status >= 300 {
		if err != nil {
			logger.Warnf("session: refresh exchange failed: %v", err)
		}
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		s.store.Clear(ctx)
		return nil
	}

	var cr Credentials
	if err := json.Unmarshal(body, &cr); err != nil || cr.AccessToken == "" {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		s.store.Clear(ctx)
		return nil
	}

	s.store.Save(ctx, cr.AccessToken, cr.RefreshToken)
	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	return &cr
}

// Refresh satisfies api.Authenticator.
func (s *Service) Refresh(ctx context.Context) bool {
	return s.RefreshToken(ctx) != nil
}

// AccessToken satisfies api.Authenticator.
func (s *Service) AccessToken(ctx context.Context) string {
	return s.store.AccessToken(ctx)
}

// IsAuthenticated reports whether an access token is present and not
// strictly expired. This check uses threshold 0, unlike the defensive
// margin applied elsewhere.
func (s *Service) IsAuthenticated(ctx context.Context) bool {
	tok := s.store.AccessToken(ctx)
	return tok != "" && !tokens.IsExpired(tok, 0)
}

// User returns the cached user record, if any.
func (s *Service) User(ctx context.Context) *models.User {
	return s.store.User(ctx)
}

func (s *Service) postJSON(ctx context.Context, path string, payload any) ([]byte, int, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
