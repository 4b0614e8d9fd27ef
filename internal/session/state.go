package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/alefiaschi96/networth-gateway/internal/api"
	"github.com/alefiaschi96/networth-gateway/internal/models"
)

// Status is the externally visible session lifecycle state.
type Status int

const (
	StatusAnonymous Status = iota
	StatusAuthenticating
	StatusAuthenticated
	// StatusRefreshing is a sub-state of Authenticated entered during
	// the restore sequence's refresh-and-retry; it degrades to
	// Anonymous only when the refresh fails.
	StatusRefreshing
)

// State holds the reactive session view: current user, loading flag and
// last error. It is explicitly constructed and injected, never a
// package-level singleton, so tests cannot leak state into each other.
type State struct {
	mu          sync.Mutex
	user        *models.User
	status      Status
	loading     bool
	lastError   string
	svc         *Service
	client      *api.Client
	profilePath string
}

// NewState builds a session state starting in the loading phase; call
// Restore to resolve it.
func NewState(svc *Service, client *api.Client, profilePath string) *State {
	return &State{
		svc:         svc,
		client:      client,
		profilePath: profilePath,
		status:      StatusAnonymous,
		loading:     true,
	}
}

// Restore resolves the initial session: with a persisted access token it
// fetches the profile, falling back to one refresh-and-retry; continued
// failure forces a logout. The loading flag clears exactly once at the
// end of the sequence regardless of outcome.
func (st *State) Restore(ctx context.Context) {
	defer func() {
		st.mu.Lock()
		st.loading = false
		st.mu.Unlock()
	}()

	if st.svc.AccessToken(ctx) == "" {
		return
	}

	if u, err := st.fetchProfile(ctx); err == nil {
		st.setAuthenticated(u)
		return
	}

	st.setStatus(StatusRefreshing)
	if st.svc.RefreshToken(ctx) == nil {
		st.forceLogout(ctx)
		return
	}
	u, err := st.fetchProfile(ctx)
	if err != nil {
		st.forceLogout(ctx)
		return
	}
	st.setAuthenticated(u)
}

// Login authenticates and updates the session view. The returned user is
// nil on failure; the post-login navigation side effect belongs to the
// caller.
func (st *State) Login(ctx context.Context, email, password string) (*models.User, error) {
	st.mu.Lock()
	st.status = StatusAuthenticating
	st.loading = true
	st.lastError = ""
	st.mu.Unlock()

	u, err := st.svc.Login(ctx, email, password)

	st.mu.Lock()
	defer st.mu.Unlock()
	st.loading = false
	if err != nil {
		st.status = StatusAnonymous
		st.lastError = err.Error()
		return nil, err
	}
	st.user = u
	st.status = StatusAuthenticated
	return u, nil
}

// Logout resets to the anonymous state. Idempotent.
func (st *State) Logout(ctx context.Context) {
	st.svc.Logout(ctx)
	st.mu.Lock()
	st.user = nil
	st.status = StatusAnonymous
	st.mu.Unlock()
}

// ClearError drops the last error message.
func (st *State) ClearError() {
	st.mu.Lock()
	st.lastError = ""
	st.mu.Unlock()
}

func (st *State) User() *models.User {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.user
}

// IsAuthenticated is derived from the presence of a user record.
func (st *State) IsAuthenticated() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.user != nil
}

func (st *State) IsLoading() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.loading
}

func (st *State) LastError() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lastError
}

func (st *State) Status() Status {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.status
}

// fetchProfile loads the current user with the stored token, without
// triggering the client's own refresh cycle: Restore owns the single
// refresh-and-retry here.
func (st *State) fetchProfile(ctx context.Context) (*models.User, error) {
	raw, err := st.client.Do(ctx, st.profilePath, api.Options{
		Method:               http.MethodGet,
		SkipRefreshOnFailure: true,
	})
	if err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// decodeUser accepts both a bare profile object and a {"user": ...}
// envelope, as observed across backend revisions.
func decodeUser(raw json.RawMessage) (*models.User, error) {
	var wrapped struct {
		User *models.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil && wrapped.User.ID != "" {
		return wrapped.User, nil
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (st *State) setAuthenticated(u *models.User) {
	st.mu.Lock()
	st.user = u
	st.status = StatusAuthenticated
	st.mu.Unlock()
}

func (st *State) setStatus(s Status) {
	st.mu.Lock()
	st.status = s
	st.mu.Unlock()
}

func (st *State) forceLogout(ctx context.Context) {
	st.svc.Logout(ctx)
	st.mu.Lock()
	st.user = nil
	st.status = StatusAnonymous
	st.mu.Unlock()
}
