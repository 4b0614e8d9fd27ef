package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alefiaschi96/networth-gateway/internal/api"
	"github.com/alefiaschi96/networth-gateway/internal/tokenstore"
)

// restoreBackend serves the profile and refresh endpoints: the profile
// requires the "good" access token, the refresh endpoint upgrades the
// "r-ok" refresh token to it.
func restoreBackend(t *testing.T, profileCalls, refreshCalls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/me":
			atomic.AddInt32(profileCalls, 1)
			if r.Header.Get("Authorization") != "Bearer good" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"message":"invalid token"}`))
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "u1", "email": "a@b.c", "name": "Alice"})
		case "/api/auth/refresh-token":
			atomic.AddInt32(refreshCalls, 1)
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["refreshToken"] != "r-ok" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"message":"invalid refresh token"}`))
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"accessToken": "good", "refreshToken": "r-2"})
		case "/api/auth/logout":
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestState(srvURL string, store *tokenstore.Store, httpc *http.Client) *State {
	svc := NewService(srvURL, testEndpoints(), store, httpc)
	client := api.NewClient(srvURL, svc, httpc)
	return NewState(svc, client, testEndpoints().Profile)
}

func TestRestore_NoTokenResolvesAnonymous(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	st := newTestState("http://unused", store, nil)

	require.True(t, st.IsLoading())
	st.Restore(ctx)

	require.False(t, st.IsLoading())
	require.False(t, st.IsAuthenticated())
	require.Equal(t, StatusAnonymous, st.Status())
}

func TestRestore_ValidTokenLoadsProfile(t *testing.T) {
	var profileCalls, refreshCalls int32
	srv := restoreBackend(t, &profileCalls, &refreshCalls)
	defer srv.Close()

	ctx := context.Background()
	store := newTestStore(t)
	store.Save(ctx, "good", "r-ok")
	st := newTestState(srv.URL, store, srv.Client())

	st.Restore(ctx)

	require.False(t, st.IsLoading())
	require.True(t, st.IsAuthenticated())
	require.Equal(t, "Alice", st.User().Name)
	require.Equal(t, StatusAuthenticated, st.Status())
	require.EqualValues(t, 1, atomic.LoadInt32(&profileCalls))
	require.EqualValues(t, 0, atomic.LoadInt32(&refreshCalls))
}

func TestRestore_StaleTokenRefreshesOnceAndRetries(t *testing.T) {
	var profileCalls, refreshCalls int32
	srv := restoreBackend(t, &profileCalls, &refreshCalls)
	defer srv.Close()

	ctx := context.Background()
	store := newTestStore(t)
	store.Save(ctx, "stale", "r-ok")
	st := newTestState(srv.URL, store, srv.Client())

	st.Restore(ctx)

	require.True(t, st.IsAuthenticated())
	require.Equal(t, "u1", st.User().ID)
	require.EqualValues(t, 2, atomic.LoadInt32(&profileCalls))
	require.EqualValues(t, 1, atomic.LoadInt32(&refreshCalls))
	require.Equal(t, "good", store.AccessToken(ctx))
}

func TestRestore_UnrecoverableRefreshForcesLogout(t *testing.T) {
	var profileCalls, refreshCalls int32
	srv := restoreBackend(t, &profileCalls, &refreshCalls)
	defer srv.Close()

	ctx := context.Background()
	store := newTestStore(t)
	store.Save(ctx, "stale", "r-bad")
	st := newTestState(srv.URL, store, srv.Client())

	st.Restore(ctx)

	require.False(t, st.IsLoading())
	require.False(t, st.IsAuthenticated())
	require.Equal(t, StatusAnonymous, st.Status())
	require.Empty(t, store.AccessToken(ctx))
	require.EqualValues(t, 1, atomic.LoadInt32(&profileCalls))
	require.EqualValues(t, 1, atomic.LoadInt32(&refreshCalls))
}

func TestLogin_UpdatesStateAndError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Invalid credentials"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"accessToken":  "acc",
			"refreshToken": "ref",
			"user":         map[string]string{"id": "u1", "email": "a@b.c", "name": "Alice"},
		})
	}))
	defer srv.Close()

	ctx := context.Background()
	store := newTestStore(t)
	st := newTestState(srv.URL, store, srv.Client())

	_, err := st.Login(ctx, "a@b.c", "wrong")
	require.Error(t, err)
	require.False(t, st.IsAuthenticated())
	require.Equal(t, "Invalid credentials", st.LastError())

	st.ClearError()
	require.Empty(t, st.LastError())

	u, err := st.Login(ctx, "a@b.c", "secret")
	require.NoError(t, err)
	require.Equal(t, "u1", u.ID)
	require.True(t, st.IsAuthenticated())
	require.False(t, st.IsLoading())
	require.Equal(t, StatusAuthenticated, st.Status())
}

func TestLogout_ResetsToAnonymous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx := context.Background()
	store := newTestStore(t)
	store.Save(ctx, "good", "r-ok")
	st := newTestState(srv.URL, store, srv.Client())

	st.Logout(ctx)
	require.False(t, st.IsAuthenticated())
	require.Empty(t, store.AccessToken(ctx))

	// twice in a row is fine
	st.Logout(ctx)
	require.Equal(t, StatusAnonymous, st.Status())
}

func TestDecodeUser_Envelopes(t *testing.T) {
	u, err := decodeUser(json.RawMessage(`{"id":"u1","email":"a@b.c","name":"Alice"}`))
	require.NoError(t, err)
	require.Equal(t, "u1", u.ID)

	u, err = decodeUser(json.RawMessage(`{"user":{"id":"u2","email":"b@c.d","name":"Bob"}}`))
	require.NoError(t, err)
	require.Equal(t, "u2", u.ID)

	_, err = decodeUser(json.RawMessage(`[]`))
	require.Error(t, err)
}
