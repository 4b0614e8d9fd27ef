package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/alefiaschi96/networth-gateway/internal/models"
	"github.com/stretchr/testify/require"
)

// fakeCookies records cookie writes in a plain map.
type fakeCookies struct {
	values map[string]string
}

func newFakeCookies() *fakeCookies {
	return &fakeCookies{values: map[string]string{}}
}

func (f *fakeCookies) Get(name string) string { return f.values[name] }
func (f *fakeCookies) Set(name, value string, maxAge time.Duration) {
	f.values[name] = value
}
func (f *fakeCookies) Delete(name string) { delete(f.values, name) }

func TestStore_SaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	cookies := newFakeCookies()
	repo := NewMemoryRepository()
	s := New(cookies, repo, "dev-1", DefaultNames())

	s.Save(ctx, "access-1", "refresh-1")

	require.Equal(t, "access-1", s.AccessToken(ctx))
	require.Equal(t, "refresh-1", s.RefreshToken(ctx))

	// both tiers hold the pair
	require.Equal(t, "access-1", cookies.values["accessToken"])
	rec, err := repo.Get(ctx, "dev-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "refresh-1", rec.RefreshToken)
}

func TestStore_CookieTierWins(t *testing.T) {
	ctx := context.Background()
	cookies := newFakeCookies()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Put(ctx, "dev-1", &Record{AccessToken: "stale", RefreshToken: "stale-r"}, time.Hour))

	s := New(cookies, repo, "dev-1", DefaultNames())
	cookies.values["accessToken"] = "fresh"

	require.Equal(t, "fresh", s.AccessToken(ctx))
	// no cookie for refresh: repository fallback
	require.Equal(t, "stale-r", s.RefreshToken(ctx))
}

func TestStore_NoCookieSource(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Put(ctx, "dev-1", &Record{AccessToken: "a", RefreshToken: "r"}, time.Hour))

	s := New(nil, repo, "dev-1", DefaultNames())
	require.Equal(t, "a", s.AccessToken(ctx))
	require.Equal(t, "r", s.RefreshToken(ctx))

	// and with no tiers at all, reads are safe and empty
	empty := New(nil, nil, "", DefaultNames())
	require.Empty(t, empty.AccessToken(ctx))
	require.Empty(t, empty.RefreshToken(ctx))
	require.Nil(t, empty.User(ctx))
}

func TestStore_ClearErasesEverything(t *testing.T) {
	ctx := context.Background()
	cookies := newFakeCookies()
	repo := NewMemoryRepository()
	s := New(cookies, repo, "dev-1", DefaultNames())

	s.Save(ctx, "a", "r")
	s.SaveUser(ctx, &models.User{ID: "u1", Email: "a@b.c", Name: "A"})
	require.NotNil(t, s.User(ctx))

	s.Clear(ctx)

	require.Empty(t, s.AccessToken(ctx))
	require.Empty(t, s.RefreshToken(ctx))
	require.Nil(t, s.User(ctx))

	// clearing twice is harmless
	s.Clear(ctx)
	require.Empty(t, s.AccessToken(ctx))
}

func TestStore_SavePreservesCachedUser(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	s := New(newFakeCookies(), repo, "dev-1", DefaultNames())

	s.Save(ctx, "a1", "r1")
	s.SaveUser(ctx, &models.User{ID: "u1", Email: "a@b.c", Name: "A"})

	// a refresh supersedes the pair but keeps the user
	s.Save(ctx, "a2", "r2")
	u := s.User(ctx)
	require.NotNil(t, u)
	require.Equal(t, "u1", u.ID)
	require.Equal(t, "a2", s.AccessToken(ctx))
}
