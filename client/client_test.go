package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/directory"
	"github.com/MrEthical07/authstate/httpapi"
	"github.com/MrEthical07/authstate/session"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	db, err := directory.Open(ctx, filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	dir := directory.New(db)

	cfg := authstate.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := authstate.New().WithConfig(cfg).WithDirectory(dir).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	for _, u := range []struct{ name, role string }{{"alice", "user1"}, {"root", "superadmin"}} {
		hash, err := engine.HashPassword(u.name + "-password")
		require.NoError(t, err)
		_, err = dir.CreateUser(ctx, u.name, hash, "", session.NewRoleSet(u.role))
		require.NoError(t, err)
	}

	api, err := httpapi.New(httpapi.Deps{Backend: engine})
	require.NoError(t, err)
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(url, WithTimeout(5*time.Second))
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)
	_, err = New("://nope")
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	c := newClient(t, newServer(t).URL)
	ctx := context.Background()

	resp, err := c.Authenticate(ctx, authstate.Credentials{
		Username:          "alice",
		Password:          "alice-password",
		RequestedDuration: 2 * time.Hour,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.User)
	assert.Equal(t, "alice", resp.User.Username)
	assert.True(t, resp.User.Roles.Has("user1"))
	assert.Equal(t, 2*time.Hour, resp.ExpiresIn)

	v, err := c.Validate(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, v.User.ID)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), v.ExpiresAt, time.Minute)

	avatar := "alice.png"
	u, err := c.UpdateProfile(ctx, resp.Token, session.Patch{Avatar: &avatar})
	require.NoError(t, err)
	assert.Equal(t, "alice.png", u.Avatar)

	require.NoError(t, c.Logout(ctx, resp.Token))
}

func TestRejectionsMapToSentinels(t *testing.T) {
	c := newClient(t, newServer(t).URL)
	ctx := context.Background()

	_, err := c.Authenticate(ctx, authstate.Credentials{Username: "alice", Password: "wrong-password"})
	assert.ErrorIs(t, err, authstate.ErrInvalidCredentials)

	_, err = c.Validate(ctx, "forged")
	assert.ErrorIs(t, err, authstate.ErrTokenInvalid)

	assert.ErrorIs(t, c.Logout(ctx, "forged"), authstate.ErrTokenInvalid)

	resp, err := c.Authenticate(ctx, authstate.Credentials{Username: "alice", Password: "alice-password"})
	require.NoError(t, err)
	taken := "root"
	_, err = c.UpdateProfile(ctx, resp.Token, session.Patch{Username: &taken})
	assert.ErrorIs(t, err, authstate.ErrInvalidProfile)
}

func TestRejectionTable(t *testing.T) {
	cases := []struct {
		path    string
		status  int
		message string
		want    error
	}{
		{"/api/auth/login", http.StatusUnauthorized, httpapi.MsgInvalidCredentials, authstate.ErrInvalidCredentials},
		{"/api/auth/login", http.StatusUnauthorized, "something else", authstate.ErrInvalidCredentials},
		{"/api/auth/login", http.StatusTooManyRequests, httpapi.MsgRateLimited, authstate.ErrLoginRateLimited},
		{"/api/auth/validate", http.StatusUnauthorized, httpapi.MsgTokenExpired, authstate.ErrTokenExpired},
		{"/api/auth/validate", http.StatusUnauthorized, httpapi.MsgUserNotFound, authstate.ErrUserNotFound},
		{"/api/auth/validate", http.StatusUnauthorized, httpapi.MsgMissingBearer, authstate.ErrTokenInvalid},
		{"/api/auth/validate", http.StatusUnauthorized, "odd", authstate.ErrTokenInvalid},
		{"/api/auth/profile", http.StatusUnauthorized, httpapi.MsgNotLoggedIn, authstate.ErrNotLoggedIn},
		{"/api/auth/profile", http.StatusBadRequest, "nothing to update", authstate.ErrInvalidProfile},
		{"/api/auth/validate", http.StatusServiceUnavailable, "", authstate.ErrNetworkFailure},
		{"/api/auth/validate", http.StatusForbidden, "forbidden", authstate.ErrForbidden},
	}
	for _, tc := range cases {
		err := rejection(tc.path, tc.status, tc.message)
		assert.ErrorIs(t, err, tc.want, "%s %d %q", tc.path, tc.status, tc.message)
	}
}

func TestNetworkFailures(t *testing.T) {
	ctx := context.Background()

	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()
	_, err := newClient(t, url).Validate(ctx, "tok")
	assert.ErrorIs(t, err, authstate.ErrNetworkFailure)

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "<html>bad gateway</html>", http.StatusBadGateway)
	}))
	defer gateway.Close()
	_, err = newClient(t, gateway.URL).Validate(ctx, "tok")
	assert.ErrorIs(t, err, authstate.ErrNetworkFailure)

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer garbage.Close()
	_, err = newClient(t, garbage.URL).Validate(ctx, "tok")
	assert.ErrorIs(t, err, authstate.ErrNetworkFailure)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = newClient(t, garbage.URL).Validate(cancelled, "tok")
	assert.ErrorIs(t, err, authstate.ErrNetworkFailure)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPersistentManagerOverHTTP(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv.URL)
	store := session.NewMemoryStore()
	ctx := context.Background()

	first := authstate.NewManager(c, store, authstate.WithExecutionContext(authstate.Persistent))
	first.Initialize(ctx)
	require.Equal(t, authstate.StateUnauthenticated, first.State())

	_, err := first.Login(ctx, authstate.Credentials{Username: "alice", Password: "alice-password"})
	require.NoError(t, err)

	// A second process start hydrates from the store and confirms remotely.
	second := authstate.NewManager(c, store, authstate.WithExecutionContext(authstate.Persistent))
	second.Initialize(ctx)
	assert.Equal(t, authstate.StateAuthenticated, second.State())
	<-second.Confirmed()
	assert.True(t, second.IsAuthenticated())
	assert.False(t, second.Tentative())
	assert.Equal(t, "alice", second.CurrentUser().Username)

	require.NoError(t, second.Logout(ctx))
	rec, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, rec.IsZero())
}

func TestPersistentConfirmationFailsWhenServerUnreachable(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv.URL)
	store := session.NewMemoryStore()
	ctx := context.Background()

	m := authstate.NewManager(c, store, authstate.WithExecutionContext(authstate.Persistent))
	m.Initialize(ctx)
	_, err := m.Login(ctx, authstate.Credentials{Username: "root", Password: "root-password"})
	require.NoError(t, err)
	srv.Close()

	restarted := authstate.NewManager(c, store, authstate.WithExecutionContext(authstate.Persistent))
	restarted.Initialize(ctx)
	<-restarted.Confirmed()
	assert.False(t, restarted.IsAuthenticated())
	assert.True(t, errors.Is(restarted.LastError(), authstate.ErrNetworkFailure))
}

func TestLoginWithoutUserIsRejected(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"message":"ok","success":true,"data":{"list":{"token":"T1","expiresIn":3600}}}`))
	}))
	defer srv.Close()
	c := newClient(t, srv.URL)

	resp, err := c.Authenticate(ctx, authstate.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "T1", resp.Token)
	assert.Nil(t, resp.User)

	store := session.NewMemoryStore()
	m := authstate.NewManager(c, store)
	_, err = m.Login(ctx, authstate.Credentials{Username: "alice", Password: "pw"})
	assert.ErrorIs(t, err, authstate.ErrTokenInvalid)
	assert.False(t, m.IsAuthenticated())
	rec, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, rec.IsZero())
}
