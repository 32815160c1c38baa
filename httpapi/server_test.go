package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/directory"
	"github.com/MrEthical07/authstate/session"
)

type fixture struct {
	server *Server
	engine *authstate.Engine
}

func newFixture(t *testing.T) *fixture {
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

	for _, u := range []struct{ name, password, role string }{
		{"alice", "correct-password", "user1"},
		{"root", "root-password", "superadmin"},
	} {
		hash, err := engine.HashPassword(u.password)
		require.NoError(t, err)
		_, err = dir.CreateUser(ctx, u.name, hash, "", session.NewRoleSet(u.role))
		require.NoError(t, err)
	}

	page := func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("page")) }
	srv, err := New(Deps{
		Backend: engine,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("metrics")) }),
		Pages: func(r chi.Router) {
			r.Get("/person", page)
			r.Get("/management", page)
		},
	})
	require.NoError(t, err)
	return &fixture{server: srv, engine: engine}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) apiLogin(t *testing.T, body string) (*httptest.ResponseRecorder, Response[LoginView]) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := f.do(req)
	var env Response[LoginView]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func bearer(method, target, token string, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) Response[T] {
	t.Helper()
	var env Response[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestNewRequiresBackend(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
}

func TestAPILogin(t *testing.T) {
	f := newFixture(t)

	rec, env := f.apiLogin(t, `{"username":"alice","password":"correct-password"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, 200, env.Code)
	assert.Equal(t, onePage, env.Data.Pagination)
	assert.NotEmpty(t, env.Data.List.Token)
	assert.Equal(t, "alice", env.Data.List.Username)
	assert.True(t, env.Data.List.Roles.Has("user1"))
	assert.EqualValues(t, 3600, env.Data.List.ExpiresIn)
	assert.False(t, env.Timestamp.IsZero())

	rec, env = f.apiLogin(t, `{"username":"alice","password":"correct-password","expiresIn":"7d"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 7*24*3600, env.Data.List.ExpiresIn)

	rec, env = f.apiLogin(t, `{"username":"alice","password":"correct-password","rememberMe":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 7*24*3600, env.Data.List.ExpiresIn)
}

func TestAPILoginRejections(t *testing.T) {
	f := newFixture(t)

	rec, env := f.apiLogin(t, `{"username":"alice","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, 401, env.Code)
	assert.Empty(t, env.Data.List.Token)
	assert.Equal(t, emptyPage, env.Data.Pagination)

	rec, _ = f.apiLogin(t, `{"username":"ghost","password":"whatever"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.apiLogin(t, `{"username":"alice","password":"correct-password","expiresIn":"soon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIValidate(t *testing.T) {
	f := newFixture(t)
	_, login := f.apiLogin(t, `{"username":"alice","password":"correct-password"}`)
	token := login.Data.List.Token

	rec := f.do(bearer(http.MethodGet, "/api/auth/validate", "", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, decode[any](t, rec).Success)

	rec = f.do(bearer(http.MethodGet, "/api/auth/validate", "forged", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(bearer(http.MethodGet, "/api/auth/validate", token, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode[UserView](t, rec)
	assert.Equal(t, "alice", env.Data.List.Username)
	require.NotNil(t, env.Data.List.ExpiresAt)
	assert.Equal(t, login.Data.List.ID, env.Data.List.ID)
}

func TestAPILogout(t *testing.T) {
	f := newFixture(t)
	_, login := f.apiLogin(t, `{"username":"alice","password":"correct-password"}`)

	rec := f.do(bearer(http.MethodPost, "/api/auth/logout", "", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(bearer(http.MethodPost, "/api/auth/logout", "forged", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(bearer(http.MethodPost, "/api/auth/logout", login.Data.List.Token, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode[any](t, rec)
	assert.True(t, env.Success)
	assert.Nil(t, env.Data.List)
}

func TestAPIProfile(t *testing.T) {
	f := newFixture(t)
	_, login := f.apiLogin(t, `{"username":"alice","password":"correct-password"}`)
	token := login.Data.List.Token

	rec := f.do(bearer(http.MethodPatch, "/api/auth/profile", token, `{"avatar":"a.png"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode[[]UserView](t, rec)
	require.Len(t, env.Data.List, 1)
	assert.Equal(t, "a.png", env.Data.List[0].Avatar)
	assert.Equal(t, "alice", env.Data.List[0].Username)

	cases := []struct {
		name  string
		token string
		body  string
		want  int
	}{
		{"missing bearer", "", `{"avatar":"b.png"}`, http.StatusUnauthorized},
		{"empty patch", token, `{}`, http.StatusBadRequest},
		{"blank username", token, `{"username":"  "}`, http.StatusBadRequest},
		{"taken username", token, `{"username":"root"}`, http.StatusConflict},
		{"malformed body", token, `[`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(bearer(http.MethodPatch, "/api/auth/profile", tc.token, tc.body))
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func cookiesFrom(rec *httptest.ResponseRecorder) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			out = append(out, c)
		}
	}
	return out
}

func withCookies(req *http.Request, cookies []*http.Cookie) *http.Request {
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return req
}

func formLogin(f *fixture, username, password, redirect string) *httptest.ResponseRecorder {
	form := url.Values{
		"username":         {username},
		"password":         {password},
		"redirect":         {redirect},
		"rememberUsername": {"on"},
	}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(req)
}

func TestPageFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?redirect=%2Fme", rec.Header().Get("Location"))

	rec = f.do(httptest.NewRequest(http.MethodGet, "/login?redirect=%2Fme", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="/me"`)

	rec = formLogin(f, "alice", "correct-password", "/me")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/me", rec.Header().Get("Location"))
	cookies := cookiesFrom(rec)
	require.NotEmpty(t, cookies)

	rec = f.do(withCookies(httptest.NewRequest(http.MethodGet, "/me", nil), cookies))
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[UserView](t, rec)
	assert.Equal(t, "alice", me.Data.List.Username)

	rec = f.do(withCookies(httptest.NewRequest(http.MethodGet, "/person", nil), cookies))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(withCookies(httptest.NewRequest(http.MethodGet, "/management", nil), cookies))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(withCookies(httptest.NewRequest(http.MethodGet, "/login", nil), cookies))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = f.do(withCookies(httptest.NewRequest(http.MethodGet, "/logout", nil), cookies))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	cleared := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared[c.Name] = true
		}
	}
	assert.True(t, cleared["auth-data"], "auth-data cookie must be deleted")
	assert.True(t, cleared["remembered-username"], "remembered username must be purged")
}

func TestFormLoginFailure(t *testing.T) {
	f := newFixture(t)

	rec := formLogin(f, "alice", "wrong", "https://evil.example/")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?error=1&redirect=%2F", rec.Header().Get("Location"))
	for _, c := range rec.Result().Cookies() {
		if c.Name == "auth-data" {
			assert.Negative(t, c.MaxAge, "a failed login must not leave a session behind")
		}
	}
}

func TestRememberedUsernamePrefillsForm(t *testing.T) {
	f := newFixture(t)
	rec := formLogin(f, "alice", "correct-password", "/")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	var remembered []*http.Cookie
	for _, c := range cookiesFrom(rec) {
		if c.Name == "remembered-username" {
			remembered = append(remembered, c)
		}
	}
	require.Len(t, remembered, 1)

	rec = f.do(withCookies(httptest.NewRequest(http.MethodGet, "/login", nil), remembered))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="alice"`)
}

func TestSafeRedirect(t *testing.T) {
	cases := map[string]string{
		"":                     "/",
		"/person?tab=2":        "/person?tab=2",
		"//evil.example":       "/",
		`/\evil.example`:       "/",
		"https://evil.example": "/",
		"relative":             "/",
	}
	for in, want := range cases {
		assert.Equal(t, want, safeRedirect(in), "input %q", in)
	}
}

func TestMetricsAndRequestID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "metrics", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec = f.do(req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
