package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/route"
	"github.com/MrEthical07/authstate/session"
)

type stubBackend struct {
	users     map[string]session.User
	validates atomic.Int32
}

func newStubBackend() *stubBackend {
	return &stubBackend{users: map[string]session.User{
		"tok-user1": {ID: "2", Username: "alice", Roles: session.NewRoleSet("user1")},
		"tok-root":  {ID: "1", Username: "root", Roles: session.NewRoleSet("superadmin")},
	}}
}

func (b *stubBackend) Authenticate(context.Context, authstate.Credentials) (authstate.LoginResponse, error) {
	return authstate.LoginResponse{}, authstate.ErrInvalidCredentials
}

func (b *stubBackend) Validate(_ context.Context, token string) (authstate.ValidateResponse, error) {
	b.validates.Add(1)
	if token == "tok-panic" {
		panic("validator crashed")
	}
	u, ok := b.users[token]
	if !ok {
		return authstate.ValidateResponse{}, authstate.ErrTokenInvalid
	}
	return authstate.ValidateResponse{User: u, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (b *stubBackend) Logout(context.Context, string) error { return nil }

func (b *stubBackend) UpdateProfile(context.Context, string, session.Patch) (session.User, error) {
	return session.User{}, authstate.ErrNotLoggedIn
}

func sessionCookie(t *testing.T, token string) *http.Cookie {
	t.Helper()
	u := session.User{ID: "2", Username: "alice", Roles: session.NewRoleSet("user1")}
	value, err := session.EncodeString(session.Record{Token: token, User: &u, ExpiresAt: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("encode record: %v", err)
	}
	return &http.Cookie{Name: "auth-data", Value: value}
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, ok := ManagerFromContext(r.Context())
		if !ok {
			t.Error("expected a manager in the request context")
			return
		}
		name := "anonymous"
		if u := m.CurrentUser(); u != nil {
			name = u.Username
		}
		_, _ = w.Write([]byte("hello " + name))
	})
}

func guarded(t *testing.T, b authstate.Backend) http.Handler {
	return Guard(b, GuardOptions{Stores: CookieStores(session.DefaultCookieConfig())})(okHandler(t))
}

func TestGuardRedirectsAnonymousToLogin(t *testing.T) {
	b := newStubBackend()
	rec := httptest.NewRecorder()
	guarded(t, b).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profile?tab=1", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login?redirect=%2Fprofile%3Ftab%3D1" {
		t.Fatalf("unexpected location %q", loc)
	}
	if b.validates.Load() != 0 {
		t.Fatal("an anonymous request must not reach the backend")
	}
}

func TestGuardAllowsRoleHolder(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/person/list", nil)
	req.AddCookie(sessionCookie(t, "tok-user1"))
	rec := httptest.NewRecorder()
	guarded(t, newStubBackend()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "hello alice" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestGuardForbidsMissingRole(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/management", nil)
	req.AddCookie(sessionCookie(t, "tok-user1"))
	rec := httptest.NewRecorder()
	guarded(t, newStubBackend()).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestGuardSendsSignedInUserHomeFromLogin(t *testing.T) {
	b := newStubBackend()

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(sessionCookie(t, "tok-user1"))
	req.Header.Set("Referer", "http://example.com/person")
	rec := httptest.NewRecorder()
	guarded(t, b).ServeHTTP(rec, req)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect home, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	// Arriving from home itself must not loop.
	req = httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(sessionCookie(t, "tok-user1"))
	req.Header.Set("Referer", "http://example.com/")
	rec = httptest.NewRecorder()
	guarded(t, b).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when coming from home, got %d", rec.Code)
	}
}

func TestGuardForgedCookieClearsAndRedirects(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(sessionCookie(t, "tok-forged"))
	rec := httptest.NewRecorder()
	guarded(t, newStubBackend()).ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "auth-data" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("expected the auth-data cookie to be deleted")
	}
}

func TestGuardAbortsWhenCheckPanics(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer tok-panic")
	rec := httptest.NewRecorder()
	guarded(t, newStubBackend()).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestGuardReusesSessionManager(t *testing.T) {
	b := newStubBackend()
	stores := CookieStores(session.DefaultCookieConfig())
	h := Session(b, stores)(Guard(b, GuardOptions{Stores: stores})(okHandler(t)))

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(sessionCookie(t, "tok-user1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if n := b.validates.Load(); n != 1 {
		t.Fatalf("expected one backend validation, got %d", n)
	}
}

func TestSessionAttachesAnonymousManager(t *testing.T) {
	rec := httptest.NewRecorder()
	Session(newStubBackend(), nil)(okHandler(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if body := rec.Body.String(); body != "hello anonymous" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestRequireAPI(t *testing.T) {
	h := RequireAPI(newStubBackend(), route.Requirement{
		RequiresAuth:  true,
		RequiredRoles: session.NewRoleSet("superadmin"),
	})(okHandler(t))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing bearer", want: http.StatusUnauthorized},
		{name: "malformed header", header: "Token tok-root", want: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "missing role", header: "Bearer tok-user1", want: http.StatusForbidden},
		{name: "allowed", header: "Bearer tok-root", want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/person", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	var got string
	h := ClientIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = authstate.ClientIPFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:52100"
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "203.0.113.7" {
		t.Fatalf("unexpected ip %q", got)
	}

	req.RemoteAddr = "unix-socket"
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !strings.HasPrefix(got, "unix") {
		t.Fatalf("expected raw remote addr fallback, got %q", got)
	}
}
