package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/route"
	"github.com/MrEthical07/authstate/session"
)

// ManagerFromContext returns the request's Manager attached by Session.
var ManagerFromContext = authstate.ManagerFromContext

// Session attaches an initialized OneShot Manager to every request. The
// credential is the bearer token when present, else the stored record.
func Session(backend authstate.Backend, stores StoreFactory, opts ...authstate.ManagerOption) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := newRequestManager(backend, stores, w, r, opts)
			m.Initialize(r.Context())
			next.ServeHTTP(w, r.WithContext(authstate.WithManager(r.Context(), m)))
		})
	}
}

// GuardOptions configures Guard.
type GuardOptions struct {
	Authorizer *route.Authorizer
	Table      *route.Table
	Stores     StoreFactory
	Logger     *slog.Logger
	Manager    []authstate.ManagerOption
}

// Guard authorizes page requests. Anonymous callers are redirected to the
// login page with the requested path, signed-in callers visiting a public
// page are sent home, and a missing role is a 403. A failed check is a 500.
func Guard(backend authstate.Backend, opts GuardOptions) func(http.Handler) http.Handler {
	authz := opts.Authorizer
	if authz == nil {
		authz = route.NewAuthorizer()
	}
	table := opts.Table
	if table == nil {
		table = route.DefaultTable()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := reusedManager(r)
			if m == nil {
				m = newRequestManager(backend, opts.Stores, w, r, opts.Manager)
			}

			nav := route.Navigation{To: r.URL.RequestURI(), From: refererPath(r)}
			d := authz.Authorize(r.Context(), nav, table.Lookup(r.URL.Path), m)

			switch d.Kind {
			case route.Allow:
				next.ServeHTTP(w, r.WithContext(authstate.WithManager(r.Context(), m)))
			case route.RedirectLogin, route.RedirectHome:
				http.Redirect(w, r, d.Location, http.StatusFound)
			case route.Forbidden:
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				logger.Error("authorization aborted", "path", r.URL.Path, "reason", d.Reason)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		})
	}
}

// RequireAPI authorizes API requests against req using the bearer token only.
func RequireAPI(backend authstate.Backend, req route.Requirement, opts ...authstate.ManagerOption) func(http.Handler) http.Handler {
	authz := route.NewAuthorizer()
	authz.Public = nil

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			opt := append(append([]authstate.ManagerOption(nil), opts...), authstate.WithBearerToken(token))
			m := authstate.NewManager(backend, nil, opt...)

			d := authz.Authorize(r.Context(), route.Navigation{To: r.URL.RequestURI()}, req, m)
			switch d.Kind {
			case route.Allow:
				next.ServeHTTP(w, r.WithContext(authstate.WithManager(r.Context(), m)))
			case route.Forbidden:
				http.Error(w, "forbidden", http.StatusForbidden)
			case route.RedirectLogin, route.RedirectHome:
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			default:
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		})
	}
}

// ClientIP records the request's remote address in the context.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		next.ServeHTTP(w, r.WithContext(authstate.WithClientIP(r.Context(), host)))
	})
}

func newRequestManager(backend authstate.Backend, stores StoreFactory, w http.ResponseWriter, r *http.Request, opts []authstate.ManagerOption) *authstate.Manager {
	opt := append([]authstate.ManagerOption(nil), opts...)
	if token, ok := BearerToken(r.Header.Get("Authorization")); ok {
		opt = append(opt, authstate.WithBearerToken(token))
	}
	var store session.Store
	if stores != nil {
		store = stores(w, r)
	}
	return authstate.NewManager(backend, store, opt...)
}

// reusedManager returns a Manager already attached by Session.
func reusedManager(r *http.Request) *authstate.Manager {
	m, ok := authstate.ManagerFromContext(r.Context())
	if !ok {
		return nil
	}
	return m
}

func refererPath(r *http.Request) string {
	ref := r.Referer()
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != r.Host) {
		return ""
	}
	return u.Path
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
