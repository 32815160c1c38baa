package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/middleware"
	"github.com/MrEthical07/authstate/route"
	"github.com/MrEthical07/authstate/session"
)

// Deps holds what the HTTP surface needs.
type Deps struct {
	// Backend answers the auth endpoints. Required.
	Backend authstate.Backend
	// Stores backs the page-side Manager. Defaults to the auth-data cookie.
	Stores middleware.StoreFactory
	Logger *slog.Logger
	// Table and Authorizer guard the page routes. Both default.
	Table      *route.Table
	Authorizer *route.Authorizer
	// Metrics, when set, is served at /metrics.
	Metrics http.Handler
	// Pages mounts collaborator pages behind the guard.
	Pages   func(r chi.Router)
	Manager []authstate.ManagerOption
}

// Server routes the auth API and the guarded pages.
type Server struct {
	backend    authstate.Backend
	stores     middleware.StoreFactory
	logger     *slog.Logger
	table      *route.Table
	authorizer *route.Authorizer
	metrics    http.Handler
	pages      func(r chi.Router)
	manager    []authstate.ManagerOption
	handler    http.Handler
}

// New builds the router.
func New(deps Deps) (*Server, error) {
	if deps.Backend == nil {
		return nil, errors.New("httpapi: backend is required")
	}
	s := &Server{
		backend:    deps.Backend,
		stores:     deps.Stores,
		logger:     deps.Logger,
		table:      deps.Table,
		authorizer: deps.Authorizer,
		metrics:    deps.Metrics,
		pages:      deps.Pages,
		manager:    deps.Manager,
	}
	if s.stores == nil {
		s.stores = middleware.CookieStores(session.DefaultCookieConfig())
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.table == nil {
		s.table = route.DefaultTable()
	}
	if s.authorizer == nil {
		s.authorizer = route.NewAuthorizer()
	}
	s.manager = append(s.manager, authstate.WithLogger(s.logger))
	s.handler = s.buildRouter()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(s.recoverPanics)
	r.Use(limitBody)
	r.Use(middleware.ClientIP)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Get("/validate", s.handleValidate)
		r.Post("/logout", s.handleLogout)
		r.Patch("/profile", s.handleProfile)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(s.backend, s.stores, s.manager...))

		r.Post("/login", s.handleLoginForm)
		r.Get("/logout", s.handleLogoutPage)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(s.backend, middleware.GuardOptions{
				Authorizer: s.authorizer,
				Table:      s.table,
				Stores:     s.stores,
				Logger:     s.logger,
				Manager:    s.manager,
			}))
			r.Get("/login", s.handleLoginPage)
			r.Get("/", s.handleHome)
			r.Get("/me", s.handleMe)
			if s.pages != nil {
				s.pages(r)
			}
		})
	})

	return r
}
