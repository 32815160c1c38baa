package route

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/MrEthical07/authstate/session"
)

// Kind is the outcome of an authorization decision.
type Kind int

const (
	Allow Kind = iota
	RedirectLogin
	RedirectHome
	Forbidden
	// Abort means the check itself failed. Callers must treat it as a denial.
	Abort
)

func (k Kind) String() string {
	switch k {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	case Forbidden:
		return "forbidden"
	default:
		return "abort"
	}
}

// ReasonUnauthorized is the Reason of every RedirectLogin decision.
const ReasonUnauthorized = "unauthorized"

// Navigation is a requested move from From to To. To may carry a query.
type Navigation struct {
	To   string
	From string
}

// Requirement is what a route demands of the caller. Empty RequiredRoles with
// RequiresAuth means any authenticated user.
type Requirement struct {
	RequiresAuth  bool
	RequiredRoles session.RoleSet
}

// Facts is the part of a session the authorizer reads.
type Facts struct {
	Authenticated bool
	Roles         session.RoleSet
}

// Decision is the authorizer's verdict.
type Decision struct {
	Kind   Kind
	Reason string
	// Location is where to send the caller for redirect kinds.
	Location string
	// ReturnTo is the originally requested path on RedirectLogin.
	ReturnTo string
}

// FactsSource is a live session the authorizer can wait on and read.
// *authstate.Manager implements it.
type FactsSource interface {
	Initialize(ctx context.Context)
	IsAuthenticated() bool
	CurrentRoles() session.RoleSet
}

// Authorizer holds the site's routing conventions.
type Authorizer struct {
	LoginPath string
	HomePath  string
	// Public paths are reachable without a session; an authenticated caller
	// visiting one is sent home.
	Public []string
	// Landing maps a role to the page a client should fall back to when a
	// route is Forbidden.
	Landing map[string]string
}

// NewAuthorizer returns an Authorizer with /login and /register public and /
// as home.
func NewAuthorizer() *Authorizer {
	return &Authorizer{
		LoginPath: "/login",
		HomePath:  "/",
		Public:    []string{"/login", "/register"},
	}
}

// Decide applies, in order: public allow-list, requirement, authentication,
// roles.
func (a *Authorizer) Decide(nav Navigation, req Requirement, facts Facts) Decision {
	to := cleanPath(nav.To)

	if a.isPublic(to) {
		if !facts.Authenticated {
			return Decision{Kind: Allow}
		}
		home := a.home()
		if to == home || cleanPath(nav.From) == home {
			return Decision{Kind: Allow}
		}
		return Decision{Kind: RedirectHome, Location: home}
	}

	if !req.RequiresAuth {
		return Decision{Kind: Allow}
	}

	if !facts.Authenticated {
		returnTo := nav.To
		if returnTo == "" {
			returnTo = a.home()
		}
		return Decision{
			Kind:     RedirectLogin,
			Reason:   ReasonUnauthorized,
			Location: a.login() + "?redirect=" + url.QueryEscape(returnTo),
			ReturnTo: returnTo,
		}
	}

	if req.RequiredRoles.Len() > 0 && !req.RequiredRoles.Intersects(facts.Roles) {
		return Decision{Kind: Forbidden, Reason: "missing required role"}
	}

	return Decision{Kind: Allow}
}

// Authorize waits for src to settle, then decides. A panic anywhere in the
// check yields Abort.
func (a *Authorizer) Authorize(ctx context.Context, nav Navigation, req Requirement, src FactsSource) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			d = Decision{Kind: Abort, Reason: fmt.Sprintf("authorization check failed: %v", r)}
		}
	}()

	if src == nil {
		return Decision{Kind: Abort, Reason: "no session"}
	}
	src.Initialize(ctx)
	if err := ctx.Err(); err != nil {
		return Decision{Kind: Abort, Reason: err.Error()}
	}

	return a.Decide(nav, req, Facts{
		Authenticated: src.IsAuthenticated(),
		Roles:         src.CurrentRoles(),
	})
}

// LandingFor returns the fallback page for a caller holding roles: the
// landing of the first role (in sorted order) that has one, else home.
func (a *Authorizer) LandingFor(roles session.RoleSet) string {
	for _, r := range session.NewRoleSet(roles...) {
		if p, ok := a.Landing[r]; ok && p != "" {
			return p
		}
	}
	return a.home()
}

func (a *Authorizer) isPublic(path string) bool {
	return slices.ContainsFunc(a.Public, func(p string) bool { return cleanPath(p) == path })
}

func (a *Authorizer) home() string {
	if a.HomePath == "" {
		return "/"
	}
	return cleanPath(a.HomePath)
}

func (a *Authorizer) login() string {
	if a.LoginPath == "" {
		return "/login"
	}
	return cleanPath(a.LoginPath)
}

// cleanPath drops query and fragment and any trailing slash but the root's.
func cleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
