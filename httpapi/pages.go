package httpapi

import (
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/middleware"
)

var loginForm = template.Must(template.New("login").Parse(`<!doctype html>
<title>Sign in</title>
{{if .Failed}}<p role="alert">Invalid username or password.</p>{{end}}
<form method="post" action="/login">
<input type="hidden" name="redirect" value="{{.Redirect}}">
<label>Username <input name="username" value="{{.Username}}" autocomplete="username"></label>
<label>Password <input name="password" type="password" autocomplete="current-password"></label>
<label><input type="checkbox" name="remember"> Keep me signed in</label>
<label><input type="checkbox" name="rememberUsername"{{if .Username}} checked{{end}}> Remember username</label>
<button type="submit">Sign in</button>
</form>
`))

type loginFormData struct {
	Username string
	Redirect string
	Failed   bool
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	data := loginFormData{
		Redirect: safeRedirect(r.URL.Query().Get("redirect")),
		Failed:   r.URL.Query().Get("error") != "",
	}
	if m, ok := middleware.ManagerFromContext(r.Context()); ok {
		data.Username, _ = m.RememberedUsername(r.Context())
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := loginForm.Execute(w, data); err != nil {
		s.logger.Warn("render login form", "error", err)
	}
}

// handleLoginForm signs in through the request's Manager, which writes the
// durable record, then continues to the page that sent the user here.
func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	m, ok := middleware.ManagerFromContext(r.Context())
	if !ok {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	redirect := safeRedirect(r.PostForm.Get("redirect"))

	requested, err := authstate.ParseRequestedDuration(r.PostForm.Get("expiresIn"))
	if err == nil {
		_, err = m.Login(r.Context(), authstate.Credentials{
			Username:          strings.TrimSpace(r.PostForm.Get("username")),
			Password:          r.PostForm.Get("password"),
			RequestedDuration: requested,
			RememberMe:        r.PostForm.Get("remember") != "",
			RememberUsername:  r.PostForm.Get("rememberUsername") != "",
		})
	}
	if err != nil {
		if status, _ := statusFor(err); status >= http.StatusInternalServerError {
			s.logger.Error("form login failed", "error", err, "request_id", RequestID(r.Context()))
		}
		http.Redirect(w, r, "/login?error=1&redirect="+url.QueryEscape(redirect), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

func (s *Server) handleLogoutPage(w http.ResponseWriter, r *http.Request) {
	if m, ok := middleware.ManagerFromContext(r.Context()); ok {
		if err := m.Logout(r.Context()); err != nil {
			s.logger.Warn("logout", "error", err)
		}
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	snap, ok := signedIn(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, MsgNotLoggedIn)
		return
	}
	writeOK(w, "welcome "+snap.User.Username, map[string]string{
		"landing": s.authorizer.LandingFor(snap.User.Roles),
	}, onePage)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	snap, ok := signedIn(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, MsgNotLoggedIn)
		return
	}
	exp := snap.ExpiresAt.UTC()
	writeOK(w, "current user", UserView{User: *snap.User, ExpiresAt: &exp}, onePage)
}

func signedIn(r *http.Request) (authstate.Session, bool) {
	m, ok := middleware.ManagerFromContext(r.Context())
	if !ok {
		return authstate.Session{}, false
	}
	snap := m.Snapshot()
	return snap, snap.Authenticated && snap.User != nil
}

// safeRedirect keeps redirects on this site. Anything that is not a plain
// absolute path falls back to home.
func safeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, `/\`) {
		return "/"
	}
	u, err := url.Parse(target)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return "/"
	}
	return target
}
