package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/middleware"
	"github.com/MrEthical07/authstate/session"
)

// handleLogin checks credentials and returns the token with the profile.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	requested, err := authstate.ParseRequestedDuration(req.ExpiresIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid expiresIn: "+err.Error())
		return
	}

	resp, err := s.backend.Authenticate(r.Context(), authstate.Credentials{
		Username:          req.Username,
		Password:          req.Password,
		RequestedDuration: requested,
		RememberMe:        req.RememberMe,
	})
	if err != nil {
		s.fail(w, r, "login", err)
		return
	}
	if resp.Token == "" || resp.User == nil {
		s.fail(w, r, "login", authstate.ErrTokenInvalid)
		return
	}

	writeOK(w, "login succeeded", LoginView{
		User:      *resp.User,
		Token:     resp.Token,
		ExpiresIn: int64(resp.ExpiresIn / time.Second),
	}, onePage)
}

// handleValidate answers whether the bearer token is still good and who it
// names.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeError(w, http.StatusUnauthorized, MsgMissingBearer)
		return
	}
	resp, err := s.backend.Validate(r.Context(), token)
	if err != nil {
		s.fail(w, r, "validate", err)
		return
	}
	exp := resp.ExpiresAt.UTC()
	writeOK(w, "token valid", UserView{User: resp.User, ExpiresAt: &exp}, onePage)
}

// handleLogout verifies the token names a live user. There is no server
// session to destroy; the client forgets the token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeError(w, http.StatusBadRequest, MsgMissingBearer)
		return
	}
	if err := s.backend.Logout(r.Context(), token); err != nil {
		s.fail(w, r, "logout", err)
		return
	}
	writeOK[any](w, "logged out", nil, emptyPage)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeError(w, http.StatusUnauthorized, MsgMissingBearer)
		return
	}
	var patch session.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if patch.Empty() {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	u, err := s.backend.UpdateProfile(r.Context(), token, patch)
	if err != nil {
		s.fail(w, r, "profile", err)
		return
	}
	writeOK(w, "profile updated", []UserView{{User: u}}, onePage)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "error", err, "request_id", RequestID(r.Context()))
	}
	writeError(w, status, msg)
}
