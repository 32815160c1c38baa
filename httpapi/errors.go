package httpapi

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/directory"
)

// Messages the client package maps back onto sentinels.
const (
	MsgInvalidCredentials = "invalid username or password"
	MsgRateLimited        = "too many login attempts, try again later"
	MsgTokenExpired       = "token expired"
	MsgTokenInvalid       = "token invalid"
	MsgUserNotFound       = "user does not exist or was deleted"
	MsgNotLoggedIn        = "not logged in"
	MsgMissingBearer      = "missing bearer token"
	MsgUsernameTaken      = "username already taken"
)

// statusFor maps an engine error onto the HTTP status and the message shown
// to the caller. Unknown errors are 500 and never echo their cause.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, authstate.ErrInvalidCredentials):
		return http.StatusUnauthorized, MsgInvalidCredentials
	case errors.Is(err, authstate.ErrLoginRateLimited):
		return http.StatusTooManyRequests, MsgRateLimited
	case errors.Is(err, authstate.ErrTokenExpired):
		return http.StatusUnauthorized, MsgTokenExpired
	case errors.Is(err, authstate.ErrTokenInvalid):
		return http.StatusUnauthorized, MsgTokenInvalid
	case errors.Is(err, authstate.ErrUserNotFound):
		return http.StatusUnauthorized, MsgUserNotFound
	case errors.Is(err, authstate.ErrNotLoggedIn), errors.Is(err, authstate.ErrUnauthorized):
		return http.StatusUnauthorized, MsgNotLoggedIn
	case errors.Is(err, authstate.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, authstate.ErrInvalidProfile):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, directory.ErrUsernameTaken):
		return http.StatusConflict, MsgUsernameTaken
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
