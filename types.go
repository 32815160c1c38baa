package authstate

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authstate/session"
)

// RoleSet is an order-independent set of role tags.
type RoleSet = session.RoleSet

// UserRecord is what a UserDirectory returns for login: the profile plus the
// stored password hash.
type UserRecord struct {
	Profile      session.User
	PasswordHash string
}

// UserDirectory resolves users for the Engine.
type UserDirectory interface {
	// FindByUsername returns the live user with username, or ErrUserNotFound.
	FindByUsername(ctx context.Context, username string) (UserRecord, error)
	// LookupActive returns the live user matching both id and username, or
	// ErrUserNotFound unless exactly one matches.
	LookupActive(ctx context.Context, id, username string) (session.User, error)
	// UpdateProfile applies patch and returns the stored profile.
	UpdateProfile(ctx context.Context, id string, patch session.Patch) (session.User, error)
}

// Credentials is a login request.
type Credentials struct {
	Username string
	Password string
	// RequestedDuration asks for a token lifetime. Zero lets the server choose.
	RequestedDuration time.Duration
	// RememberMe extends the default lifetime to the remember-me lifetime.
	RememberMe bool
	// RememberUsername stores the username for the next login form.
	RememberUsername bool
}

// LoginResponse is the backend's answer to a successful credential check.
// A response without a token or user must not authenticate anybody.
type LoginResponse struct {
	Token string
	User  *session.User
	// ExpiresIn is the server's lifetime hint for Token.
	ExpiresIn time.Duration
}

// ValidateResponse is the backend's verdict on a presented token.
type ValidateResponse struct {
	User      session.User
	ExpiresAt time.Time
}

// Backend is the server authority a Manager reconciles against. Engine
// implements it in process; the client package implements it over HTTP.
type Backend interface {
	Authenticate(ctx context.Context, creds Credentials) (LoginResponse, error)
	Validate(ctx context.Context, token string) (ValidateResponse, error)
	Logout(ctx context.Context, token string) error
	UpdateProfile(ctx context.Context, token string, patch session.Patch) (session.User, error)
}

// ParseRequestedDuration reads a login form duration. It accepts day counts
// ("7d"), Go durations ("1h30m") and bare seconds ("3600"). Empty means zero.
func ParseRequestedDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, errors.New("invalid day count")
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs < 0 {
			return 0, errors.New("negative duration")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.New("negative duration")
	}
	return d, nil
}
