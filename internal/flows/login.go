package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authstate/session"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureInvalidCredentials
	LoginFailureUnavailable
	LoginFailureInternal
)

// LoginRequest is a credential check request.
type LoginRequest struct {
	Username  string
	Password  string
	IP        string
	Requested time.Duration
	Remember  bool
}

// LoginResult carries either the issued token or a classified failure.
type LoginResult struct {
	Failure   LoginFailureKind
	Err       error
	User      session.User
	Token     string
	TTL       time.Duration
	ExpiresAt time.Time
}

// LoginDeps captures login dependencies. Throttle funcs may be nil when
// throttling is disabled.
type LoginDeps struct {
	FindUser       func(ctx context.Context, username string) (session.User, string, error)
	IsNotFound     func(error) bool
	VerifyPassword func(password, encodedHash string) (bool, error)
	// DummyHash is verified against when the user does not exist so that
	// unknown and known usernames take comparable time.
	DummyHash string

	CheckThrottle func(ctx context.Context, username, ip string) error
	RecordFailure func(ctx context.Context, username, ip string) error
	ResetThrottle func(ctx context.Context, username, ip string) error
	IsRateLimited func(error) bool

	ResolveTTL func(requested time.Duration, remember bool) time.Duration
	Issue      func(userID, username string, ttl time.Duration) (string, time.Time, error)
}

// RunLogin checks credentials and issues a token.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps) LoginResult {
	if req.Username == "" || req.Password == "" {
		return LoginResult{Failure: LoginFailureInvalidCredentials}
	}

	if deps.CheckThrottle != nil {
		if err := deps.CheckThrottle(ctx, req.Username, req.IP); err != nil {
			if deps.IsRateLimited != nil && deps.IsRateLimited(err) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err}
			}
			return LoginResult{Failure: LoginFailureUnavailable, Err: err}
		}
	}

	user, hash, err := deps.FindUser(ctx, req.Username)
	if err != nil {
		if !deps.IsNotFound(err) {
			return LoginResult{Failure: LoginFailureUnavailable, Err: err}
		}
		if deps.DummyHash != "" {
			_, _ = deps.VerifyPassword(req.Password, deps.DummyHash)
		}
		return failedAttempt(ctx, req, deps)
	}

	ok, err := deps.VerifyPassword(req.Password, hash)
	if err != nil || !ok {
		return failedAttempt(ctx, req, deps)
	}

	if deps.ResetThrottle != nil {
		_ = deps.ResetThrottle(ctx, req.Username, req.IP)
	}

	ttl := deps.ResolveTTL(req.Requested, req.Remember)
	token, expiresAt, err := deps.Issue(user.ID, user.Username, ttl)
	if err != nil {
		return LoginResult{Failure: LoginFailureInternal, Err: err}
	}

	return LoginResult{
		User:      user,
		Token:     token,
		TTL:       ttl,
		ExpiresAt: expiresAt,
	}
}

func failedAttempt(ctx context.Context, req LoginRequest, deps LoginDeps) LoginResult {
	if deps.RecordFailure != nil {
		if err := deps.RecordFailure(ctx, req.Username, req.IP); err != nil &&
			deps.IsRateLimited != nil && deps.IsRateLimited(err) {
			return LoginResult{Failure: LoginFailureRateLimited, Err: err}
		}
	}
	return LoginResult{Failure: LoginFailureInvalidCredentials}
}
