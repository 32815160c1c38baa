package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authstate/jwt"
	"github.com/MrEthical07/authstate/session"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureExpired
	ValidateFailureInvalid
	ValidateFailureUserNotFound
	ValidateFailureUnavailable
)

// ValidateResult carries the resolved user or a classified failure.
type ValidateResult struct {
	Failure   ValidateFailureKind
	Err       error
	User      session.User
	ExpiresAt time.Time
}

// ValidateDeps captures token validation dependencies.
type ValidateDeps struct {
	Verify     func(string) (*jwt.Claims, error)
	LookupUser func(ctx context.Context, id, username string) (session.User, error)
	IsNotFound func(error) bool
}

// RunValidate verifies the token and re-resolves its user, who must still exist.
func RunValidate(ctx context.Context, token string, deps ValidateDeps) ValidateResult {
	claims, err := deps.Verify(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ValidateResult{Failure: ValidateFailureExpired, Err: err}
		}
		return ValidateResult{Failure: ValidateFailureInvalid, Err: err}
	}

	user, err := deps.LookupUser(ctx, claims.UserID, claims.Username)
	if err != nil {
		if deps.IsNotFound(err) {
			return ValidateResult{Failure: ValidateFailureUserNotFound, Err: err}
		}
		return ValidateResult{Failure: ValidateFailureUnavailable, Err: err}
	}

	return ValidateResult{User: user, ExpiresAt: claims.ExpiresAt}
}
