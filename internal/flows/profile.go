package flows

import (
	"context"

	"github.com/MrEthical07/authstate/session"
)

// ProfileDeps captures profile update dependencies.
type ProfileDeps struct {
	Validate ValidateDeps
	Update   func(ctx context.Context, id string, patch session.Patch) (session.User, error)
}

// ProfileResult carries the stored profile or a classified failure. Failures
// from the update itself use ValidateFailureUnavailable unless the user vanished.
type ProfileResult struct {
	Failure ValidateFailureKind
	Err     error
	User    session.User
}

// RunUpdateProfile authenticates the token and applies patch to its user.
func RunUpdateProfile(ctx context.Context, token string, patch session.Patch, deps ProfileDeps) ProfileResult {
	v := RunValidate(ctx, token, deps.Validate)
	if v.Failure != ValidateFailureNone {
		return ProfileResult{Failure: v.Failure, Err: v.Err}
	}

	user, err := deps.Update(ctx, v.User.ID, patch)
	if err != nil {
		if deps.Validate.IsNotFound(err) {
			return ProfileResult{Failure: ValidateFailureUserNotFound, Err: err}
		}
		return ProfileResult{Failure: ValidateFailureUnavailable, Err: err}
	}
	return ProfileResult{User: user}
}
