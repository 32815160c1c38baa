package flows

import "context"

// RunLogout checks that the token is genuine and names a live user. Tokens are
// stateless, so there is nothing to revoke; the result only feeds audit.
func RunLogout(ctx context.Context, token string, deps ValidateDeps) ValidateResult {
	return RunValidate(ctx, token, deps)
}
