package authstate

import "errors"

var (
	// ErrInvalidCredentials is returned when a username/password pair is rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenExpired is returned when a token's expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for malformed, forged or incomplete tokens.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrUserNotFound is returned when a token names a user that is missing or deleted.
	ErrUserNotFound = errors.New("user not found")
	// ErrNotLoggedIn is returned by operations that need an established session.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrNetworkFailure wraps transport failures reaching the backend.
	ErrNetworkFailure = errors.New("network failure")
	// ErrForbidden is returned when an authenticated user lacks a required role.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthorized is the generic rejection for a missing credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrLoginRateLimited is returned when login attempts exceed the throttle budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrInvalidProfile is returned for a profile patch the directory would reject.
	ErrInvalidProfile = errors.New("invalid profile update")
	// ErrEngineNotReady is returned when an Engine is used before Build completed.
	ErrEngineNotReady = errors.New("engine not initialized")
)
