// Package middleware adapts the authstate Manager and route Authorizer to
// net/http.
//
// # Handlers
//
//   - [Session] builds one OneShot Manager per request from that request's own
//     credential, initializes it and attaches it to the request context.
//   - [Guard] adds page authorization: redirects to login or home, 403 on a
//     missing role.
//   - [RequireAPI] authorizes API calls from the bearer token alone: 401 or 403.
//   - [ClientIP] records the caller's address for login throttling and audit.
//
// # Architecture boundaries
//
// This package translates decisions into HTTP responses. Authentication is the
// Backend's job and authorization is route.Authorizer's.
//
// # What this package must NOT do
//
//   - Share a Manager between requests.
//   - Parse or create tokens.
//   - Let a request through when the authorization check fails.
package middleware
