// Package route decides whether a navigation may proceed.
//
// [Authorizer.Decide] is a pure function of the target path, the route's
// [Requirement] and the caller's [Facts]. [Authorizer.Authorize] wraps it for
// live sessions: it waits for the session to settle first and turns any panic
// into an Abort decision, so a broken check never lets a request through.
//
// Roles are matched "any of": one shared role satisfies a requirement.
//
// # What this package must NOT do
//
//   - Render responses. Callers map a Decision to a status or redirect.
//   - Mutate the session it reads.
package route
