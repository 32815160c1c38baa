// Package session holds the authentication data model (user profile, role set,
// durable record) and the stores that persist the redacted record between
// executions.
//
// # Stores
//
// [CookieStore] serves one-shot server requests, [RedisStore] serves a
// persistent controller keyed by browser id, [FileStore] serves a long-lived
// command-line client and [MemoryStore] serves tests and embedded use. All of
// them enforce the same fixed retention ceiling regardless of token expiry.
//
// # Architecture boundaries
//
// This package persists and encodes records. It does NOT verify tokens, decide
// whether a session is authenticated, or authorize routes. Those belong to the
// root package and to route.
//
// # What this package must NOT do
//
//   - Import authstate, jwt or route (no upward imports).
//   - Persist an authenticated flag. Authentication is always re-derived.
//   - Persist password material.
package session
