// Package authstate authenticates users and keeps their authentication state
// consistent across a one-shot server request and a long-lived client.
//
// # Components
//
//   - [Engine] is the server-side authority. It checks credentials against a
//     [UserDirectory], issues and verifies signed tokens, and implements [Backend]
//     in process.
//   - [Manager] is the per-execution-context state machine. It reconciles the
//     in-memory session, the durable record in a session.Store and the server's
//     verdict obtained through a [Backend].
//
// The route package gates navigation on the facts a Manager exposes, and the
// middleware package builds one Manager per request.
//
// # Architecture boundaries
//
// The Engine never holds per-user state between calls; tokens are stateless and
// expire on their own. The Manager never trusts a durable record without either
// checking its expiry (persistent context, followed by asynchronous
// confirmation) or re-validating the token (one-shot context).
//
// # What this package must NOT do
//
//   - Import middleware, route, httpapi or client (no upward imports).
//   - Persist an authenticated flag or password material.
//   - Run background expiry timers. Expiry is checked lazily on access.
package authstate
