// Package internal groups the packages private to authstate.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - cli: the authstate command-line client
//   - config: YAML and environment configuration for the binaries
//   - flows: pure-function orchestrators for every Engine operation
//   - logging: slog construction shared by the binaries
//   - rate: Redis-backed login throttle
//
// # What this package must NOT do
//
//   - Export types that appear in the public authstate API.
//   - Be imported by any package outside the authstate module.
package internal
