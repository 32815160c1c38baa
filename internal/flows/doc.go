// Package flows contains the pure orchestration behind each Engine operation:
// login, validate, logout and profile update.
//
// Each Run function takes a typed dependency struct of funcs and returns a
// result carrying a failure kind. The Engine owns every resource and maps the
// failure kinds to its public errors, audit events and metrics.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authstate (import cycle).
//   - Perform I/O except through the supplied dependencies.
package flows
