// Package rate implements the Redis-backed login throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR plus EXPIRE on the first hit. Keys, under the
// configured prefix:
//   - al:  failed logins per username (lower-cased)
//   - ali: failed logins per client IP
//
// # What this package must NOT do
//
//   - Decide what a throttled login looks like to the caller. The Engine maps
//     ErrRateLimited to its own error.
package rate
