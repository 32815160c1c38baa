// Package jwt issues and verifies the signed session tokens that carry a
// user's identity (sub = user id, username claim) and expiry.
//
// Verification is side-effect free and distinguishes an expired token
// (ErrTokenExpired) from every other rejection (ErrTokenInvalid).
package jwt
