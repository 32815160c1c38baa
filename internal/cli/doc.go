// Package cli implements the authstate command-line client.
//
// Every invocation builds a Persistent session manager over a local state
// file, so a login from one command is hydrated and confirmed by the next.
package cli
