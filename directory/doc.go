// Package directory is the SQL-backed user directory: it resolves live
// (not soft-deleted) users for login and token validation and applies
// profile updates.
//
// The directory only needs the query capability of a database handle, so any
// *sql.DB or *sql.Tx satisfies [Querier]. [Open] provides the SQLite backend.
package directory
