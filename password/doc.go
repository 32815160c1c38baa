// Package password hashes and verifies login passwords with argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.NeedsRehash] reports hashes produced with weaker parameters so the
// caller can re-hash after a successful login. [Hasher.Dummy] gives the login
// flow something to verify against when the username is unknown.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other authstate package.
//   - Log plaintext passwords.
package password
