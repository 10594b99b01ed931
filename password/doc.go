// Package password implements salted one-way password hashing.
//
// Two algorithms are available behind the [Hasher] interface:
//
//   - [Argon2] (default) encodes hashes in PHC string format:
//     $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//   - [Bcrypt] produces standard $2a$ strings.
//
// [Argon2.NeedsRehash] reports hashes produced with weaker parameters so the
// caller can re-hash on the next successful login.
//
// Password policy (minimum length) is enforced by the engine, not here.
package password
