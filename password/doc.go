// Package password hashes passwords with argon2id and verifies stored hashes.
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Accounts migrated from the previous marketplace backend carry bcrypt hashes
// ($2a$, $2b$, $2y$). [Argon2.Verify] accepts them and [Argon2.NeedsUpgrade]
// always reports true for them, so the engine rehashes on the next successful
// login. Hashes with weaker argon2 parameters than the current config are
// upgraded the same way.
//
// [Argon2.VerifyDummy] performs a verification against a throwaway hash and
// is used for unknown accounts so response time does not reveal whether an
// email is registered.
//
// This package never logs or stores plaintext passwords.
package password
