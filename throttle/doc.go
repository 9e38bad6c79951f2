// Package throttle tracks consecutive failed logins per identity and imposes a
// time-boxed lockout once a configured threshold is crossed.
//
// # State machine
//
//	UNTRACKED -> FAILING(1) -> ... -> FAILING(threshold-1) -> LOCKED
//
// A failure in FAILING(threshold-1) pins the count at the threshold and sets
// LockedUntil to now plus the lockout duration. Failures recorded while LOCKED
// change nothing: the lock is never re-armed and the count never exceeds the
// threshold. Once LockedUntil passes the record behaves as UNTRACKED and the
// next failure starts again at one. A successful login deletes the record from
// any state.
//
// # Storage
//
// Persistence goes through [Store]. Every Store applies the failure transition
// atomically ([MemoryStore] under a mutex, [RedisStore] in a Lua script,
// sqlstore.AttemptStore in one upsert statement) so concurrent failures for the
// same identity are never lost.
//
// # Errors
//
// Lock decisions are values ([Decision]), not errors. Storage failures are
// returned wrapped in [ErrStorage] and are never swallowed; whether to fail
// open or closed is the caller's decision. Malformed identities are rejected
// with [ErrInvalidIdentity] before any storage call.
package throttle
