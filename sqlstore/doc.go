// Package sqlstore persists marketplace accounts and login attempt records in
// SQLite (modernc.org/sqlite, no cgo) or PostgreSQL (pgx through
// database/sql).
//
// Both dialects share one schema:
//
//	users(id, username, email UNIQUE, password_hash, created_at)
//	login_attempts(identity PK, failure_count, locked_until NULL)
//
// Times are stored as Unix milliseconds. [AttemptStore.RecordFailure] applies
// the whole failure transition in a single upsert so concurrent failures
// against one identity are never lost.
package sqlstore
