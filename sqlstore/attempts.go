package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/MrEthical07/marketAuth/throttle"
)

// AttemptStore implements throttle.Store on the login_attempts table.
type AttemptStore struct {
	db *DB
}

var _ throttle.Store = (*AttemptStore)(nil)

// NewAttemptStore returns a store backed by db. Call DB.EnsureSchema first.
func NewAttemptStore(db *DB) *AttemptStore {
	return &AttemptStore{db: db}
}

// lockOnFirst locks on the very first failure when the threshold is one.
const lockOnFirst = `CASE WHEN CAST(? AS BIGINT) <= 1 THEN CAST(? AS BIGINT) ELSE NULL END`

// The conflict branch only fires while the row is not locked; a locked row
// yields no RETURNING row, which RecordFailure reports as not counted. An
// expired lock restarts the count at one.
const recordFailureConflict = `
ON CONFLICT (identity) DO UPDATE SET
	failure_count = CASE
		WHEN login_attempts.locked_until IS NOT NULL THEN 1
		WHEN login_attempts.failure_count + 1 >= CAST(? AS BIGINT) THEN CAST(? AS BIGINT)
		ELSE login_attempts.failure_count + 1
	END,
	locked_until = CASE
		WHEN login_attempts.locked_until IS NOT NULL THEN
			CASE WHEN CAST(? AS BIGINT) <= 1 THEN CAST(? AS BIGINT) ELSE NULL END
		WHEN login_attempts.failure_count + 1 >= CAST(? AS BIGINT) THEN CAST(? AS BIGINT)
		ELSE NULL
	END
WHERE login_attempts.locked_until IS NULL OR login_attempts.locked_until <= CAST(? AS BIGINT)
RETURNING failure_count, locked_until`

// Get returns the stored record or nil when the identity is untracked.
func (s *AttemptStore) Get(ctx context.Context, identity string) (*throttle.AttemptRecord, error) {
	var (
		count  int
		locked sql.NullInt64
	)
	query, args, err := s.db.builder.
		Select("failure_count", "locked_until").
		From("login_attempts").
		Where(sq.Eq{"identity": identity}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	err = s.db.sql.QueryRowContext(ctx, query, args...).Scan(&count, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec := toRecord(identity, count, locked)
	return &rec, nil
}

// RecordFailure applies one failure in a single statement.
func (s *AttemptStore) RecordFailure(ctx context.Context, identity string, now time.Time, policy throttle.Policy) (throttle.AttemptRecord, bool, error) {
	nowMs := now.UnixMilli()
	deadline := now.Add(policy.LockoutDuration).UnixMilli()
	threshold := int64(policy.Threshold)

	query, args, err := s.db.builder.
		Insert("login_attempts").
		Columns("identity", "failure_count", "locked_until").
		Values(identity, 1, sq.Expr(lockOnFirst, threshold, deadline)).
		Suffix(recordFailureConflict,
			threshold, threshold,
			threshold, deadline,
			threshold, deadline,
			nowMs,
		).
		ToSql()
	if err != nil {
		return throttle.AttemptRecord{}, false, fmt.Errorf("build upsert: %w", err)
	}

	var (
		count  int
		locked sql.NullInt64
	)
	err = s.db.sql.QueryRowContext(ctx, query, args...).Scan(&count, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		rec, getErr := s.Get(ctx, identity)
		if getErr != nil {
			return throttle.AttemptRecord{}, false, getErr
		}
		if rec == nil {
			return throttle.AttemptRecord{}, false, errors.New("login attempt row vanished during update")
		}
		return *rec, false, nil
	}
	if err != nil {
		return throttle.AttemptRecord{}, false, err
	}
	return toRecord(identity, count, locked), true, nil
}

// Delete removes the identity's row.
func (s *AttemptStore) Delete(ctx context.Context, identity string) error {
	query, args, err := s.db.builder.
		Delete("login_attempts").
		Where(sq.Eq{"identity": identity}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	_, err = s.db.sql.ExecContext(ctx, query, args...)
	return err
}

func toRecord(identity string, count int, locked sql.NullInt64) throttle.AttemptRecord {
	rec := throttle.AttemptRecord{Identity: identity, FailureCount: count}
	if locked.Valid && locked.Int64 > 0 {
		rec.LockedUntil = time.UnixMilli(locked.Int64).UTC()
	}
	return rec
}
