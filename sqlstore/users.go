package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	marketAuth "github.com/MrEthical07/marketAuth"
	"github.com/google/uuid"
)

// UserStore implements marketAuth.UserProvider on the users table.
type UserStore struct {
	db  *DB
	now func() time.Time
}

var _ marketAuth.UserProvider = (*UserStore)(nil)

// NewUserStore returns a store backed by db. Call DB.EnsureSchema first.
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db, now: time.Now}
}

var userColumns = []string{"id", "username", "email", "password_hash", "created_at"}

// GetUserByIdentifier looks a user up by email.
func (s *UserStore) GetUserByIdentifier(ctx context.Context, identifier string) (marketAuth.UserRecord, error) {
	return s.getBy(ctx, sq.Eq{"email": identifier})
}

// GetUserByID looks a user up by id.
func (s *UserStore) GetUserByID(ctx context.Context, userID string) (marketAuth.UserRecord, error) {
	return s.getBy(ctx, sq.Eq{"id": userID})
}

func (s *UserStore) getBy(ctx context.Context, pred sq.Eq) (marketAuth.UserRecord, error) {
	query, args, err := s.db.builder.
		Select(userColumns...).
		From("users").
		Where(pred).
		ToSql()
	if err != nil {
		return marketAuth.UserRecord{}, fmt.Errorf("build select: %w", err)
	}
	return scanUser(s.db.sql.QueryRowContext(ctx, query, args...))
}

// CreateUser inserts a user with a fresh UUID. A duplicate email yields
// marketAuth.ErrProviderDuplicateIdentifier.
func (s *UserStore) CreateUser(ctx context.Context, input marketAuth.CreateUserInput) (marketAuth.UserRecord, error) {
	rec := marketAuth.UserRecord{
		UserID:       uuid.NewString(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		CreatedAt:    s.now().UTC().Truncate(time.Millisecond),
	}

	query, args, err := s.db.builder.
		Insert("users").
		Columns(userColumns...).
		Values(rec.UserID, rec.Username, rec.Email, rec.PasswordHash, rec.CreatedAt.UnixMilli()).
		ToSql()
	if err != nil {
		return marketAuth.UserRecord{}, fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.sql.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return marketAuth.UserRecord{}, marketAuth.ErrProviderDuplicateIdentifier
		}
		return marketAuth.UserRecord{}, err
	}
	return rec, nil
}

// UpdatePasswordHash replaces the stored hash.
func (s *UserStore) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	query, args, err := s.db.builder.
		Update("users").
		Set("password_hash", newHash).
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := s.db.sql.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return marketAuth.ErrUserNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (marketAuth.UserRecord, error) {
	var (
		rec       marketAuth.UserRecord
		createdMs int64
	)
	err := row.Scan(&rec.UserID, &rec.Username, &rec.Email, &rec.PasswordHash, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return marketAuth.UserRecord{}, marketAuth.ErrUserNotFound
	}
	if err != nil {
		return marketAuth.UserRecord{}, err
	}
	rec.CreatedAt = time.UnixMilli(createdMs).UTC()
	return rec, nil
}
