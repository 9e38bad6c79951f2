package sqlstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	marketAuth "github.com/MrEthical07/marketAuth"
	"github.com/MrEthical07/marketAuth/sqlstore"
	"github.com/MrEthical07/marketAuth/throttle"
	"github.com/MrEthical07/marketAuth/throttle/throttletest"
)

func newTestDB(t *testing.T) *sqlstore.DB {
	t.Helper()
	db, err := sqlstore.Open(context.Background(), sqlstore.Config{Dialect: sqlstore.DialectSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return db
}

func TestAttemptStoreConformance(t *testing.T) {
	throttletest.Run(t, func(t *testing.T) throttle.Store {
		return sqlstore.NewAttemptStore(newTestDB(t))
	})
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
}

func TestAttemptRowLayout(t *testing.T) {
	db := newTestDB(t)
	store := sqlstore.NewAttemptStore(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	if _, _, err := store.RecordFailure(ctx, "a@uni.edu", now, throttle.PolicyQuick); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	var (
		count  int
		locked *int64
	)
	row := db.SQL().QueryRow(`SELECT failure_count, locked_until FROM login_attempts WHERE identity = ?`, "a@uni.edu")
	if err := row.Scan(&count, &locked); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 1 || locked != nil {
		t.Fatalf("expected count=1 and NULL lock, got count=%d locked=%v", count, locked)
	}

	for i := 0; i < 2; i++ {
		if _, _, err := store.RecordFailure(ctx, "a@uni.edu", now, throttle.PolicyQuick); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	row = db.SQL().QueryRow(`SELECT failure_count, locked_until FROM login_attempts WHERE identity = ?`, "a@uni.edu")
	if err := row.Scan(&count, &locked); err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := now.Add(time.Minute).UnixMilli()
	if count != 3 || locked == nil || *locked != want {
		t.Fatalf("expected count=3 locked=%d, got count=%d locked=%v", want, count, locked)
	}
}

func TestClosedDatabaseSurfacesStorageError(t *testing.T) {
	db := newTestDB(t)
	th, err := throttle.New(sqlstore.NewAttemptStore(db), throttle.PolicyStandard)
	if err != nil {
		t.Fatalf("throttle.New: %v", err)
	}
	_ = db.Close()

	if _, err := th.CheckAllowed(context.Background(), "a@uni.edu"); !errors.Is(err, throttle.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestUserStoreLifecycle(t *testing.T) {
	store := sqlstore.NewUserStore(newTestDB(t))
	ctx := context.Background()

	created, err := store.CreateUser(ctx, marketAuth.CreateUserInput{
		Username:     "sam",
		Email:        "sam@uni.edu",
		PasswordHash: "hash-1",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if created.UserID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at, got %+v", created)
	}

	byEmail, err := store.GetUserByIdentifier(ctx, "sam@uni.edu")
	if err != nil {
		t.Fatalf("GetUserByIdentifier: %v", err)
	}
	if byEmail.UserID != created.UserID || byEmail.Username != "sam" || !byEmail.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("unexpected record %+v", byEmail)
	}

	if err := store.UpdatePasswordHash(ctx, created.UserID, "hash-2"); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}
	byID, err := store.GetUserByID(ctx, created.UserID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if byID.PasswordHash != "hash-2" {
		t.Fatalf("expected updated hash, got %q", byID.PasswordHash)
	}
}

func TestUserStoreErrors(t *testing.T) {
	store := sqlstore.NewUserStore(newTestDB(t))
	ctx := context.Background()

	if _, err := store.GetUserByIdentifier(ctx, "nobody@uni.edu"); !errors.Is(err, marketAuth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := store.UpdatePasswordHash(ctx, "missing", "h"); !errors.Is(err, marketAuth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on update, got %v", err)
	}

	input := marketAuth.CreateUserInput{Username: "a", Email: "dup@uni.edu", PasswordHash: "h"}
	if _, err := store.CreateUser(ctx, input); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := store.CreateUser(ctx, input); !errors.Is(err, marketAuth.ErrProviderDuplicateIdentifier) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestParseDialect(t *testing.T) {
	cases := map[string]sqlstore.Dialect{
		"":           sqlstore.DialectSQLite,
		"sqlite":     sqlstore.DialectSQLite,
		"Postgres":   sqlstore.DialectPostgres,
		"postgresql": sqlstore.DialectPostgres,
		"pgx":        sqlstore.DialectPostgres,
	}
	for in, want := range cases {
		got, err := sqlstore.ParseDialect(in)
		if err != nil || got != want {
			t.Fatalf("ParseDialect(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := sqlstore.ParseDialect("mysql"); err == nil {
		t.Fatal("expected mysql to be rejected")
	}
}
