package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect selects the SQL flavour.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect accepts the DATABASE_DRIVER values used by the service.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", name)
	}
}

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) builder() sq.StatementBuilderType {
	if d == DialectPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// Config describes a connection.
type Config struct {
	Dialect Dialect
	// DSN is a file path (or ":memory:") for SQLite and a connection URL for
	// PostgreSQL.
	DSN string
	// BusyTimeout applies to SQLite only.
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DB wraps a *sql.DB with its dialect and a statement builder using the
// dialect's placeholder format.
type DB struct {
	sql     *sql.DB
	dialect Dialect
	builder sq.StatementBuilderType
}

// Open connects, applies SQLite pragmas, and pings the database.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	conn, err := sql.Open(cfg.Dialect.driverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	switch cfg.Dialect {
	case DialectSQLite:
		// One connection: SQLite serialises writers anyway, and an in-memory
		// database exists only inside the connection that created it.
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
	default:
		if cfg.MaxOpenConns > 0 {
			conn.SetMaxOpenConns(cfg.MaxOpenConns)
		}
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Dialect == DialectSQLite {
		pragmas := []string{
			fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout.Milliseconds()),
			"PRAGMA foreign_keys=ON",
		}
		if cfg.DSN != ":memory:" {
			pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
		}
		for _, p := range pragmas {
			if _, err := conn.ExecContext(ctx, p); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to apply %q: %w", p, err)
			}
		}
	}

	return New(conn, cfg.Dialect), nil
}

// New wraps an existing connection.
func New(conn *sql.DB, dialect Dialect) *DB {
	return &DB{sql: conn, dialect: dialect, builder: dialect.builder()}
}

// SQL exposes the underlying pool.
func (db *DB) SQL() *sql.DB {
	return db.sql
}

// Dialect reports the configured dialect.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Close closes the pool.
func (db *DB) Close() error {
	return db.sql.Close()
}

// Ping checks connectivity.
func (db *DB) Ping(ctx context.Context) error {
	return db.sql.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS login_attempts (
		identity      TEXT PRIMARY KEY,
		failure_count INTEGER NOT NULL DEFAULT 0,
		locked_until  BIGINT
	)`,
}

// EnsureSchema creates the tables when they do not exist. It is not a
// migration tool: existing tables are left untouched.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
