package sqlstore

import (
	"strings"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/MrEthical07/marketAuth/throttle"
)

func TestBuilderPlaceholders(t *testing.T) {
	pg := New(nil, DialectPostgres)
	query, args, err := pg.builder.
		Update("users").
		Set("password_hash", "h").
		Where(sq.Eq{"id": "u1"}).
		ToSql()
	if err != nil {
		t.Fatalf("build update: %v", err)
	}
	if query != "UPDATE users SET password_hash = $1 WHERE id = $2" {
		t.Fatalf("unexpected postgres query: %s", query)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}

	lite := New(nil, DialectSQLite)
	query, _, err = lite.builder.
		Select("failure_count").
		From("login_attempts").
		Where(sq.Eq{"identity": "a"}).
		ToSql()
	if err != nil {
		t.Fatalf("build select: %v", err)
	}
	if query != "SELECT failure_count FROM login_attempts WHERE identity = ?" {
		t.Fatalf("unexpected sqlite query: %s", query)
	}
}

func TestRecordFailureUpsertNumbersEveryPlaceholder(t *testing.T) {
	pg := New(nil, DialectPostgres)
	policy := throttle.PolicyStandard
	now := time.Unix(1_700_000_000, 0)

	query, args, err := pg.builder.
		Insert("login_attempts").
		Columns("identity", "failure_count", "locked_until").
		Values("a@b.co", 1, sq.Expr(lockOnFirst, int64(policy.Threshold), now.UnixMilli())).
		Suffix(recordFailureConflict, 1, 2, 3, 4, 5, 6, 7).
		ToSql()
	if err != nil {
		t.Fatalf("build upsert: %v", err)
	}
	if strings.Contains(query, "?") {
		t.Fatalf("postgres upsert still has ? placeholders: %s", query)
	}
	if len(args) != 11 || !strings.Contains(query, "$11") || strings.Contains(query, "$12") {
		t.Fatalf("expected 11 numbered args, got %d in %s", len(args), query)
	}
}
