package repository

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

// TestWhereBuilder проверяет нумерацию параметров в WHERE и LIMIT/OFFSET.
func TestWhereBuilder(t *testing.T) {
	var where whereBuilder
	where.add("t.client_id = $%d", "a")
	where.add("t.date >= $%d", "b")

	if got := where.String(); got != " WHERE t.client_id = $1 AND t.date >= $2" {
		t.Fatalf("unexpected where: %q", got)
	}

	tail := where.limitOffset(Page{Limit: 10, Offset: 20})
	if tail != " LIMIT $3 OFFSET $4" {
		t.Fatalf("unexpected tail: %q", tail)
	}
	if len(where.args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(where.args))
	}
}

func TestWhereBuilderEmpty(t *testing.T) {
	var where whereBuilder
	if where.String() != "" {
		t.Fatalf("expected empty where")
	}
}

func TestMapWriteError(t *testing.T) {
	cases := map[string]error{
		pgUniqueViolation:     ErrConflict,
		pgForeignKeyViolation: ErrNotFound,
		pgCheckViolation:      ErrInvalid,
	}

	for code, want := range cases {
		err := mapWriteError(&pgconn.PgError{Code: code})
		if !errors.Is(err, want) {
			t.Fatalf("code %s: expected %v, got %v", code, want, err)
		}
	}

	other := errors.New("boom")
	if got := mapWriteError(other); got != other {
		t.Fatalf("expected passthrough, got %v", got)
	}
}
