package testutil

import (
	"context"
	"database/sql/driver"
	"io"
	"testing"
)

func TestStubDBStoresFiltersAndDeletesRows(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	insert := "INSERT INTO rollups (project_id, version) VALUES ($1,$2) ON CONFLICT (project_id) DO UPDATE SET version = EXCLUDED.version"
	for _, args := range [][]driver.NamedValue{
		{{Value: "a"}, {Value: int64(1)}},
		{{Value: "b"}, {Value: int64(1)}},
		{{Value: "a"}, {Value: int64(2)}},
	} {
		if _, err := conn.ExecContext(ctx, insert, args); err != nil {
			t.Fatalf("ExecContext insert: %v", err)
		}
	}
	if got := len(conn.Tables["rollups"]); got != 2 {
		t.Fatalf("expected upsert to keep 2 rows, got %d", got)
	}

	rows, err := conn.QueryContext(ctx, "SELECT version FROM rollups WHERE project_id = $1", []driver.NamedValue{{Value: "a"}})
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	dest := make([]driver.Value, 1)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != int64(2) {
		t.Fatalf("expected upserted version 2, got %v", dest[0])
	}
	if err := rows.Next(dest); err != io.EOF {
		t.Fatalf("expected a single filtered row, got %v", err)
	}

	res, err := conn.ExecContext(ctx, "DELETE FROM rollups WHERE project_id = $1", []driver.NamedValue{{Value: "a"}})
	if err != nil {
		t.Fatalf("ExecContext delete: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		t.Fatalf("expected one row deleted, got %d", n)
	}
	if len(conn.Execs) != 4 {
		t.Fatalf("expected 4 recorded execs, got %d", len(conn.Execs))
	}
}

func TestStubParseErrors(t *testing.T) {
	if _, _, _, err := parseSelect("UPDATE x"); err == nil {
		t.Fatalf("expected select parse error")
	}
	if _, _, err := parseInsert("INSERT rollups"); err == nil {
		t.Fatalf("expected insert parse error")
	}
	if _, _, err := parseDelete("DELETE FROM rollups"); err == nil {
		t.Fatalf("expected delete parse error without predicate")
	}
}
