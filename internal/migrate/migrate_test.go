package migrate

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/kr/pretty"
	_ "modernc.org/sqlite"
)

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	for i := 0; i < 2; i++ {
		if err := Run(ctx, db, "sqlite", log); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	var applied int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("count: %v", err)
	}
	if applied != 1 {
		t.Fatalf("applied = %d, want 1", applied)
	}

	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name != 'schema_migrations' ORDER BY name")
	if err != nil {
		t.Fatalf("tables: %v", err)
	}
	defer rows.Close()
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		tables = append(tables, name)
	}
	want := []string{"activity_codes", "projects", "time_entries", "timesheets"}
	if diff := pretty.Diff(tables, want); len(diff) > 0 {
		t.Fatalf("tables diff: %v", diff)
	}
}

func TestRunUnknownDialect(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := Run(context.Background(), db, "oracle", slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatalf("expected error for unknown dialect")
	}
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (x INT);\n\n  CREATE INDEX i ON a(x) ;\n")
	want := []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a(x)"}
	if diff := pretty.Diff(got, want); len(diff) > 0 {
		t.Fatalf("diff: %v", diff)
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := parseVersion("0007_add_index.sql"); err != nil || v != 7 {
		t.Fatalf("parseVersion = %d, %v", v, err)
	}
	for _, bad := range []string{"add_index.sql", "_x.sql", "abc_x.sql"} {
		if _, err := parseVersion(bad); err == nil {
			t.Fatalf("parseVersion(%q) accepted", bad)
		}
	}
}
