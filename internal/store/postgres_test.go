package store

import (
	"encoding/json"
	"io/fs"
	"strings"
	"testing"
)

func TestNullIfEmpty(t *testing.T) {
	if v := nullIfEmpty(""); v != nil {
		t.Fatalf("empty -> nil expected")
	}
	if v := nullIfEmpty("x"); v != "x" {
		t.Fatalf("want x, got %v", v)
	}
}

func TestRawJSON(t *testing.T) {
	if v := rawJSON(nil); v != nil {
		t.Fatalf("nil document -> nil expected")
	}
	if v := rawJSON(json.RawMessage(`{"a":1}`)); v != `{"a":1}` {
		t.Fatalf("document passed as text expected, got %v", v)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil || len(names) == 0 {
		t.Fatalf("no migrations embedded: %v", err)
	}
	b, err := migrations.ReadFile(names[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, table := range []string{"runs", "run_snapshots"} {
		if !strings.Contains(string(b), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Fatalf("migration missing table %s", table)
		}
	}
}
