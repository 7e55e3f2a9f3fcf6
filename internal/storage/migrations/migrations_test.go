package migrations

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestSplitStatements(t *testing.T) {
	input := `-- header
CREATE TABLE a (x UInt8) ENGINE = Memory;

-- second
CREATE TABLE b (y UInt8) ENGINE = Memory;
`
	stmts := splitStatements(input)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[1] != "CREATE TABLE b (y UInt8) ENGINE = Memory" {
		t.Errorf("unexpected second statement: %q", stmts[1])
	}
}

func TestHasQuotedSemicolon(t *testing.T) {
	tests := []struct {
		sql  string
		want bool
	}{
		{"SELECT 1;", false},
		{"SELECT 'a''b';", false},
		{"SELECT 'a;b'", true},
		{"SELECT 'it''s;'", true},
	}
	for _, tt := range tests {
		if got := hasQuotedSemicolon(tt.sql); got != tt.want {
			t.Errorf("hasQuotedSemicolon(%q) = %v, want %v", tt.sql, got, tt.want)
		}
	}
}

func TestLoadOrdersAndSkipsEmpty(t *testing.T) {
	fsys := fstest.MapFS{
		"pg/002_index.sql": {Data: []byte("CREATE INDEX i ON t (x);")},
		"pg/001_table.sql": {Data: []byte("-- table\nCREATE TABLE t (x INT);\nCREATE TABLE u (y INT);")},
		"pg/003_empty.sql": {Data: []byte("-- nothing yet\n")},
		"pg/notes.txt":     {Data: []byte("ignored")},
		"other/001_x.sql":  {Data: []byte("SELECT 1;")},
	}

	got, err := load(fsys, "pg")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 migrations, got %d: %+v", len(got), got)
	}
	if got[0].Version != "001_table" || len(got[0].Statements) != 2 {
		t.Errorf("unexpected first migration: %+v", got[0])
	}
	if got[1].Version != "002_index" {
		t.Errorf("unexpected second migration: %+v", got[1])
	}
}

func TestLoadRejectsQuotedSemicolon(t *testing.T) {
	fsys := fstest.MapFS{
		"pg/001_bad.sql": {Data: []byte("INSERT INTO t VALUES ('a;b');")},
	}
	if _, err := load(fsys, "pg"); !errors.Is(err, errQuotedSemicolon) {
		t.Errorf("expected errQuotedSemicolon, got %v", err)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := Load(Postgres)
	if err != nil {
		t.Fatalf("load postgres: %v", err)
	}
	if len(pg) == 0 || pg[0].Version != "001_event_journal" {
		t.Fatalf("unexpected postgres migrations: %+v", pg)
	}
	if len(pg[0].Statements) != 3 {
		t.Errorf("expected table and two indexes, got %d statements", len(pg[0].Statements))
	}

	ch, err := Load(ClickHouse)
	if err != nil {
		t.Fatalf("load clickhouse: %v", err)
	}
	if len(ch) == 0 || ch[0].Version != "001_flow_samples" {
		t.Fatalf("unexpected clickhouse migrations: %+v", ch)
	}
}
