package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"001_analysis.sql": {Data: []byte("CREATE TABLE analysis (id TEXT);")},
		"002_index.sql":    {Data: []byte("CREATE INDEX idx ON analysis (id);")},
	}

	migrations, err := LoadMigrations(fsys)
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "001_analysis.sql" {
		t.Errorf("unexpected first migration %+v", migrations[0])
	}
	if migrations[0].SQL != "CREATE TABLE analysis (id TEXT);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
}

func TestLoadMigrations_SortOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"010_tables.sql": {Data: []byte("SELECT 10;")},
		"002_second.sql": {Data: []byte("SELECT 2;")},
		"001_first.sql":  {Data: []byte("SELECT 1;")},
		"005_middle.sql": {Data: []byte("SELECT 5;")},
	}

	migrations, err := LoadMigrations(fsys)
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	expected := []int{1, 2, 5, 10}
	if len(migrations) != len(expected) {
		t.Fatalf("expected %d migrations, got %d", len(expected), len(migrations))
	}
	for i, v := range expected {
		if migrations[i].Version != v {
			t.Errorf("migration[%d]: expected version %d, got %d", i, v, migrations[i].Version)
		}
	}
}

func TestLoadMigrations_InvalidFilename(t *testing.T) {
	fsys := fstest.MapFS{
		"001_valid.sql":      {Data: []byte("SELECT 1;")},
		"readme.sql":         {Data: []byte("-- no version prefix")},
		"notes.txt":          {Data: []byte("not sql")},
		"abc_invalid.sql":    {Data: []byte("-- non-numeric prefix")},
		"002_also_valid.sql": {Data: []byte("SELECT 2;")},
		"sub/003_nested.sql": {Data: []byte("SELECT 3;")},
	}

	migrations, err := LoadMigrations(fsys)
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 valid migrations, got %d", len(migrations))
	}
}

func TestBundledMigrations(t *testing.T) {
	pg, err := LoadMigrations(PostgresMigrations())
	if err != nil {
		t.Fatalf("postgres migrations: %v", err)
	}
	lite, err := LoadMigrations(SQLiteMigrations())
	if err != nil {
		t.Fatalf("sqlite migrations: %v", err)
	}
	if len(pg) == 0 || len(pg) != len(lite) {
		t.Fatalf("expected matching non-empty migration sets, got %d postgres and %d sqlite", len(pg), len(lite))
	}
	if !strings.Contains(pg[0].SQL, "JSONB") {
		t.Error("expected postgres schema to store the document as JSONB")
	}
}

func TestPendingAndStatuses(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "001_a.sql"},
		{Version: 2, Name: "002_b.sql"},
		{Version: 3, Name: "003_c.sql"},
	}

	got := pending(migrations, map[int]bool{1: true}, 0)
	if len(got) != 2 || got[0].Version != 2 {
		t.Errorf("expected versions 2 and 3 pending, got %+v", got)
	}
	got = pending(migrations, map[int]bool{}, 2)
	if len(got) != 2 || got[1].Version != 2 {
		t.Errorf("expected target to stop at 2, got %+v", got)
	}

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	st := statuses(migrations, map[int]time.Time{1: at})
	if !st[0].Applied || st[0].AppliedAt == nil || !st[0].AppliedAt.Equal(at) {
		t.Errorf("expected 001 applied at %v, got %+v", at, st[0])
	}
	if st[1].Applied || st[1].AppliedAt != nil {
		t.Errorf("expected 002 pending, got %+v", st[1])
	}
}

func TestOpenSQLite_AppliesMigrationsOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "labread.db")

	sqlDB, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	defer sqlDB.Close()

	var n int
	if err := sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM _migrations`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n == 0 {
		t.Fatal("expected migrations to be recorded")
	}

	applied, err := MigrateSQLite(ctx, sqlDB, SQLiteMigrations())
	if err != nil {
		t.Fatalf("MigrateSQLite() error: %v", err)
	}
	if applied != 0 {
		t.Errorf("expected no pending migrations on second run, got %d", applied)
	}
	if _, err := sqlDB.ExecContext(ctx, `SELECT id, document FROM analysis LIMIT 1`); err != nil {
		t.Errorf("expected analysis table: %v", err)
	}
}
