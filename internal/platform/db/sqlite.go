package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens the SQLite database at path and brings its schema up to
// date with the bundled migrations.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := MigrateSQLite(ctx, sqlDB, SQLiteMigrations()); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return sqlDB, nil
}

// MigrateSQLite applies pending migrations from fsys and returns the count
// applied.
func MigrateSQLite(ctx context.Context, sqlDB *sql.DB, fsys fs.FS) (int, error) {
	if _, err := sqlDB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS _migrations (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TEXT NOT NULL
)`); err != nil {
		return 0, fmt.Errorf("create _migrations table: %w", err)
	}

	migrations, err := LoadMigrations(fsys)
	if err != nil {
		return 0, err
	}

	rows, err := sqlDB.QueryContext(ctx, `SELECT version FROM _migrations`)
	if err != nil {
		return 0, fmt.Errorf("query applied versions: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate applied versions: %w", err)
	}

	count := 0
	for _, mig := range pending(migrations, applied, 0) {
		tx, err := sqlDB.BeginTx(ctx, nil)
		if err != nil {
			return count, fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
			tx.Rollback()
			return count, fmt.Errorf("apply migration %d (%s): %w", mig.Version, mig.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO _migrations (version, name, applied_at) VALUES (?, ?, ?)`,
			mig.Version, mig.Name, time.Now().UTC().Format(time.RFC3339Nano),
		); err != nil {
			tx.Rollback()
			return count, fmt.Errorf("record migration: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return count, fmt.Errorf("commit migration %d: %w", mig.Version, err)
		}
		count++
	}
	return count, nil
}
