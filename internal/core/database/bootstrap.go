package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"time"
)

//go:embed scripts/*.sql
var bootstrapFS embed.FS

// migration is one schema step. Versions are recorded in quickread_meta by
// the runner, not by the scripts.
type migration struct {
	version int
	script  string
}

var migrations = []migration{
	{version: 1, script: "scripts/initdb.sql"},
}

const metaDDL = `CREATE TABLE IF NOT EXISTS quickread_meta (
    version     INTEGER PRIMARY KEY,
    applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureBootstrapped brings the schema up to the newest migration. Each step
// runs in its own transaction together with its version row.
func EnsureBootstrapped(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	if _, err := db.ExecContext(ctx, metaDDL); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM quickread_meta`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range pending(current, migrations) {
		if err := apply(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

// pending returns the migrations newer than current, oldest first.
func pending(current int, all []migration) []migration {
	var out []migration
	for _, m := range all {
		if m.version > current {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out
}

func apply(ctx context.Context, db *sql.DB, m migration) error {
	script, err := bootstrapFS.ReadFile(m.script)
	if err != nil {
		return fmt.Errorf("read %s: %w", m.script, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(script)); err != nil {
		return fmt.Errorf("migration %d: %w", m.version, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO quickread_meta (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`, m.version); err != nil {
		return fmt.Errorf("record migration %d: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.version, err)
	}
	return nil
}
