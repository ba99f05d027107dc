package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// Migration is one embedded schema step.
type Migration struct {
	Version int
	Name    string // e.g. "001_init_schema.up.sql"
	SQL     string
}

// MigrateUp applies all pending migrations in version order, one transaction
// each, and records them in schema_migrations. It returns the names applied
// by this call; already-applied versions are skipped.
func MigrateUp(ctx context.Context, db *sql.DB) ([]string, error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return nil, fmt.Errorf("migrate: ensure migrations table: %w", err)
	}

	files, err := Migrations()
	if err != nil {
		return nil, fmt.Errorf("migrate: load files: %w", err)
	}

	var applied []string
	for _, m := range files {
		done, checkErr := isMigrationApplied(ctx, db, m.Version)
		if checkErr != nil {
			return applied, fmt.Errorf("migrate: check applied %d: %w", m.Version, checkErr)
		}
		if done {
			continue
		}
		if applyErr := applyMigration(ctx, db, m); applyErr != nil {
			return applied, fmt.Errorf("migrate: apply %s: %w", m.Name, applyErr)
		}
		applied = append(applied, m.Name)
	}
	return applied, nil
}

// MigrationVersion returns the highest applied version, 0 on a fresh database.
func MigrationVersion(ctx context.Context, db *sql.DB) (int, error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return 0, fmt.Errorf("migrate: ensure migrations table: %w", err)
	}

	var version int
	row := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("migrate: query version: %w", err)
	}
	return version, nil
}

// Migrations lists the embedded migrations sorted by version.
func Migrations() ([]Migration, error) {
	entries, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return nil, err
	}
	out := make([]Migration, 0, len(entries))
	for _, p := range entries {
		content, readErr := migrations.ReadFile(p)
		if readErr != nil {
			return nil, fmt.Errorf("read %s: %w", p, readErr)
		}
		name := path.Base(p)
		version := versionFromFilename(name)
		if version == 0 {
			return nil, fmt.Errorf("migration %s has no numeric version prefix", name)
		}
		out = append(out, Migration{Version: version, Name: name, SQL: string(content)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// --- internal ---

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER NOT NULL PRIMARY KEY,
			name        TEXT    NOT NULL,
			applied_at  TEXT    NOT NULL DEFAULT (datetime('now'))
		)
	`)
	return err
}

// versionFromFilename extracts the numeric prefix: "001_init_schema.up.sql" → 1.
func versionFromFilename(name string) int {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0
	}
	var version int
	if _, err := fmt.Sscanf(prefix, "%d", &version); err != nil {
		return 0
	}
	return version
}

func isMigrationApplied(ctx context.Context, db *sql.DB, version int) (bool, error) {
	var count int
	row := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func applyMigration(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if _, execErr := tx.ExecContext(ctx, m.SQL); execErr != nil {
		return fmt.Errorf("exec SQL: %w", execErr)
	}
	if _, execErr := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		m.Version, m.Name,
	); execErr != nil {
		return fmt.Errorf("record migration: %w", execErr)
	}
	return tx.Commit()
}
