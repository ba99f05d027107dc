package sqlite

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// NewBunDB wraps an open connection with bun's SQLite dialect. Closing the
// returned *bun.DB closes db.
func NewBunDB(db *sql.DB) *bun.DB {
	return bun.NewDB(db, sqlitedialect.New())
}

// OpenMigrated opens path, applies pending migrations and returns the bun handle.
func OpenMigrated(ctx context.Context, path string) (*bun.DB, error) {
	db, err := NewDB(path)
	if err != nil {
		return nil, err
	}
	if _, err := MigrateUp(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return NewBunDB(db), nil
}
