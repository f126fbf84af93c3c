package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed migrations/001_local_store.up.sql
var localStoreSQL string

var requiredTables = []string{
	"kv",
	"mutations",
}

func (db *DB) EnsureSchema(ctx context.Context) error {
	if db == nil || db.SQL == nil {
		return fmt.Errorf("database is not initialized")
	}

	exists, err := db.hasAllRequiredTables(ctx)
	if err != nil {
		return fmt.Errorf("check existing tables: %w", err)
	}
	if exists {
		return nil
	}

	slog.Debug("local store schema missing tables; applying migration")
	if _, err := db.SQL.ExecContext(ctx, localStoreSQL); err != nil {
		return fmt.Errorf("apply local store migration: %w", err)
	}

	exists, err = db.hasAllRequiredTables(ctx)
	if err != nil {
		return fmt.Errorf("re-check tables after migration: %w", err)
	}
	if !exists {
		return fmt.Errorf("schema initialization incomplete: required tables are still missing")
	}

	return nil
}

func (db *DB) hasAllRequiredTables(ctx context.Context) (bool, error) {
	count := 0
	for _, table := range requiredTables {
		var n int
		err := db.SQL.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&n)
		if err != nil {
			return false, err
		}
		count += n
	}

	return count == len(requiredTables), nil
}
