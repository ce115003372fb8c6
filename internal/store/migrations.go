package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all client tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	// Values are scoped by namespace so one database can hold sessions for
	// several backends.
	`CREATE TABLE IF NOT EXISTS kv (
		namespace  TEXT NOT NULL DEFAULT '',
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (namespace, key)
	)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
