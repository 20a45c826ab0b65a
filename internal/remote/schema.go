package remote

import (
	"context"
	"database/sql"
	"fmt"
)

var snakeSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE,
		device_id TEXT UNIQUE,
		push_token TEXT,
		nudge_level INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS pairs (
		id TEXT PRIMARY KEY,
		user1_id TEXT NOT NULL REFERENCES users(id),
		user2_id TEXT REFERENCES users(id),
		invite_code TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'awaiting'
	)`,
	`CREATE TABLE IF NOT EXISTS wishes (
		id TEXT PRIMARY KEY,
		pair_id TEXT NOT NULL REFERENCES pairs(id) ON DELETE CASCADE,
		created_by TEXT NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		category TEXT NOT NULL,
		priority TEXT NOT NULL,
		timing TEXT,
		budget_range TEXT,
		memo TEXT,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_remote_wishes_pair ON wishes(pair_id, created_at)`,
}

var camelSchema = []string{
	`CREATE TABLE IF NOT EXISTS wishes (
		id TEXT PRIMARY KEY,
		"pairId" TEXT NOT NULL,
		"createdBy" TEXT NOT NULL,
		title TEXT NOT NULL,
		category TEXT NOT NULL,
		priority TEXT NOT NULL,
		season TEXT,
		"budgetRange" TEXT,
		memo TEXT,
		status TEXT NOT NULL,
		"createdAt" TEXT NOT NULL,
		"updatedAt" TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_remote_wishes_pair ON wishes("pairId", "createdAt")`,
}

// Migrate creates the remote tables in the given layout. Production
// deployments usually manage the remote schema themselves; this is for
// development databases and tests.
func Migrate(ctx context.Context, db *sql.DB, v Variant) error {
	stmts := snakeSchema
	if v == Camel {
		stmts = camelSchema
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s remote: %w", v, err)
		}
	}
	return nil
}
