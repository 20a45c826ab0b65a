package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/wishpair/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Init initializes the SQLite database at baseDir/wishpair.db.
// The baseDir parameter allows tests to use t.TempDir().
func Init(baseDir string) (*sql.DB, error) {
	return InitFile(baseDir, config.DefaultDatabaseFileName)
}

// InitFile is Init with an explicit file name (relative to baseDir unless absolute).
func InitFile(baseDir, file string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	dbPath := file
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(baseDir, file)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}
	if version > CurrentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, CurrentSchemaVersion)
	}

	// Migration 0 -> 1: users, pairs, wishes.
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS users (
		  id          TEXT PRIMARY KEY,
		  email       TEXT UNIQUE,
		  device_id   TEXT UNIQUE,
		  push_token  TEXT,
		  nudge_level INTEGER DEFAULT 1,
		  created_at  INTEGER NOT NULL,
		  updated_at  INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS pairs (
		  id          TEXT PRIMARY KEY,
		  user1_id    TEXT NOT NULL REFERENCES users(id),
		  user2_id    TEXT REFERENCES users(id),
		  invite_code TEXT NOT NULL UNIQUE,
		  status      TEXT NOT NULL CHECK (status IN ('awaiting', 'active')),
		  created_at  INTEGER NOT NULL,
		  updated_at  INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_pairs_user1 ON pairs(user1_id, status);
		CREATE INDEX IF NOT EXISTS idx_pairs_user2 ON pairs(user2_id, status);

		CREATE TABLE IF NOT EXISTS wishes (
		  id           TEXT PRIMARY KEY,
		  pair_id      TEXT NOT NULL REFERENCES pairs(id) ON DELETE CASCADE,
		  created_by   TEXT NOT NULL,
		  title        TEXT NOT NULL,
		  category     TEXT NOT NULL,
		  season       TEXT,
		  priority     TEXT NOT NULL,
		  budget_range TEXT,
		  budget_min   INTEGER,
		  budget_max   INTEGER,
		  memo         TEXT,
		  status       TEXT NOT NULL,
		  completed_at INTEGER,
		  created_at   INTEGER NOT NULL,
		  updated_at   INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_wishes_pair_created
		ON wishes(pair_id, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_wishes_pair_eligible
		ON wishes(pair_id, status, priority, created_at);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Migration 1 -> 2: per-pair nudge state.
	if version < 2 {
		schema := `
		CREATE TABLE IF NOT EXISTS pair_nudge_state (
		  pair_id        TEXT PRIMARY KEY REFERENCES pairs(id) ON DELETE CASCADE,
		  last_nudged_at INTEGER,
		  last_wish_id   TEXT,
		  updated_at     INTEGER NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := SetUserVersion(db, 2); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
