package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/M0hit1029/GenEx/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Init initializes the SQLite database at baseDir/genex.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.genex.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	// Pragmas in the connection string apply to every pooled connection.
	dbPath := filepath.Join(baseDir, "genex.db")
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

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS projects (
		  id            TEXT PRIMARY KEY,
		  name          TEXT NOT NULL,
		  description   TEXT NOT NULL,
		  owner_user_id TEXT NOT NULL,
		  created_at    INTEGER NOT NULL,
		  updated_at    INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_projects_owner
		ON projects(owner_user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS requirements (
		  id                    TEXT PRIMARY KEY,
		  project_id            TEXT NOT NULL,
		  latest_version_number INTEGER NOT NULL DEFAULT 0,
		  created_at            INTEGER NOT NULL,
		  updated_at            INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_requirements_project
		ON requirements(project_id, id);

		CREATE TABLE IF NOT EXISTS requirement_versions (
		  requirement_id  TEXT NOT NULL REFERENCES requirements(id),
		  version_number  INTEGER NOT NULL CHECK (version_number >= 1),
		  author_id       TEXT,
		  created_at      INTEGER NOT NULL,
		  feature         TEXT NOT NULL,
		  description     TEXT,
		  kind            TEXT,
		  priority        INTEGER,
		  moscow          TEXT,
		  notes           TEXT,
		  status          TEXT NOT NULL DEFAULT 'draft',
		  source_input_id TEXT,
		  PRIMARY KEY (requirement_id, version_number)
		);

		CREATE TABLE IF NOT EXISTS batches (
		  project_id    TEXT PRIMARY KEY,
		  id            TEXT NOT NULL,
		  owner_user_id TEXT NOT NULL,
		  records_json  TEXT NOT NULL,
		  created_at    INTEGER NOT NULL,
		  updated_at    INTEGER NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
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

// WithImmediateTx runs fn inside a BEGIN IMMEDIATE transaction on a dedicated
// connection. The write lock is taken up front, so two writers never both read
// the same state and then race to insert.
func WithImmediateTx(ctx context.Context, database *sql.DB, fn func(q Querier) error) (err error) {
	conn, err := database.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("begin immediate: %w", err)
	}

	defer func() {
		if err != nil {
			// Use a fresh context: ctx may already be cancelled.
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err = fn(conn); err != nil {
		return err
	}

	if _, err = conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
