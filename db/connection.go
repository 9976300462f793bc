package db

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/errors"
)

// Open opens the SQLite database at path with the tuning the job pipeline
// depends on: WAL for concurrent reads during writes, a 30s busy timeout to
// ride out writer contention, synchronous=FULL so commits survive power
// loss, and foreign keys for song/queue cascades.
// If logger is provided, logs database operations; otherwise operates silently.
func Open(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	if logger != nil {
		logger.Debugw("Opening database", "path", path)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA synchronous = FULL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to apply %s", pragma)
		}
	}

	// Verify liveness before the first write and recycle stale pooled
	// connections
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database ping failed")
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	if logger != nil {
		logger.Infow("Database opened",
			"path", path,
			"wal_mode", true,
			"busy_timeout_ms", 30000,
		)
	}

	return db, nil
}

// OpenWithMigrations opens the database and applies any pending schema
// migrations.
func OpenWithMigrations(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	db, err := Open(path, logger)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, logger); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrations failed")
	}
	return db, nil
}

// Checkpoint flushes the WAL into the main database file. Stores call this
// after committing so other processes reading the file see the write within
// bounded time.
func Checkpoint(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA wal_checkpoint(FULL)"); err != nil {
		return errors.Wrap(err, "wal checkpoint")
	}
	return nil
}
