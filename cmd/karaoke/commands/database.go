package commands

import (
	"database/sql"

	"github.com/openkaraoke/studio/config"
	"github.com/openkaraoke/studio/db"
	"github.com/openkaraoke/studio/errors"
	"github.com/openkaraoke/studio/logger"
)

// openDatabase opens and migrates the database at dbPath. An empty path
// resolves through the config cascade.
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load configuration")
		}
		dbPath = cfg.Database.Path
	}

	database, err := db.OpenWithMigrations(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", dbPath)
	}
	return database, nil
}
