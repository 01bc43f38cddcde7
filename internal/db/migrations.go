package db

import (
	"database/sql"
	"fmt"

	"github.com/goran-ethernal/IndexSync/internal/logger"
	migrate "github.com/rubenv/sql-migrate"
)

// Migrate applies every pending up migration of source.
func Migrate(log *logger.Logger, sqlDB *sql.DB, source migrate.MigrationSource) error {
	applied, err := migrate.Exec(sqlDB, driverName, source, migrate.Up)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	if applied > 0 {
		log.Infof("applied %d migration(s)", applied)
	} else {
		log.Debug("schema is up to date")
	}
	return nil
}
