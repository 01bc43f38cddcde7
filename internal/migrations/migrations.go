// Package migrations embeds the schema of the sqlite checkpoint store.
package migrations

import (
	"database/sql"
	"embed"

	"github.com/goran-ethernal/IndexSync/internal/db"
	"github.com/goran-ethernal/IndexSync/internal/logger"
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed *.sql
var files embed.FS

// Source lists the embedded migrations in file name order.
var Source migrate.MigrationSource = &migrate.EmbedFileSystemMigrationSource{
	FileSystem: files,
	Root:       ".",
}

// RunMigrations brings the key-value schema of sqlDB up to date.
func RunMigrations(log *logger.Logger, sqlDB *sql.DB) error {
	return db.Migrate(log, sqlDB, Source)
}
