package auth

import (
	"embed"
	"io/fs"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// MigrationsFor returns the migration directory of a single dialect
func MigrationsFor(dialect Dialect) (fs.FS, error) {
	return fs.Sub(migrationsFS, "data/sql/migrations/"+string(dialect))
}
