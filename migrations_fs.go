package crosspost

import (
	"embed"
	"io/fs"
)

// migrationsFS holds the SQL schema for the link and request token stores,
// with SQLite variants under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

func GetMigrationsFS() fs.FS {
	return migrationsFS
}
