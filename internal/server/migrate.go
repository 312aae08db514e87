package server

import (
	"database/sql"
	"fmt"

	"github.com/JakeFAU/newsdigest/internal/config"
	pgstore "github.com/JakeFAU/newsdigest/internal/storage/postgres"
	sqlitestore "github.com/JakeFAU/newsdigest/internal/storage/sqlite"
)

// Migrate applies the embedded schema to the configured SQL backend and
// returns the resulting schema version.
func Migrate(cfg config.Config) (uint, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		return pgstore.Migrate(cfg.Store.DSN)
	case config.BackendSQLite:
		db, err := sql.Open("sqlite", cfg.Store.DSN)
		if err != nil {
			return 0, fmt.Errorf("open sqlite: %w", err)
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(1)
		return sqlitestore.Migrate(db)
	default:
		return 0, fmt.Errorf("store.backend %q has no schema to migrate", cfg.Store.Backend)
	}
}
