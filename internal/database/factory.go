package database

import (
	"fmt"
	"os"
	"path/filepath"

	"adopt-go/internal/config"
)

// FileName is the database file inside the configured data directory.
const FileName = "adopt.db"

// NewDatabaseFromConfig opens the ledger database selected by cfg.
// The schema is not migrated; callers decide between MigrateUp and CheckMigrations.
func NewDatabaseFromConfig(cfg config.DatabaseConfig) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, FileName))
	case "memory":
		return NewSQLiteDatabase(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
