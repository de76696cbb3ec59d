package testutil

import (
	"path/filepath"
	"testing"

	"adopt-go/internal/database"
)

// NewTestDatabase creates a new in-memory SQLite database with schema applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if _, err := sqlDB.Exec(database.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	db := database.NewSQLiteDatabaseFromDB(sqlDB)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// NewTestDatabaseFile creates a migrated database file under t.TempDir and
// returns its path. Each OpenTestDatabase on the path is an independent
// handle, the way two CLI processes would see the same file.
func NewTestDatabaseFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), database.FileName)
	db, err := database.NewSQLiteDatabase(path)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()

	if err := db.MigrateUp(); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return path
}

// OpenTestDatabase opens a handle on an existing database file.
// The handle is closed when the test completes.
func OpenTestDatabase(t *testing.T, path string) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
