package db

import (
	"testing"
)

// SetupTestDB creates an in-memory SQLite database with the full schema for testing
func SetupTestDB(t *testing.T) *Database {
	t.Helper()

	database, err := NewDatabase(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Cleanup on test completion
	t.Cleanup(func() {
		database.Close()
	})

	return database
}
