//go:build postgres_integration

package store

import (
	"context"
	"os"
	"testing"
)

func TestPostgresArchive(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	a, err := OpenPostgres(dsn)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	defer a.Close()
	if _, err := a.db.ExecContext(context.Background(), `TRUNCATE completed_orders`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	testArchive(t, a)
}
