package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"watchparty-quiz/internal/app"
	"watchparty-quiz/internal/app/storetest"
)

func newTestSQLiteStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return store
}

func TestSQLiteStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) app.Store { return newTestSQLiteStore(t) })
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newTestSQLiteStore(t)
	group, err := store.Migrate(context.Background())
	if err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
	if !group.IsZero() {
		t.Fatalf("expected no pending migrations, got %s", group)
	}
}

func TestOpenPostgresRequiresDSN(t *testing.T) {
	if _, err := OpenPostgres("  "); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}
