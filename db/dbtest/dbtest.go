// Package dbtest provides throwaway stores for tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/terrascenik/server/config"
	"github.com/terrascenik/server/db"
)

// NewStore returns a migrated store over a private in-memory SQLite database.
func NewStore(t testing.TB) *db.Store {
	t.Helper()

	gdb, err := db.NewSQLStorage(config.Database{
		Driver:       "sqlite",
		URL:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
		MaxOpenConns: 1,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	store := db.NewGormStore(gdb)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})
	return store
}
