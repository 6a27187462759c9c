package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/meshtools/meshdb/internal/observability"
	"github.com/meshtools/meshdb/internal/storage"
)

const testOwner uint32 = 111

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()

	db, err := storage.Open(context.Background(), storage.Config{
		BasePath: t.TempDir(),
		Owner:    testOwner,
	},
		storage.WithLogger(observability.NoOpLogger()),
		storage.WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
	)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return db
}

func ptr[T any](v T) *T {
	return &v
}
