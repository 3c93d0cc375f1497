package testsupport

import (
	"testing"

	"labtrace/internal/config"
	"labtrace/internal/storage"
)

// MustOpenStore opens an entity store for tests and closes it on cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *storage.Store {
	t.Helper()

	store, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("open entity store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close entity store: %v", err)
		}
	})
	return store
}
