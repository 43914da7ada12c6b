package testsupport

import (
	"testing"

	"folio/internal/checkpoint"
	"folio/internal/config"
	"folio/internal/integrity"
)

// MustOpenRegistry opens an integrity.Registry for tests and registers cleanup.
func MustOpenRegistry(t testing.TB, cfg *config.Config) *integrity.Registry {
	t.Helper()

	registry, err := integrity.Open(cfg)
	if err != nil {
		t.Fatalf("integrity.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = registry.Close()
	})
	return registry
}

// MustOpenCheckpoints opens a checkpoint.Store for tests and registers cleanup.
func MustOpenCheckpoints(t testing.TB, cfg *config.Config) *checkpoint.Store {
	t.Helper()

	store, err := checkpoint.Open(cfg)
	if err != nil {
		t.Fatalf("checkpoint.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
