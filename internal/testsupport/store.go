package testsupport

import (
	"context"
	"testing"

	"guidora/internal/config"
	"guidora/internal/pipeline"
)

// MustOpenStore opens a pipeline.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *pipeline.Store {
	t.Helper()

	store, err := pipeline.Open(cfg)
	if err != nil {
		t.Fatalf("pipeline.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewUnit creates a content unit for tests using the provided store.
func NewUnit(t testing.TB, store *pipeline.Store, title, lang, audience string) *pipeline.Unit {
	t.Helper()

	unit, err := store.NewUnit(context.Background(), "test-source", title, lang, audience)
	if err != nil {
		t.Fatalf("store.NewUnit: %v", err)
	}
	return unit
}
