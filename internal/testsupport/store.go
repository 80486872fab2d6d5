package testsupport

import (
	"testing"

	"dubber/internal/config"
	"dubber/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// NewRepository opens a store and wraps it in a jobs.Repository.
func NewRepository(t testing.TB, cfg *config.Config, opts ...jobs.RepositoryOption) *jobs.Repository {
	t.Helper()
	return jobs.NewRepository(MustOpenStore(t, cfg), opts...)
}
