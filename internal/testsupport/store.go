package testsupport

import (
	"context"
	"testing"

	"mixdown/internal/config"
	"mixdown/internal/ledger"
)

// MustOpenLedger opens a ledger.Store for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// StartRun inserts a running ledger row for tests.
func StartRun(t testing.TB, store *ledger.Store, runID, title string) *ledger.Run {
	t.Helper()

	run, err := store.StartRun(context.Background(), runID, title)
	if err != nil {
		t.Fatalf("store.StartRun: %v", err)
	}
	return run
}
