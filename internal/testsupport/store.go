package testsupport

import (
	"testing"

	"reelcap/internal/config"
	"reelcap/internal/history"
)

// MustOpenStore opens a history store backed by the test config's log dir and
// closes it when the test finishes.
func MustOpenStore(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		t.Fatalf("open history store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close history store: %v", err)
		}
	})
	return store
}
