package testutil

import (
	"path/filepath"
	"testing"

	"github.com/roach88/compliance/internal/store"
)

// OpenStore opens a fresh store in a temp directory and closes it when
// the test ends.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "compliance.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
