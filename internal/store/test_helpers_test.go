package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/scenesync/internal/ir"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRoot writes a root record for a minimal scene.
func createTestRoot(t *testing.T, s *Store, id string) RootRecord {
	t.Helper()
	root, err := NewRootRecord(id, ir.SceneSpec{Name: "test"})
	if err != nil {
		t.Fatalf("NewRootRecord() failed: %v", err)
	}
	if err := s.WriteRoot(context.Background(), root); err != nil {
		t.Fatalf("WriteRoot() failed: %v", err)
	}
	return root
}
