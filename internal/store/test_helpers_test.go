package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/ecowatch/internal/species"
	"github.com/roach88/ecowatch/internal/testutil"
)

// createTestStore creates a new temp-dir store with a deterministic clock
// whose readings are 1000010, 1000020, ...
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(testutil.NewStepClock(1_000_000, 10)))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEntry creates an entry with the minimum fields validation needs.
func createTestEntry(name string) species.Entry {
	return species.Entry{
		Name:    name,
		MinTemp: species.Ptr(10.0),
	}
}

func mustUpsert(t *testing.T, s *Store, e species.Entry) species.Entry {
	t.Helper()
	stored, err := s.Upsert(context.Background(), e)
	if err != nil {
		t.Fatalf("Upsert(%q) failed: %v", e.Name, err)
	}
	return stored
}

// next waits for the next snapshot on ch, failing after a second.
func next[T any](t *testing.T, ch <-chan Snapshot[T]) Snapshot[T] {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatal("observation closed unexpectedly")
		}
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	panic("unreachable")
}

func names(entries []species.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}
