package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"tradesim/internal/ledger"
	"tradesim/pkg/types"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	led := ledger.New(slog.Default())
	led.ApplyFill("alice", "NOVA", types.Buy, 10, 100)
	led.ApplyFill("alice", "NOVA", types.Sell, 4, 110)
	led.ApplyFill("bob", "TRAX", types.Sell, 5, 50)

	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	for _, snap := range led.SnapshotAll() {
		if err := s.SaveUser(snap); err != nil {
			t.Fatalf("SaveUser(%s) error: %v", snap.UserID, err)
		}
	}

	snaps, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("loaded %d users, want 2", len(snaps))
	}

	restored := ledger.New(slog.Default())
	for _, snap := range snaps {
		restored.Restore(snap)
	}
	if got, want := restored.Cash("alice"), led.Cash("alice"); !got.Equal(want) {
		t.Errorf("alice cash = %v, want %v", got, want)
	}
	if got, want := restored.Position("bob", "TRAX"), int64(-5); got != want {
		t.Errorf("bob position = %d, want %d", got, want)
	}
}

func TestSaveOverwritesExisting(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	led := ledger.New(slog.Default())
	led.ApplyFill("alice", "NOVA", types.Buy, 10, 100)
	if err := s.SaveUser(led.SnapshotAll()[0]); err != nil {
		t.Fatal(err)
	}

	led.ApplyFill("alice", "NOVA", types.Buy, 5, 100)
	if err := s.SaveUser(led.SnapshotAll()[0]); err != nil {
		t.Fatal(err)
	}

	snaps, err := s.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 {
		t.Fatalf("loaded %d users, want 1", len(snaps))
	}
	restored := ledger.New(slog.Default())
	restored.Restore(snaps[0])
	if got := restored.Position("alice", "NOVA"); got != 15 {
		t.Errorf("position = %d, want 15 after overwrite", got)
	}
}

func TestUserIDsAreEscapedIntoSafeFilenames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	led := ledger.New(slog.Default())
	led.ApplyFill("../evil", "NOVA", types.Buy, 1, 100)
	if err := s.SaveUser(led.SnapshotAll()[0]); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("store dir has %d entries, want 1", len(entries))
	}
	// The file stays inside the store directory.
	if got := filepath.Dir(filepath.Join(dir, entries[0].Name())); got != dir {
		t.Errorf("file landed in %s, want %s", got, dir)
	}

	snaps, err := s.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 || snaps[0].UserID != "../evil" {
		t.Errorf("snaps = %+v, want the escaped user round-tripped", snaps)
	}
}

func TestLoadAllIgnoresForeignFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	snaps, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("snaps = %+v, want none", snaps)
	}
}
