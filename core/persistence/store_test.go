package persistence

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *SQLiteLogStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aril.db")
	s, err := OpenSQLiteLogStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	entry, err := s.Append(ctx, "session-1", []byte(`{"hello":"world"}`))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if entry.Hash == "" {
		t.Error("expected non-empty content hash")
	}

	got, ok, err := s.Get(ctx, "session-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(got.Payload) != `{"hello":"world"}` {
		t.Errorf("payload = %q, want original", got.Payload)
	}
}

func TestAppendNeverOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.Append(ctx, "session-1", []byte("first"))
	s.Append(ctx, "session-1", []byte("second"))

	total, _, err := s.IndexCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Errorf("expected 2 entries (append never overwrites), got %d", total)
	}

	got, ok, _ := s.Get(ctx, "session-1")
	if !ok || string(got.Payload) != "second" {
		t.Errorf("Get should return the latest write, got %q", got.Payload)
	}
}

func TestPutReservedOverwritesInPlace(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.PutReserved(ctx, ReservedStateID, []byte("state-v1"))
	s.PutReserved(ctx, ReservedStateID, []byte("state-v2"))

	total, _, _ := s.IndexCounts(ctx)
	if total != 1 {
		t.Errorf("expected 1 entry for reserved slot (overwrite, not append), got %d", total)
	}

	got, ok, _ := s.GetReserved(ctx, ReservedStateID)
	if !ok || string(got.Payload) != "state-v2" {
		t.Errorf("got %q, want state-v2", got.Payload)
	}
}

func TestGetMissingInteractionID(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Get(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected ok=false for missing interaction id")
	}
}

func TestIndexSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aril.db")
	s1, err := OpenSQLiteLogStore(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	s1.Append(ctx, "a", []byte("one"))
	s1.Append(ctx, "b", []byte("two"))
	s1.Close()

	s2, err := OpenSQLiteLogStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	total, hashes, _ := s2.IndexCounts(ctx)
	if total != 2 || len(hashes) != 2 {
		t.Errorf("expected index rebuilt with 2 entries after reopen, got total=%d hashes=%d", total, len(hashes))
	}
	got, ok, _ := s2.Get(ctx, "a")
	if !ok || string(got.Payload) != "one" {
		t.Errorf("expected entry 'a' readable after reopen, got ok=%v payload=%q", ok, got.Payload)
	}
}
