package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "interactions.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().Add(-time.Minute)
	for i, cmd := range []string{"first", "second", "third"} {
		err := s.Record(Interaction{
			ID:        cmd + "-id",
			Command:   cmd,
			Intent:    "general",
			Action:    "default",
			Status:    "success",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("record %s: %v", cmd, err)
		}
	}

	recent, err := s.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d interactions, want 2", len(recent))
	}
	if recent[0].Command != "third" {
		t.Errorf("newest first: got %q, want third", recent[0].Command)
	}
	if recent[1].Command != "second" {
		t.Errorf("second entry = %q, want second", recent[1].Command)
	}
}

func TestRecord_DefaultsTimestamp(t *testing.T) {
	s := newTestStore(t)

	if err := s.Record(Interaction{ID: "a", Command: "x", Intent: "general", Action: "default", Status: "success"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	recent, err := s.Recent(1)
	if err != nil {
		t.Fatal(err)
	}
	if recent[0].Timestamp.IsZero() {
		t.Error("timestamp not defaulted")
	}
}

func TestCountByIntent(t *testing.T) {
	s := newTestStore(t)

	for _, in := range []struct{ id, intent string }{
		{"a", "general"}, {"b", "general"}, {"c", "system_control"},
	} {
		if err := s.Record(Interaction{ID: in.id, Command: "x", Intent: in.intent, Action: "y", Status: "success"}); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := s.CountByIntent()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts["general"] != 2 || counts["system_control"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)

	old := Interaction{ID: "old", Command: "x", Intent: "general", Action: "y", Status: "success",
		Timestamp: time.Now().Add(-48 * time.Hour)}
	fresh := Interaction{ID: "fresh", Command: "x", Intent: "general", Action: "y", Status: "success"}

	if err := s.Record(old); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(fresh); err != nil {
		t.Fatal(err)
	}

	n, err := s.Prune(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}

	recent, _ := s.Recent(10)
	if len(recent) != 1 || recent[0].ID != "fresh" {
		t.Errorf("surviving records = %+v", recent)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interactions.db")

	s1, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Record(Interaction{ID: "a", Command: "x", Intent: "general", Action: "y", Status: "success"}); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	// Reopening must not disturb existing rows.
	s2, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	recent, err := s2.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 {
		t.Errorf("rows after reopen = %d, want 1", len(recent))
	}
}
