package store

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/rollbook/rollbook/internal/record"
)

func TestMarkPendingIdempotent(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.MarkPending(ctx, record.CollectionStudents, "s1"); err != nil {
			t.Fatalf("MarkPending failed: %v", err)
		}
	}

	pending := s.Pending(ctx)
	if got := pending[record.CollectionStudents]; len(got) != 1 || got[0] != "s1" {
		t.Errorf("got pending %v, want exactly [s1]", got)
	}
}

func TestClearPendingAbsentIsNoOp(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	if err := s.ClearPending(ctx, record.CollectionStudents, "never-marked"); err != nil {
		t.Fatalf("ClearPending of absent ID failed: %v", err)
	}

	if err := s.MarkPending(ctx, record.CollectionStudents, "s1"); err != nil {
		t.Fatalf("MarkPending failed: %v", err)
	}
	if err := s.ClearPending(ctx, record.CollectionStudents, "s1"); err != nil {
		t.Fatalf("ClearPending failed: %v", err)
	}
	if ids := s.Pending(ctx)[record.CollectionStudents]; len(ids) != 0 {
		t.Errorf("got pending %v after clear, want empty", ids)
	}
}

func TestPendingReturnsCopy(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	if err := s.MarkPending(ctx, record.CollectionGrades, "g1"); err != nil {
		t.Fatalf("MarkPending failed: %v", err)
	}

	first := s.Pending(ctx)
	first[record.CollectionGrades][0] = "mutated"

	if got := s.Pending(ctx)[record.CollectionGrades][0]; got != "g1" {
		t.Errorf("caller mutation leaked into the store: got %q", got)
	}
}

func TestPendingSurvivesReopen(t *testing.T) {
	s, kv := setupStore(t)
	ctx := context.Background()

	if err := s.MarkPending(ctx, record.CollectionAttendance, "a1"); err != nil {
		t.Fatalf("MarkPending failed: %v", err)
	}

	// A second store over the same backend sees the queued ID, simulating
	// an app restart while offline.
	reopened := New(kv, log.New(os.Stderr, "[test] ", 0))
	if ids := reopened.Pending(ctx)[record.CollectionAttendance]; len(ids) != 1 || ids[0] != "a1" {
		t.Errorf("got pending %v after reopen, want [a1]", ids)
	}
}

func TestCorruptPendingFailsOpen(t *testing.T) {
	s, kv := setupStore(t)
	ctx := context.Background()

	if err := kv.Set(ctx, keySyncPending, []byte("{not json")); err != nil {
		t.Fatalf("failed to plant corrupt blob: %v", err)
	}

	if got := s.Pending(ctx); len(got) != 0 {
		t.Errorf("got %v from corrupt pending blob, want empty", got)
	}

	// Marking must recover by rewriting a fresh set.
	if err := s.MarkPending(ctx, record.CollectionStudents, "s1"); err != nil {
		t.Fatalf("MarkPending over corrupt blob failed: %v", err)
	}
	if ids := s.Pending(ctx)[record.CollectionStudents]; len(ids) != 1 {
		t.Errorf("got pending %v, want [s1]", ids)
	}
}

func TestSubjectTombstones(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	if err := s.AddDeletedSubject(ctx, "sub1"); err != nil {
		t.Fatalf("AddDeletedSubject failed: %v", err)
	}
	if err := s.AddDeletedSubject(ctx, "sub1"); err != nil {
		t.Fatalf("repeat AddDeletedSubject failed: %v", err)
	}
	if err := s.AddDeletedSubject(ctx, "sub2"); err != nil {
		t.Fatalf("AddDeletedSubject failed: %v", err)
	}

	got := s.DeletedSubjects(ctx)
	if len(got) != 2 {
		t.Fatalf("got tombstones %v, want two distinct IDs", got)
	}

	if err := s.ClearDeletedSubjects(ctx); err != nil {
		t.Fatalf("ClearDeletedSubjects failed: %v", err)
	}
	if got := s.DeletedSubjects(ctx); len(got) != 0 {
		t.Errorf("got tombstones %v after clear, want empty", got)
	}
}
