package store

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rollbook/rollbook/internal/record"
	"github.com/rollbook/rollbook/internal/storage"
)

// setupStore creates a store over a temporary SQLite backend. The backend
// is returned too so tests can write raw blobs or reopen it.
func setupStore(t *testing.T) (*Store, storage.KV) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "local.db")
	kv, err := storage.Open(storage.KindSQLite, path)
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })

	return New(kv, log.New(os.Stderr, "[test] ", 0)), kv
}

func testStudent(id, name string) record.Student {
	now := time.Now()
	return record.Student{
		ID:        id,
		Name:      name,
		SubjectID: "sub1",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSaveThenGetUpserts(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	st := testStudent("s1", "Ana Cruz")
	if err := s.SaveStudent(ctx, st, SaveOptions{}); err != nil {
		t.Fatalf("SaveStudent failed: %v", err)
	}

	students := s.Students(ctx)
	if len(students) != 1 || students[0].Name != "Ana Cruz" {
		t.Fatalf("got %+v, want one student Ana Cruz", students)
	}

	// Saving the same ID replaces, never duplicates.
	st.Name = "Ana C. Cruz"
	if err := s.SaveStudent(ctx, st, SaveOptions{}); err != nil {
		t.Fatalf("second SaveStudent failed: %v", err)
	}

	students = s.Students(ctx)
	if len(students) != 1 {
		t.Fatalf("expected 1 student after re-save, got %d", len(students))
	}
	if students[0].Name != "Ana C. Cruz" {
		t.Errorf("got name %q, want last-saved value", students[0].Name)
	}
}

func TestSaveMarksPending(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	if err := s.SaveStudent(ctx, testStudent("s1", "Ana"), SaveOptions{}); err != nil {
		t.Fatal(err)
	}

	pending := s.Pending(ctx)
	if got := pending[record.CollectionStudents]; len(got) != 1 || got[0] != "s1" {
		t.Errorf("pending students = %v, want [s1]", got)
	}
}

func TestSkipSyncDoesNotMarkPending(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	if err := s.SaveStudent(ctx, testStudent("s1", "Ana"), SaveOptions{SkipSync: true}); err != nil {
		t.Fatal(err)
	}

	if got := s.Pending(ctx)[record.CollectionStudents]; len(got) != 0 {
		t.Errorf("pending students = %v, want empty after SkipSync save", got)
	}
}

func TestAssessmentsAreLocalOnly(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	a := record.Assessment{
		ID: "as1", StudentID: "s1", SubjectID: "sub1",
		Quarter: 1, Category: record.CategoryQuiz, Score: 5, Total: 10,
		Date: time.Now(),
	}
	if err := s.SaveAssessment(ctx, a, SaveOptions{}); err != nil {
		t.Fatal(err)
	}

	if got := s.Pending(ctx)[record.CollectionAssessments]; len(got) != 0 {
		t.Errorf("assessments were marked pending: %v", got)
	}
}

func TestCorruptBlobFailsOpen(t *testing.T) {
	s, kv := setupStore(t)
	ctx := context.Background()

	if err := kv.Set(ctx, record.CollectionStudents, []byte("{not json")); err != nil {
		t.Fatal(err)
	}

	if students := s.Students(ctx); len(students) != 0 {
		t.Errorf("corrupt blob returned %d students, want empty", len(students))
	}

	// A save over the corrupt blob starts a fresh collection.
	if err := s.SaveStudent(ctx, testStudent("s1", "Ana"), SaveOptions{}); err != nil {
		t.Fatalf("save over corrupt blob failed: %v", err)
	}
	if students := s.Students(ctx); len(students) != 1 {
		t.Errorf("got %d students after recovery save, want 1", len(students))
	}
}

func TestInvalidRecordRejectedBeforePersistence(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	sub := record.Subject{
		ID:   "sub1",
		Name: "Math",
		GradeSettings: &record.GradeSettings{
			Labels: record.DefaultLabels,
			// 20+20+40+21 percent: does not sum to 1.0.
			Weights: record.GradeWeights{Quiz: 0.20, Assignment: 0.20, Exam: 0.40, Project: 0.21},
		},
	}
	if err := s.SaveSubject(ctx, sub, SaveOptions{}); err == nil {
		t.Fatal("expected weight-sum rejection")
	}

	if subjects := s.Subjects(ctx); len(subjects) != 0 {
		t.Error("invalid subject was persisted")
	}
	if pending := s.Pending(ctx)[record.CollectionSubjects]; len(pending) != 0 {
		t.Error("invalid subject was marked pending")
	}
}

func TestDeleteStudent(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	_ = s.SaveStudent(ctx, testStudent("s1", "Ana"), SaveOptions{})
	_ = s.SaveStudent(ctx, testStudent("s2", "Ben"), SaveOptions{})

	if err := s.DeleteStudent(ctx, "s1"); err != nil {
		t.Fatalf("DeleteStudent failed: %v", err)
	}

	students := s.Students(ctx)
	if len(students) != 1 || students[0].ID != "s2" {
		t.Errorf("got %+v, want only s2", students)
	}

	// Deleting an absent ID is a no-op.
	if err := s.DeleteStudent(ctx, "s1"); err != nil {
		t.Errorf("repeat delete failed: %v", err)
	}
}

func TestDeleteGradesByStudent(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	for _, g := range []record.Grade{
		{ID: "g1", StudentID: "s1", SubjectID: "m", Quarter: 1},
		{ID: "g2", StudentID: "s1", SubjectID: "m", Quarter: 2},
		{ID: "g3", StudentID: "s2", SubjectID: "m", Quarter: 1},
	} {
		if err := s.SaveGrade(ctx, g, SaveOptions{SkipSync: true}); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.DeleteGradesByStudent(ctx, "s1"); err != nil {
		t.Fatalf("DeleteGradesByStudent failed: %v", err)
	}

	grades := s.Grades(ctx)
	if len(grades) != 1 || grades[0].ID != "g3" {
		t.Errorf("got %+v, want only g3", grades)
	}
}

func TestMarkAttendanceRejectsDuplicateDay(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	day := time.Date(2024, 3, 5, 8, 0, 0, 0, time.Local)
	first := record.Attendance{
		ID: "a1", StudentID: "s1", SubjectID: "sub1",
		Date: day, Status: record.StatusPresent, Timestamp: day,
	}
	if err := s.MarkAttendance(ctx, first); err != nil {
		t.Fatalf("first MarkAttendance failed: %v", err)
	}

	// Same student, subject, and calendar day, later in the day.
	second := record.Attendance{
		ID: "a2", StudentID: "s1", SubjectID: "sub1",
		Date: day.Add(4 * time.Hour), Status: record.StatusLate, Timestamp: day.Add(4 * time.Hour),
	}
	err := s.MarkAttendance(ctx, second)
	if err == nil {
		t.Fatal("expected ErrAlreadyMarked")
	}
	if !errors.Is(err, ErrAlreadyMarked) {
		t.Errorf("got %v, want ErrAlreadyMarked", err)
	}

	// First record's status preserved.
	records := s.Attendance(ctx)
	if len(records) != 1 || records[0].Status != record.StatusPresent {
		t.Errorf("got %+v, want single Present record", records)
	}

	// Different day is fine.
	third := second
	third.Date = day.AddDate(0, 0, 1)
	if err := s.MarkAttendance(ctx, third); err != nil {
		t.Errorf("next-day MarkAttendance failed: %v", err)
	}
}

func TestClearAll(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	_ = s.SaveStudent(ctx, testStudent("s1", "Ana"), SaveOptions{})
	_ = s.AddDeletedSubject(ctx, "sub9")

	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}

	if len(s.Students(ctx)) != 0 {
		t.Error("students survived ClearAll")
	}
	if len(s.Pending(ctx)) != 0 {
		t.Error("pending set survived ClearAll")
	}
	if len(s.DeletedSubjects(ctx)) != 0 {
		t.Error("tombstones survived ClearAll")
	}
}
