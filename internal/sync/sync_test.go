package sync

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rollbook/rollbook/internal/auth"
	"github.com/rollbook/rollbook/internal/record"
	"github.com/rollbook/rollbook/internal/remote"
	"github.com/rollbook/rollbook/internal/storage"
	"github.com/rollbook/rollbook/internal/store"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// setupSync wires a local store and an embedded remote document store
// behind a Syncer, the full stack minus the network.
func setupSync(t *testing.T) (Syncer, *store.Store, *remote.DocStore) {
	t.Helper()

	dir := t.TempDir()
	kv, err := storage.Open(storage.KindSQLite, filepath.Join(dir, "local.db"))
	if err != nil {
		t.Fatalf("failed to open local storage: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	st := store.New(kv, log.New(os.Stderr, "[test] ", 0))

	ds, err := remote.Open("sqlite3", "file:"+filepath.Join(dir, "remote.db"), auth.Static{UID: "teacher-1"})
	if err != nil {
		t.Fatalf("failed to open remote store: %v", err)
	}
	t.Cleanup(func() { _ = ds.Close() })

	return New(st, ds, log.New(os.Stderr, "[test] ", 0)), st, ds
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

func testSubject(id, name string) record.Subject {
	now := time.Now()
	return record.Subject{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}
}

func TestSyncAllPushesAndClearsPending(t *testing.T) {
	syncer, st, ds := setupSync(t)
	ctx := context.Background()

	if err := st.SaveStudent(ctx, testStudent("s1", "Ana"), store.SaveOptions{}); err != nil {
		t.Fatalf("SaveStudent failed: %v", err)
	}
	if err := st.SaveSubject(ctx, testSubject("sub1", "Math"), store.SaveOptions{}); err != nil {
		t.Fatalf("SaveSubject failed: %v", err)
	}

	if err := syncer.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}

	for collection, ids := range st.Pending(ctx) {
		if len(ids) != 0 {
			t.Errorf("pending %s still holds %v after successful sync", collection, ids)
		}
	}

	students, err := ds.FetchStudents(ctx)
	if err != nil {
		t.Fatalf("FetchStudents failed: %v", err)
	}
	if len(students) != 1 || students[0].Name != "Ana" {
		t.Errorf("remote got %+v, want one student Ana", students)
	}
}

func TestSyncAllWithEmptyQueueIsNoOp(t *testing.T) {
	syncer, _, _ := setupSync(t)
	if err := syncer.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll on empty queue failed: %v", err)
	}
}

func TestSyncAllDropsStalePendingEntries(t *testing.T) {
	syncer, st, ds := setupSync(t)
	ctx := context.Background()

	// Save then delete before syncing: the queue entry outlives the record.
	if err := st.SaveStudent(ctx, testStudent("s1", "Ana"), store.SaveOptions{}); err != nil {
		t.Fatalf("SaveStudent failed: %v", err)
	}
	if err := st.DeleteStudent(ctx, "s1"); err != nil {
		t.Fatalf("DeleteStudent failed: %v", err)
	}

	if err := syncer.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}

	if ids := st.Pending(ctx)[record.CollectionStudents]; len(ids) != 0 {
		t.Errorf("stale pending entry survived: %v", ids)
	}
	if students, _ := ds.FetchStudents(ctx); len(students) != 0 {
		t.Errorf("deleted student was uploaded: %+v", students)
	}
}

func TestFetchAllHydratesWithoutMarkingPending(t *testing.T) {
	syncer, st, ds := setupSync(t)
	ctx := context.Background()

	now := time.Now()
	if err := ds.UploadStudent(ctx, testStudent("s1", "Ana")); err != nil {
		t.Fatalf("UploadStudent failed: %v", err)
	}
	if err := ds.UploadGrade(ctx, record.Grade{
		ID:        record.GradeID("s1", "sub1", 1),
		StudentID: "s1",
		SubjectID: "sub1",
		Quarter:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("UploadGrade failed: %v", err)
	}

	if err := syncer.FetchAll(ctx); err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	if students := st.Students(ctx); len(students) != 1 || students[0].Name != "Ana" {
		t.Fatalf("got local students %+v, want one Ana", students)
	}
	if grades := st.Grades(ctx); len(grades) != 1 {
		t.Fatalf("got local grades %+v, want one", grades)
	}

	// Hydration must not queue re-uploads, or pull would feed push forever.
	for collection, ids := range st.Pending(ctx) {
		if len(ids) != 0 {
			t.Errorf("fetch marked %s/%v pending", collection, ids)
		}
	}
}

func TestFetchAllSkipsTombstonedSubjects(t *testing.T) {
	syncer, st, ds := setupSync(t)
	ctx := context.Background()

	if err := ds.UploadSubject(ctx, testSubject("sub1", "Math")); err != nil {
		t.Fatalf("UploadSubject failed: %v", err)
	}
	if err := ds.UploadSubject(ctx, testSubject("sub2", "Science")); err != nil {
		t.Fatalf("UploadSubject failed: %v", err)
	}
	if err := st.AddDeletedSubject(ctx, "sub1"); err != nil {
		t.Fatalf("AddDeletedSubject failed: %v", err)
	}

	if err := syncer.FetchAll(ctx); err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	subjects := st.Subjects(ctx)
	if len(subjects) != 1 || subjects[0].ID != "sub2" {
		t.Errorf("got local subjects %+v, want only sub2", subjects)
	}
}

func TestRestoreFromCloudReadmitsTombstonedSubjects(t *testing.T) {
	syncer, st, ds := setupSync(t)
	ctx := context.Background()

	if err := ds.UploadSubject(ctx, testSubject("sub1", "Math")); err != nil {
		t.Fatalf("UploadSubject failed: %v", err)
	}
	if err := st.AddDeletedSubject(ctx, "sub1"); err != nil {
		t.Fatalf("AddDeletedSubject failed: %v", err)
	}

	if err := syncer.RestoreFromCloud(ctx); err != nil {
		t.Fatalf("RestoreFromCloud failed: %v", err)
	}

	if subjects := st.Subjects(ctx); len(subjects) != 1 || subjects[0].ID != "sub1" {
		t.Errorf("got local subjects %+v, want sub1 restored", subjects)
	}
	if tombstones := st.DeletedSubjects(ctx); len(tombstones) != 0 {
		t.Errorf("tombstones %v survived restore", tombstones)
	}
}

func TestDeleteStudentCascade(t *testing.T) {
	syncer, st, ds := setupSync(t)
	ctx := context.Background()
	now := time.Now()

	if err := st.SaveStudent(ctx, testStudent("s1", "Ana"), store.SaveOptions{}); err != nil {
		t.Fatalf("SaveStudent failed: %v", err)
	}
	if err := st.SaveGrade(ctx, record.Grade{
		ID:        record.GradeID("s1", "sub1", 1),
		StudentID: "s1",
		SubjectID: "sub1",
		Quarter:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, store.SaveOptions{}); err != nil {
		t.Fatalf("SaveGrade failed: %v", err)
	}
	if err := syncer.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}

	if err := syncer.DeleteStudentCascade(ctx, "s1"); err != nil {
		t.Fatalf("DeleteStudentCascade failed: %v", err)
	}

	if students := st.Students(ctx); len(students) != 0 {
		t.Errorf("student survived locally: %+v", students)
	}
	if grades := st.Grades(ctx); len(grades) != 0 {
		t.Errorf("grades survived locally: %+v", grades)
	}
	if students, _ := ds.FetchStudents(ctx); len(students) != 0 {
		t.Errorf("student survived remotely: %+v", students)
	}
	if grades, _ := ds.FetchGrades(ctx); len(grades) != 0 {
		t.Errorf("grades survived remotely: %+v", grades)
	}
}

// flakyClient wraps a Client and fails uploads for the configured IDs.
type flakyClient struct {
	remote.Client
	failIDs map[string]bool
}

func (f *flakyClient) UploadStudent(ctx context.Context, st record.Student) error {
	if f.failIDs[st.ID] {
		return errors.New("simulated network failure")
	}
	return f.Client.UploadStudent(ctx, st)
}

func TestSyncAllIsolatesPerRecordFailures(t *testing.T) {
	dir := t.TempDir()
	kv, err := storage.Open(storage.KindSQLite, filepath.Join(dir, "local.db"))
	if err != nil {
		t.Fatalf("failed to open local storage: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	st := store.New(kv, log.New(os.Stderr, "[test] ", 0))

	ds, err := remote.Open("sqlite3", "file:"+filepath.Join(dir, "remote.db"), auth.Static{UID: "teacher-1"})
	if err != nil {
		t.Fatalf("failed to open remote store: %v", err)
	}
	t.Cleanup(func() { _ = ds.Close() })

	client := &flakyClient{Client: ds, failIDs: map[string]bool{"s2": true}}
	syncer := New(st, client, log.New(os.Stderr, "[test] ", 0))
	ctx := context.Background()

	for _, s := range []record.Student{testStudent("s1", "Ana"), testStudent("s2", "Ben"), testStudent("s3", "Carla")} {
		if err := st.SaveStudent(ctx, s, store.SaveOptions{}); err != nil {
			t.Fatalf("SaveStudent failed: %v", err)
		}
	}

	err = syncer.SyncAll(ctx)
	if err == nil {
		t.Fatal("SyncAll succeeded despite an upload failure")
	}
	if !strings.Contains(err.Error(), "1 of 3") {
		t.Errorf("got error %q, want a 1-of-3 summary", err)
	}

	// The failure stays queued; the successes are cleared.
	ids := st.Pending(ctx)[record.CollectionStudents]
	if len(ids) != 1 || ids[0] != "s2" {
		t.Errorf("got pending %v, want exactly [s2]", ids)
	}
	if students, _ := ds.FetchStudents(ctx); len(students) != 2 {
		t.Errorf("remote got %d students, want the 2 that succeeded", len(students))
	}

	// Once the record uploads cleanly the queue drains.
	client.failIDs = nil
	if err := syncer.SyncAll(ctx); err != nil {
		t.Fatalf("retry SyncAll failed: %v", err)
	}
	if ids := st.Pending(ctx)[record.CollectionStudents]; len(ids) != 0 {
		t.Errorf("pending %v after retry, want empty", ids)
	}
}

func TestSyncAllAbortsWhenUnauthenticated(t *testing.T) {
	dir := t.TempDir()
	kv, err := storage.Open(storage.KindSQLite, filepath.Join(dir, "local.db"))
	if err != nil {
		t.Fatalf("failed to open local storage: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	st := store.New(kv, log.New(os.Stderr, "[test] ", 0))

	ds, err := remote.Open("sqlite3", "file:"+filepath.Join(dir, "remote.db"), auth.None{})
	if err != nil {
		t.Fatalf("failed to open remote store: %v", err)
	}
	t.Cleanup(func() { _ = ds.Close() })
	syncer := New(st, ds, log.New(os.Stderr, "[test] ", 0))
	ctx := context.Background()

	if err := st.SaveStudent(ctx, testStudent("s1", "Ana"), store.SaveOptions{}); err != nil {
		t.Fatalf("SaveStudent failed: %v", err)
	}

	if err := syncer.SyncAll(ctx); !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Errorf("SyncAll returned %v, want ErrNotAuthenticated", err)
	}

	// The queue is untouched for when sign-in returns.
	if ids := st.Pending(ctx)[record.CollectionStudents]; len(ids) != 1 {
		t.Errorf("got pending %v, want the queued student kept", ids)
	}
}

func TestPushPullRoundTrip(t *testing.T) {
	syncer, st, ds := setupSync(t)
	ctx := context.Background()

	if err := st.SaveStudent(ctx, testStudent("s1", "Ana"), store.SaveOptions{}); err != nil {
		t.Fatalf("SaveStudent failed: %v", err)
	}
	if err := syncer.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}

	// A second device with an empty store pulls the same account.
	kv2, err := storage.Open(storage.KindSQLite, filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("failed to open second storage: %v", err)
	}
	t.Cleanup(func() { _ = kv2.Close() })
	st2 := store.New(kv2, log.New(os.Stderr, "[test] ", 0))
	syncer2 := New(st2, ds, log.New(os.Stderr, "[test] ", 0))

	if err := syncer2.FetchAll(ctx); err != nil {
		t.Fatalf("FetchAll on second device failed: %v", err)
	}
	if students := st2.Students(ctx); len(students) != 1 || students[0].Name != "Ana" {
		t.Errorf("second device got %+v, want Ana", students)
	}
}

func TestWipeRemoteAndLocal(t *testing.T) {
	syncer, st, ds := setupSync(t)
	ctx := context.Background()

	if err := st.SaveStudent(ctx, testStudent("s1", "Ana"), store.SaveOptions{}); err != nil {
		t.Fatalf("SaveStudent failed: %v", err)
	}
	if err := syncer.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}

	if err := syncer.WipeRemote(ctx); err != nil {
		t.Fatalf("WipeRemote failed: %v", err)
	}
	if students, _ := ds.FetchStudents(ctx); len(students) != 0 {
		t.Errorf("remote students survived wipe: %+v", students)
	}
	if students := st.Students(ctx); len(students) != 1 {
		t.Errorf("WipeRemote touched local data: %+v", students)
	}

	if err := syncer.WipeLocal(ctx); err != nil {
		t.Fatalf("WipeLocal failed: %v", err)
	}
	if students := st.Students(ctx); len(students) != 0 {
		t.Errorf("local students survived wipe: %+v", students)
	}
}
