// Package store implements the local record store: durable, offline-first
// persistence of the typed record collections plus the pending-sync queue
// and the deleted-subject tombstone set.
//
// Every collection is serialized as one blob in the storage backend. Reads
// fail open: a missing or corrupt blob degrades to an empty collection so
// the app never crashes on cold start. Writes are read-modify-write on the
// blob, serialized by a store-level mutex, and follow a fixed sequence:
// persist, mark the record pending for upload (unless the write came from
// remote hydration, which sets SkipSync), notify subscribers. Marking
// precedes notification so a subscriber that reacts by starting a sync
// pass always finds the new ID queued.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"sync"

	"github.com/rollbook/rollbook/internal/record"
	"github.com/rollbook/rollbook/internal/storage"
)

// Blob keys. Collections persist under their collection name; the two
// auxiliary sets have their own keys.
const (
	keySyncPending     = "sync_pending"
	keyDeletedSubjects = "deleted_subjects"
)

// allKeys is everything ClearAll wipes.
var allKeys = []string{
	record.CollectionStudents,
	record.CollectionSubjects,
	record.CollectionAttendance,
	record.CollectionGrades,
	record.CollectionAssessments,
	keySyncPending,
	keyDeletedSubjects,
}

// ErrAlreadyMarked is returned by MarkAttendance when the student already
// has an attendance record for that subject and calendar day.
var ErrAlreadyMarked = errors.New("attendance already marked for this day")

// SaveOptions controls side effects of a save.
type SaveOptions struct {
	// SkipSync suppresses pending-sync marking. Set by remote hydration
	// so downloaded records are not re-queued for upload, which would
	// otherwise loop uploads and downloads forever.
	SkipSync bool
}

// Store owns on-device durable state. It is safe for concurrent use; the
// mutex keeps each blob's read-modify-write span short rather than holding
// it across notifications.
type Store struct {
	kv       storage.KV
	notifier *Notifier
	logger   *log.Logger

	mu sync.Mutex
}

// New creates a Store over the given storage backend. The notifier is
// owned by the store instance, so separate stores never cross-notify.
// If logger is nil, a default logger writing to stderr is used.
func New(kv storage.KV, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}
	return &Store{
		kv:       kv,
		notifier: NewNotifier(),
		logger:   logger,
	}
}

// Subscribe registers a callback invoked after every mutation of the named
// collection. The returned function unsubscribes. Callbacks receive no
// payload; they should re-read store state.
func (s *Store) Subscribe(collection string, fn func()) (unsubscribe func()) {
	return s.notifier.Subscribe(collection, fn)
}

// loadList reads a collection blob, failing open to nil on missing or
// corrupt data.
func loadList[T any](ctx context.Context, s *Store, key string) []T {
	blob, found, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.Printf("Warning: failed to read %s, treating as empty: %v", key, err)
		return nil
	}
	if !found {
		return nil
	}

	var list []T
	if err := json.Unmarshal(blob, &list); err != nil {
		s.logger.Printf("Warning: corrupt %s blob, treating as empty: %v", key, err)
		return nil
	}
	return list
}

// storeList persists a collection blob.
func storeList[T any](ctx context.Context, s *Store, key string, list []T) error {
	blob, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, blob); err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}

// keyed is satisfied by every record type.
type keyed interface {
	RecordID() string
}

// upsert replaces the record with a matching ID or appends it, persists
// the collection, marks the ID pending unless the save opted out or the
// collection is local-only, and then notifies subscribers. Pending comes
// first so a notification-driven sync pass always sees the queued ID.
func upsert[T keyed](ctx context.Context, s *Store, collection string, rec T, opts SaveOptions) error {
	s.mu.Lock()
	list := loadList[T](ctx, s, collection)
	replaced := false
	for i := range list {
		if list[i].RecordID() == rec.RecordID() {
			list[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, rec)
	}
	err := storeList(ctx, s, collection, list)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	var markErr error
	if !opts.SkipSync && slices.Contains(record.SyncedCollections, collection) {
		markErr = s.MarkPending(ctx, collection, rec.RecordID())
	}
	s.notifier.notify(collection)
	return markErr
}

// deleteWhere removes every record matching drop, persists, and notifies.
// Deleting nothing is not an error.
func deleteWhere[T any](ctx context.Context, s *Store, collection string, drop func(T) bool) error {
	s.mu.Lock()
	list := loadList[T](ctx, s, collection)
	kept := list[:0]
	removed := false
	for _, rec := range list {
		if drop(rec) {
			removed = true
			continue
		}
		kept = append(kept, rec)
	}
	var err error
	if removed {
		err = storeList(ctx, s, collection, kept)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if removed {
		s.notifier.notify(collection)
	}
	return nil
}

// Students returns all students. Read failures degrade to empty.
func (s *Store) Students(ctx context.Context) []record.Student {
	return loadList[record.Student](ctx, s, record.CollectionStudents)
}

// SaveStudent upserts a student by ID.
func (s *Store) SaveStudent(ctx context.Context, st record.Student, opts SaveOptions) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("invalid student: %w", err)
	}
	return upsert(ctx, s, record.CollectionStudents, st, opts)
}

// DeleteStudent removes a student. Grade records referencing the student
// are not touched; use sync.Syncer.DeleteStudentCascade for the full
// cascade, or DeleteGradesByStudent directly.
func (s *Store) DeleteStudent(ctx context.Context, id string) error {
	return deleteWhere(ctx, s, record.CollectionStudents, func(st record.Student) bool {
		return st.ID == id
	})
}

// Subjects returns all subjects. Read failures degrade to empty.
func (s *Store) Subjects(ctx context.Context) []record.Subject {
	return loadList[record.Subject](ctx, s, record.CollectionSubjects)
}

// SaveSubject upserts a subject by ID. Subjects with grade settings whose
// weights do not sum to 1.0 are rejected before anything is persisted.
func (s *Store) SaveSubject(ctx context.Context, sub record.Subject, opts SaveOptions) error {
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("invalid subject: %w", err)
	}
	return upsert(ctx, s, record.CollectionSubjects, sub, opts)
}

// DeleteSubject removes a subject from the local collection only. It does
// not record a tombstone; see sync.Syncer.DeleteSubjectLocal.
func (s *Store) DeleteSubject(ctx context.Context, id string) error {
	return deleteWhere(ctx, s, record.CollectionSubjects, func(sub record.Subject) bool {
		return sub.ID == id
	})
}

// Attendance returns all attendance records. Read failures degrade to empty.
func (s *Store) Attendance(ctx context.Context) []record.Attendance {
	return loadList[record.Attendance](ctx, s, record.CollectionAttendance)
}

// SaveAttendance upserts an attendance record by ID. It performs no
// duplicate-day check; use MarkAttendance at the editing boundary.
func (s *Store) SaveAttendance(ctx context.Context, att record.Attendance, opts SaveOptions) error {
	if err := att.Validate(); err != nil {
		return fmt.Errorf("invalid attendance: %w", err)
	}
	return upsert(ctx, s, record.CollectionAttendance, att, opts)
}

// MarkAttendance saves a new attendance record after checking that the
// student has not already been marked for that subject and calendar day.
// A duplicate returns ErrAlreadyMarked and leaves the first record intact.
func (s *Store) MarkAttendance(ctx context.Context, att record.Attendance) error {
	if err := att.Validate(); err != nil {
		return fmt.Errorf("invalid attendance: %w", err)
	}
	for _, existing := range s.Attendance(ctx) {
		if existing.StudentID == att.StudentID &&
			existing.SubjectID == att.SubjectID &&
			record.SameDay(existing.Date, att.Date) {
			return fmt.Errorf("%w: student %s on %s", ErrAlreadyMarked,
				att.StudentID, att.Date.Format("2006-01-02"))
		}
	}
	return upsert(ctx, s, record.CollectionAttendance, att, SaveOptions{})
}

// Grades returns all grades. Read failures degrade to empty.
func (s *Store) Grades(ctx context.Context) []record.Grade {
	return loadList[record.Grade](ctx, s, record.CollectionGrades)
}

// SaveGrade upserts a grade by ID.
func (s *Store) SaveGrade(ctx context.Context, g record.Grade, opts SaveOptions) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("invalid grade: %w", err)
	}
	return upsert(ctx, s, record.CollectionGrades, g, opts)
}

// DeleteGradesByStudent purges every grade referencing the student. This
// is the local half of the student delete cascade.
func (s *Store) DeleteGradesByStudent(ctx context.Context, studentID string) error {
	return deleteWhere(ctx, s, record.CollectionGrades, func(g record.Grade) bool {
		return g.StudentID == studentID
	})
}

// Assessments returns all assessments. Read failures degrade to empty.
func (s *Store) Assessments(ctx context.Context) []record.Assessment {
	return loadList[record.Assessment](ctx, s, record.CollectionAssessments)
}

// SaveAssessment upserts an assessment by ID. Assessments are local-only
// and are never marked pending for upload.
func (s *Store) SaveAssessment(ctx context.Context, a record.Assessment, opts SaveOptions) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid assessment: %w", err)
	}
	return upsert(ctx, s, record.CollectionAssessments, a, opts)
}

// DeleteAssessment removes an assessment.
func (s *Store) DeleteAssessment(ctx context.Context, id string) error {
	return deleteWhere(ctx, s, record.CollectionAssessments, func(a record.Assessment) bool {
		return a.ID == id
	})
}

// ClearAll wipes every persisted key: all collections, the pending-sync
// queue, and the tombstone set. Used by account deletion and logout flows.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Remove(ctx, allKeys...); err != nil {
		return fmt.Errorf("failed to clear local data: %w", err)
	}
	return nil
}
