package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/rollbook/rollbook/internal/auth"
	"github.com/rollbook/rollbook/internal/record"
	"github.com/rollbook/rollbook/internal/remote"
	"github.com/rollbook/rollbook/internal/store"
)

// syncer implements the Syncer interface.
type syncer struct {
	store  *store.Store
	client remote.Client
	logger *log.Logger
}

// New creates a new Syncer over the given store and remote client.
//
// If logger is nil, a default logger writing to stderr is used.
//
// Example:
//
//	kv, err := storage.Open(storage.KindSQLite, ".rollbook/local.db")
//	if err != nil {
//	    return err
//	}
//	st := store.New(kv, nil)
//	client, err := remote.Open("libsql", dsn, provider)
//	if err != nil {
//	    return err
//	}
//	syncer := sync.New(st, client, nil)
func New(st *store.Store, client remote.Client, logger *log.Logger) Syncer {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &syncer{
		store:  st,
		client: client,
		logger: logger,
	}
}

// SyncAll implements Syncer.SyncAll.
func (s *syncer) SyncAll(ctx context.Context) error {
	pending := s.store.Pending(ctx)

	var attempted, failed int
	for _, collection := range record.SyncedCollections {
		ids := pending[collection]
		if len(ids) == 0 {
			continue
		}

		upload := s.uploaderFor(ctx, collection)
		for _, id := range ids {
			attempted++

			err := upload(id)
			if errors.Is(err, errNotFoundLocally) {
				// Deleted before it ever synced; nothing left to
				// upload, so drop the stale queue entry.
				s.logger.Printf("Skipping %s/%s: no longer exists locally", collection, id)
				if err := s.store.ClearPending(ctx, collection, id); err != nil {
					s.logger.Printf("WARNING: failed to drop stale pending %s/%s: %v", collection, id, err)
				}
				attempted--
				continue
			}
			if errors.Is(err, auth.ErrNotAuthenticated) {
				// Precondition failure, not a network blip. Every
				// remaining upload would fail the same way.
				return err
			}
			if err != nil {
				s.logger.Printf("WARNING: failed to upload %s/%s: %v", collection, id, err)
				failed++
				continue
			}

			if err := s.store.ClearPending(ctx, collection, id); err != nil {
				// The upload landed but the ID stays queued; the next
				// pass re-uploads it, which is a harmless upsert.
				s.logger.Printf("WARNING: failed to clear pending %s/%s: %v", collection, id, err)
				failed++
				continue
			}
			s.logger.Printf("Synced %s/%s", collection, id)
		}
	}

	if failed > 0 {
		return fmt.Errorf("sync incomplete: %d of %d pending uploads failed", failed, attempted)
	}
	return nil
}

// errNotFoundLocally signals that a pending ID has no backing record.
var errNotFoundLocally = errors.New("record not found locally")

// uploaderFor returns a function that resolves one pending ID against the
// current local collection and uploads it.
func (s *syncer) uploaderFor(ctx context.Context, collection string) func(id string) error {
	switch collection {
	case record.CollectionStudents:
		byID := make(map[string]record.Student)
		for _, st := range s.store.Students(ctx) {
			byID[st.ID] = st
		}
		return func(id string) error {
			st, ok := byID[id]
			if !ok {
				return errNotFoundLocally
			}
			return s.client.UploadStudent(ctx, st)
		}
	case record.CollectionSubjects:
		byID := make(map[string]record.Subject)
		for _, sub := range s.store.Subjects(ctx) {
			byID[sub.ID] = sub
		}
		return func(id string) error {
			sub, ok := byID[id]
			if !ok {
				return errNotFoundLocally
			}
			return s.client.UploadSubject(ctx, sub)
		}
	case record.CollectionAttendance:
		byID := make(map[string]record.Attendance)
		for _, att := range s.store.Attendance(ctx) {
			byID[att.ID] = att
		}
		return func(id string) error {
			att, ok := byID[id]
			if !ok {
				return errNotFoundLocally
			}
			return s.client.UploadAttendance(ctx, att)
		}
	case record.CollectionGrades:
		byID := make(map[string]record.Grade)
		for _, g := range s.store.Grades(ctx) {
			byID[g.ID] = g
		}
		return func(id string) error {
			g, ok := byID[id]
			if !ok {
				return errNotFoundLocally
			}
			return s.client.UploadGrade(ctx, g)
		}
	default:
		return func(id string) error {
			return fmt.Errorf("unknown collection %q", collection)
		}
	}
}

// FetchAll implements Syncer.FetchAll.
func (s *syncer) FetchAll(ctx context.Context) error {
	students, err := s.client.FetchStudents(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch students: %w", err)
	}
	subjects, err := s.client.FetchSubjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch subjects: %w", err)
	}
	attendance, err := s.client.FetchAttendance(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch attendance: %w", err)
	}
	grades, err := s.client.FetchGrades(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch grades: %w", err)
	}

	skip := store.SaveOptions{SkipSync: true}

	for _, st := range students {
		if err := s.store.SaveStudent(ctx, st, skip); err != nil {
			return fmt.Errorf("failed to hydrate student %s: %w", st.ID, err)
		}
	}

	tombstoned := make(map[string]bool)
	for _, id := range s.store.DeletedSubjects(ctx) {
		tombstoned[id] = true
	}
	for _, sub := range subjects {
		if tombstoned[sub.ID] {
			s.logger.Printf("Skipping tombstoned subject %s", sub.ID)
			continue
		}
		if err := s.store.SaveSubject(ctx, sub, skip); err != nil {
			return fmt.Errorf("failed to hydrate subject %s: %w", sub.ID, err)
		}
	}

	for _, att := range attendance {
		if err := s.store.SaveAttendance(ctx, att, skip); err != nil {
			return fmt.Errorf("failed to hydrate attendance %s: %w", att.ID, err)
		}
	}
	for _, g := range grades {
		if err := s.store.SaveGrade(ctx, g, skip); err != nil {
			return fmt.Errorf("failed to hydrate grade %s: %w", g.ID, err)
		}
	}

	s.logger.Printf("Fetched %d students, %d subjects, %d attendance, %d grades",
		len(students), len(subjects), len(attendance), len(grades))
	return nil
}

// RestoreFromCloud implements Syncer.RestoreFromCloud.
func (s *syncer) RestoreFromCloud(ctx context.Context) error {
	if err := s.store.ClearDeletedSubjects(ctx); err != nil {
		return err
	}
	return s.FetchAll(ctx)
}

// DeleteStudentCascade implements Syncer.DeleteStudentCascade.
//
// The local half always runs first: the device's own delete must not be
// held hostage by connectivity. A remote failure is returned so the caller
// can surface a retry, but local state is already consistent.
func (s *syncer) DeleteStudentCascade(ctx context.Context, studentID string) error {
	if err := s.store.DeleteGradesByStudent(ctx, studentID); err != nil {
		return err
	}
	if err := s.store.DeleteStudent(ctx, studentID); err != nil {
		return err
	}

	if err := s.client.DeleteStudent(ctx, studentID); err != nil {
		return fmt.Errorf("student removed locally, remote delete failed: %w", err)
	}
	s.logger.Printf("Deleted student %s and their grades", studentID)
	return nil
}

// DeleteSubjectLocal implements Syncer.DeleteSubjectLocal.
func (s *syncer) DeleteSubjectLocal(ctx context.Context, subjectID string) error {
	if err := s.store.DeleteSubject(ctx, subjectID); err != nil {
		return err
	}
	if err := s.store.AddDeletedSubject(ctx, subjectID); err != nil {
		return err
	}
	s.logger.Printf("Deleted subject %s locally (tombstoned)", subjectID)
	return nil
}

// DeleteSubjectEverywhere implements Syncer.DeleteSubjectEverywhere.
func (s *syncer) DeleteSubjectEverywhere(ctx context.Context, subjectID string) error {
	if err := s.store.DeleteSubject(ctx, subjectID); err != nil {
		return err
	}
	if err := s.client.DeleteSubject(ctx, subjectID); err != nil {
		return fmt.Errorf("subject removed locally, remote delete failed: %w", err)
	}
	s.logger.Printf("Deleted subject %s locally and remotely", subjectID)
	return nil
}

// WipeRemote implements Syncer.WipeRemote.
func (s *syncer) WipeRemote(ctx context.Context) error {
	if err := s.client.DeleteAllForPrincipal(ctx); err != nil {
		return err
	}
	s.logger.Printf("Wiped all remote data for principal")
	return nil
}

// WipeLocal implements Syncer.WipeLocal.
func (s *syncer) WipeLocal(ctx context.Context) error {
	if err := s.store.ClearAll(ctx); err != nil {
		return err
	}
	s.logger.Printf("Wiped all local data")
	return nil
}
