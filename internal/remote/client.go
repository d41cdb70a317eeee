// Package remote implements the stateless remote sync client: uploads of
// individual records, full-collection downloads, and remote deletes, all
// scoped under the authenticated principal's namespace.
//
// The remote store is document-oriented: every record lives at
// principal/{uid}/{collection}/{id}. The production backend is a Turso
// database reached through the libsql driver; tests run the same code
// against an embedded SQLite file. Record bodies are stored as JSON with
// lifecycle timestamps normalized into native timestamp columns, so a
// record survives the round trip even if another client wrote malformed
// timestamp data into the body.
package remote

import (
	"context"

	"github.com/rollbook/rollbook/internal/record"
)

// Client is the remote transport used by the reconciliation orchestrator.
// It owns no state. Every operation requires an authenticated principal
// and fails with auth.ErrNotAuthenticated otherwise.
//
// Uploads are idempotent upserts keyed by record ID. Downloads read the
// full collection. Deletes of absent documents are no-ops.
type Client interface {
	UploadStudent(ctx context.Context, st record.Student) error
	UploadSubject(ctx context.Context, sub record.Subject) error
	UploadAttendance(ctx context.Context, att record.Attendance) error
	UploadGrade(ctx context.Context, g record.Grade) error

	FetchStudents(ctx context.Context) ([]record.Student, error)
	FetchSubjects(ctx context.Context) ([]record.Subject, error)
	FetchAttendance(ctx context.Context) ([]record.Attendance, error)
	FetchGrades(ctx context.Context) ([]record.Grade, error)

	// DeleteStudent removes the student document, deleting the
	// student's grade documents first so the remote cascade mirrors
	// the local one.
	DeleteStudent(ctx context.Context, id string) error
	DeleteSubject(ctx context.Context, id string) error
	DeleteGradesByStudent(ctx context.Context, studentID string) error

	// SaveProfile writes the principal's own profile document.
	SaveProfile(ctx context.Context, t record.Teacher) error

	// DeleteAllForPrincipal removes every record in every collection
	// plus the principal's profile document. Used by account deletion.
	DeleteAllForPrincipal(ctx context.Context) error
}
