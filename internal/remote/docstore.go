package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rollbook/rollbook/internal/auth"
	"github.com/rollbook/rollbook/internal/record"
)

// DocStore implements Client over a SQL document store. One table per
// collection, keyed (principal, id), with the record body as JSON and its
// lifecycle timestamps in native timestamp columns.
type DocStore struct {
	conn     *sql.DB
	provider auth.Provider
}

// Open connects to the remote document store. driver is "libsql" for a
// Turso DSN in production or "sqlite3" for an embedded file in tests; both
// speak database/sql. The caller must Close when done.
func Open(driver, dsn string, provider auth.Provider) (*DocStore, error) {
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote store: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to reach remote store: %w", err)
	}

	ds := &DocStore{conn: conn, provider: provider}
	if err := ds.initSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return ds, nil
}

// Close closes the connection.
func (c *DocStore) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close remote store: %w", err)
	}
	c.conn = nil
	return nil
}

// initSchema creates the collection tables if they don't exist. Idempotent.
func (c *DocStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		principal TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMP,
		updated_at TIMESTAMP,
		dob TIMESTAMP,
		PRIMARY KEY (principal, id)
	);

	CREATE TABLE IF NOT EXISTS subjects (
		principal TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMP,
		updated_at TIMESTAMP,
		PRIMARY KEY (principal, id)
	);

	CREATE TABLE IF NOT EXISTS attendance (
		principal TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		date TIMESTAMP,
		recorded_at TIMESTAMP,
		PRIMARY KEY (principal, id)
	);

	CREATE TABLE IF NOT EXISTS grades (
		principal TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		student_id TEXT NOT NULL,
		created_at TIMESTAMP,
		updated_at TIMESTAMP,
		PRIMARY KEY (principal, id)
	);

	CREATE TABLE IF NOT EXISTS principals (
		principal TEXT PRIMARY KEY,
		profile TEXT,
		updated_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_grades_student
	    ON grades(principal, student_id);
	`
	if _, err := c.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize remote schema: %w", err)
	}
	return nil
}

// principal resolves the authenticated principal. Its absence is a fatal
// precondition failure for the calling operation, never a silent no-op.
func (c *DocStore) principal() (string, error) {
	uid, err := c.provider.CurrentPrincipal()
	if err != nil {
		return "", fmt.Errorf("remote operation refused: %w", err)
	}
	return uid, nil
}

// timestampLayouts are the encodings a timestamp column may carry,
// depending on which driver and writer produced the row.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// scanTime converts a raw timestamp column value to a local time value,
// substituting fallback for missing or malformed data. Fetch sites scan
// timestamp columns as raw driver values; a corrupt cell must degrade to
// the fallback, never fail the row scan and abort the whole fetch.
func scanTime(v any, fallback time.Time) time.Time {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return fallback
		}
		return t
	case string:
		return parseTimestamp(t, fallback)
	case []byte:
		return parseTimestamp(string(t), fallback)
	case int64:
		return time.Unix(t, 0)
	default:
		return fallback
	}
}

func parseTimestamp(s string, fallback time.Time) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil && !t.IsZero() {
			return t
		}
	}
	return fallback
}

// scanTimePtr converts an optional timestamp column, returning nil for
// missing or malformed data.
func scanTimePtr(v any) *time.Time {
	if v == nil {
		return nil
	}
	t := scanTime(v, time.Time{})
	if t.IsZero() {
		return nil
	}
	return &t
}

// timePtrArg converts an optional time to a SQL argument.
func timePtrArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// UploadStudent implements Client.
func (c *DocStore) UploadStudent(ctx context.Context, st record.Student) error {
	uid, err := c.principal()
	if err != nil {
		return err
	}
	body, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal student %s: %w", st.ID, err)
	}

	query := `
	INSERT INTO students (principal, id, body, created_at, updated_at, dob)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(principal, id) DO UPDATE SET
		body = excluded.body,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		dob = excluded.dob
	`
	_, err = c.conn.ExecContext(ctx, query,
		uid, st.ID, string(body), st.CreatedAt, st.UpdatedAt, timePtrArg(st.DOB))
	if err != nil {
		return fmt.Errorf("failed to upload student %s: %w", st.ID, err)
	}
	return nil
}

// FetchStudents implements Client.
func (c *DocStore) FetchStudents(ctx context.Context) ([]record.Student, error) {
	uid, err := c.principal()
	if err != nil {
		return nil, err
	}

	rows, err := c.conn.QueryContext(ctx,
		"SELECT id, body, created_at, updated_at, dob FROM students WHERE principal = ?", uid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch students: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var students []record.Student
	for rows.Next() {
		var (
			id, body                  string
			createdAt, updatedAt, dob any
		)
		if err := rows.Scan(&id, &body, &createdAt, &updatedAt, &dob); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}

		var st record.Student
		if err := json.Unmarshal([]byte(body), &st); err != nil {
			return nil, fmt.Errorf("failed to parse student %s: %w", id, err)
		}
		st.ID = id
		st.CreatedAt = scanTime(createdAt, now)
		st.UpdatedAt = scanTime(updatedAt, now)
		st.DOB = scanTimePtr(dob)
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating students: %w", err)
	}
	return students, nil
}

// UploadSubject implements Client.
func (c *DocStore) UploadSubject(ctx context.Context, sub record.Subject) error {
	uid, err := c.principal()
	if err != nil {
		return err
	}
	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal subject %s: %w", sub.ID, err)
	}

	query := `
	INSERT INTO subjects (principal, id, body, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(principal, id) DO UPDATE SET
		body = excluded.body,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at
	`
	_, err = c.conn.ExecContext(ctx, query,
		uid, sub.ID, string(body), sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upload subject %s: %w", sub.ID, err)
	}
	return nil
}

// FetchSubjects implements Client.
func (c *DocStore) FetchSubjects(ctx context.Context) ([]record.Subject, error) {
	uid, err := c.principal()
	if err != nil {
		return nil, err
	}

	rows, err := c.conn.QueryContext(ctx,
		"SELECT id, body, created_at, updated_at FROM subjects WHERE principal = ?", uid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subjects: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var subjects []record.Subject
	for rows.Next() {
		var (
			id, body             string
			createdAt, updatedAt any
		)
		if err := rows.Scan(&id, &body, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}

		var sub record.Subject
		if err := json.Unmarshal([]byte(body), &sub); err != nil {
			return nil, fmt.Errorf("failed to parse subject %s: %w", id, err)
		}
		sub.ID = id
		sub.CreatedAt = scanTime(createdAt, now)
		sub.UpdatedAt = scanTime(updatedAt, now)
		subjects = append(subjects, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subjects: %w", err)
	}
	return subjects, nil
}

// UploadAttendance implements Client.
func (c *DocStore) UploadAttendance(ctx context.Context, att record.Attendance) error {
	uid, err := c.principal()
	if err != nil {
		return err
	}
	body, err := json.Marshal(att)
	if err != nil {
		return fmt.Errorf("failed to marshal attendance %s: %w", att.ID, err)
	}

	query := `
	INSERT INTO attendance (principal, id, body, date, recorded_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(principal, id) DO UPDATE SET
		body = excluded.body,
		date = excluded.date,
		recorded_at = excluded.recorded_at
	`
	_, err = c.conn.ExecContext(ctx, query,
		uid, att.ID, string(body), att.Date, att.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to upload attendance %s: %w", att.ID, err)
	}
	return nil
}

// FetchAttendance implements Client.
func (c *DocStore) FetchAttendance(ctx context.Context) ([]record.Attendance, error) {
	uid, err := c.principal()
	if err != nil {
		return nil, err
	}

	rows, err := c.conn.QueryContext(ctx,
		"SELECT id, body, date, recorded_at FROM attendance WHERE principal = ?", uid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attendance: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var records []record.Attendance
	for rows.Next() {
		var (
			id, body         string
			date, recordedAt any
		)
		if err := rows.Scan(&id, &body, &date, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}

		var att record.Attendance
		if err := json.Unmarshal([]byte(body), &att); err != nil {
			return nil, fmt.Errorf("failed to parse attendance %s: %w", id, err)
		}
		att.ID = id
		att.Date = scanTime(date, now)
		att.Timestamp = scanTime(recordedAt, now)
		records = append(records, att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance: %w", err)
	}
	return records, nil
}

// UploadGrade implements Client.
func (c *DocStore) UploadGrade(ctx context.Context, g record.Grade) error {
	uid, err := c.principal()
	if err != nil {
		return err
	}
	body, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal grade %s: %w", g.ID, err)
	}

	query := `
	INSERT INTO grades (principal, id, body, student_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(principal, id) DO UPDATE SET
		body = excluded.body,
		student_id = excluded.student_id,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at
	`
	_, err = c.conn.ExecContext(ctx, query,
		uid, g.ID, string(body), g.StudentID, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upload grade %s: %w", g.ID, err)
	}
	return nil
}

// FetchGrades implements Client.
func (c *DocStore) FetchGrades(ctx context.Context) ([]record.Grade, error) {
	uid, err := c.principal()
	if err != nil {
		return nil, err
	}

	rows, err := c.conn.QueryContext(ctx,
		"SELECT id, body, created_at, updated_at FROM grades WHERE principal = ?", uid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch grades: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var grades []record.Grade
	for rows.Next() {
		var (
			id, body             string
			createdAt, updatedAt any
		)
		if err := rows.Scan(&id, &body, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan grade: %w", err)
		}

		var g record.Grade
		if err := json.Unmarshal([]byte(body), &g); err != nil {
			return nil, fmt.Errorf("failed to parse grade %s: %w", id, err)
		}
		g.ID = id
		g.CreatedAt = scanTime(createdAt, now)
		g.UpdatedAt = scanTime(updatedAt, now)
		grades = append(grades, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grades: %w", err)
	}
	return grades, nil
}

// DeleteGradesByStudent implements Client.
func (c *DocStore) DeleteGradesByStudent(ctx context.Context, studentID string) error {
	uid, err := c.principal()
	if err != nil {
		return err
	}
	_, err = c.conn.ExecContext(ctx,
		"DELETE FROM grades WHERE principal = ? AND student_id = ?", uid, studentID)
	if err != nil {
		return fmt.Errorf("failed to delete grades for student %s: %w", studentID, err)
	}
	return nil
}

// DeleteStudent implements Client. The student's grade documents go first
// so a failure partway leaves no orphaned grades behind a deleted student.
func (c *DocStore) DeleteStudent(ctx context.Context, id string) error {
	if err := c.DeleteGradesByStudent(ctx, id); err != nil {
		return err
	}

	uid, err := c.principal()
	if err != nil {
		return err
	}
	_, err = c.conn.ExecContext(ctx,
		"DELETE FROM students WHERE principal = ? AND id = ?", uid, id)
	if err != nil {
		return fmt.Errorf("failed to delete student %s: %w", id, err)
	}
	return nil
}

// DeleteSubject implements Client.
func (c *DocStore) DeleteSubject(ctx context.Context, id string) error {
	uid, err := c.principal()
	if err != nil {
		return err
	}
	_, err = c.conn.ExecContext(ctx,
		"DELETE FROM subjects WHERE principal = ? AND id = ?", uid, id)
	if err != nil {
		return fmt.Errorf("failed to delete subject %s: %w", id, err)
	}
	return nil
}

// SaveProfile implements Client.
func (c *DocStore) SaveProfile(ctx context.Context, t record.Teacher) error {
	uid, err := c.principal()
	if err != nil {
		return err
	}
	profile, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	query := `
	INSERT INTO principals (principal, profile, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(principal) DO UPDATE SET
		profile = excluded.profile,
		updated_at = excluded.updated_at
	`
	if _, err := c.conn.ExecContext(ctx, query, uid, string(profile), time.Now()); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// DeleteAllForPrincipal implements Client.
func (c *DocStore) DeleteAllForPrincipal(ctx context.Context) error {
	uid, err := c.principal()
	if err != nil {
		return err
	}

	for _, table := range []string{"students", "subjects", "attendance", "grades"} {
		query := fmt.Sprintf("DELETE FROM %s WHERE principal = ?", table)
		if _, err := c.conn.ExecContext(ctx, query, uid); err != nil {
			return fmt.Errorf("failed to wipe %s: %w", table, err)
		}
	}

	if _, err := c.conn.ExecContext(ctx,
		"DELETE FROM principals WHERE principal = ?", uid); err != nil {
		return fmt.Errorf("failed to delete principal profile: %w", err)
	}
	return nil
}
