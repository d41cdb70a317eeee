// Package record defines the typed collections managed by the local store
// and synchronized with the remote document store: students, subjects,
// attendance, grades, and assessments.
//
// Records are value types. They never hold live references to each other,
// only ID-based relations (a Student points at its Subject by SubjectID).
// Referential integrity is the caller's responsibility.
package record

import "time"

// Collection names used as persistence keys locally and as document
// collection segments remotely.
const (
	CollectionStudents    = "students"
	CollectionSubjects    = "subjects"
	CollectionAttendance  = "attendance"
	CollectionGrades      = "grades"
	CollectionAssessments = "assessments"
)

// SyncedCollections lists the collections replicated to the remote store,
// in the order sync passes visit them. Assessments are local-only.
var SyncedCollections = []string{
	CollectionStudents,
	CollectionSubjects,
	CollectionAttendance,
	CollectionGrades,
}

// Student is a single enrolled student, owned by one subject.
// SubjectID must reference an existing Subject at creation time; storage
// does not enforce this.
type Student struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StudentNo string `json:"studentId"` // school-issued number, not the record ID
	SubjectID string `json:"subjectId"`

	// QRCode is an opaque payload rendered by the UI layer. Storage and
	// sync carry it through untouched.
	QRCode string `json:"qrCode"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	FirstName  string     `json:"firstName,omitempty"`
	MiddleName string     `json:"middleName,omitempty"`
	LastName   string     `json:"lastName,omitempty"`
	Gender     string     `json:"gender,omitempty"` // Male or Female
	DOB        *time.Time `json:"dob,omitempty"`
	Section    string     `json:"section,omitempty"`
	YearLevel  string     `json:"yearLevel,omitempty"` // e.g. "7" through "12"
}

// Subject is a class taught by one teacher.
type Subject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TeacherID string    `json:"teacherId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// GradeSettings customizes category labels and weights for this
	// subject. Nil means DefaultWeights/DefaultLabels apply.
	GradeSettings *GradeSettings `json:"gradeSettings,omitempty"`
}

// AttendanceStatus is the outcome recorded for a student on one day.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "Present"
	StatusLate    AttendanceStatus = "Late"
	StatusAbsent  AttendanceStatus = "Absent"
)

// Valid reports whether the status is one of the three known values.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent:
		return true
	}
	return false
}

// Attendance records one student's status for one calendar day in one
// subject. At most one record should exist per (student, subject, day);
// callers enforce this with a lookup before insert.
type Attendance struct {
	ID        string           `json:"id"`
	StudentID string           `json:"studentId"`
	SubjectID string           `json:"subjectId"`
	Date      time.Time        `json:"date"`
	Status    AttendanceStatus `json:"status"`
	Timestamp time.Time        `json:"timestamp"` // when the status was captured
}

// SameDay reports whether two instants fall on the same calendar day
// in the local time zone.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Grade holds one student's category percentages and final grade for a
// quarter of a subject.
type Grade struct {
	ID        string `json:"id"`
	StudentID string `json:"studentId"`
	SubjectID string `json:"subjectId"`
	Quarter   int    `json:"quarter"` // 1-4

	Quiz       float64 `json:"quiz"`
	Assignment float64 `json:"assignment"`
	Exam       float64 `json:"exam"`
	Project    float64 `json:"project"`
	FinalGrade float64 `json:"finalGrade,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Category identifies one of the four grading categories.
type Category string

const (
	CategoryQuiz       Category = "quiz"
	CategoryAssignment Category = "assignment"
	CategoryExam       Category = "exam"
	CategoryProject    Category = "project"
)

// Categories lists the four categories in canonical order.
var Categories = []Category{CategoryQuiz, CategoryAssignment, CategoryExam, CategoryProject}

// Valid reports whether the category is one of the four known values.
func (c Category) Valid() bool {
	switch c {
	case CategoryQuiz, CategoryAssignment, CategoryExam, CategoryProject:
		return true
	}
	return false
}

// Assessment is a single scored item (a quiz, an exam paper, a project)
// that feeds into a category percentage for one quarter.
type Assessment struct {
	ID        string    `json:"id"`
	StudentID string    `json:"studentId"`
	SubjectID string    `json:"subjectId"`
	Quarter   int       `json:"quarter"`
	Date      time.Time `json:"date"`
	Category  Category  `json:"category"`
	Title     string    `json:"title"`
	Score     float64   `json:"score"`
	Total     float64   `json:"total"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GradeWeights are the four category weight fractions. When present on a
// subject they must sum to 1.0; this is enforced at the editing boundary.
type GradeWeights struct {
	Quiz       float64 `json:"quiz"`
	Assignment float64 `json:"assignment"`
	Exam       float64 `json:"exam"`
	Project    float64 `json:"project"`
}

// GradeLabels are display names for the four categories.
type GradeLabels struct {
	Quiz       string `json:"quiz"`
	Assignment string `json:"assignment"`
	Exam       string `json:"exam"`
	Project    string `json:"project"`
}

// GradeSettings pairs labels with weight fractions for one subject.
type GradeSettings struct {
	Labels  GradeLabels  `json:"labels"`
	Weights GradeWeights `json:"weights"`
}

// Teacher is the remote principal's profile document. It is written on
// account creation and removed by the full remote wipe; it is not part of
// the synced collections.
type Teacher struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
