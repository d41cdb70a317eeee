package record

import (
	"fmt"
	"math"
)

// weightTolerance absorbs float error when checking that the four weight
// fractions sum to 1.0 (e.g. 0.2+0.2+0.4+0.2 entered as percentages).
const weightTolerance = 1e-6

// Validate checks required student fields.
func (s Student) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.SubjectID == "" {
		return fmt.Errorf("subjectId is required")
	}
	if s.Gender != "" && s.Gender != "Male" && s.Gender != "Female" {
		return fmt.Errorf("gender must be Male or Female (got %q)", s.Gender)
	}
	return nil
}

// Validate checks required subject fields and, when grade settings are
// present, that the weight fractions sum to 1.0.
func (s Subject) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.GradeSettings != nil {
		if err := s.GradeSettings.Weights.Validate(); err != nil {
			return fmt.Errorf("grade settings: %w", err)
		}
	}
	return nil
}

// Validate checks that the weight fractions are non-negative and sum to 1.0.
func (w GradeWeights) Validate() error {
	for _, f := range []float64{w.Quiz, w.Assignment, w.Exam, w.Project} {
		if f < 0 {
			return fmt.Errorf("weights must be non-negative (got %v)", f)
		}
	}
	sum := w.Quiz + w.Assignment + w.Exam + w.Project
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("weights must sum to 1.0 (got %v)", sum)
	}
	return nil
}

// Validate checks required attendance fields.
func (a Attendance) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("id is required")
	}
	if a.StudentID == "" {
		return fmt.Errorf("studentId is required")
	}
	if a.SubjectID == "" {
		return fmt.Errorf("subjectId is required")
	}
	if !a.Status.Valid() {
		return fmt.Errorf("status must be Present, Late, or Absent (got %q)", a.Status)
	}
	if a.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	return nil
}

// Validate checks required grade fields.
func (g Grade) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("id is required")
	}
	if g.StudentID == "" {
		return fmt.Errorf("studentId is required")
	}
	if g.SubjectID == "" {
		return fmt.Errorf("subjectId is required")
	}
	if g.Quarter < 1 || g.Quarter > 4 {
		return fmt.Errorf("quarter must be between 1 and 4 (got %d)", g.Quarter)
	}
	return nil
}

// Validate checks required assessment fields.
func (a Assessment) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("id is required")
	}
	if a.StudentID == "" {
		return fmt.Errorf("studentId is required")
	}
	if a.SubjectID == "" {
		return fmt.Errorf("subjectId is required")
	}
	if a.Quarter < 1 || a.Quarter > 4 {
		return fmt.Errorf("quarter must be between 1 and 4 (got %d)", a.Quarter)
	}
	if !a.Category.Valid() {
		return fmt.Errorf("category must be one of quiz, assignment, exam, project (got %q)", a.Category)
	}
	if a.Total <= 0 {
		return fmt.Errorf("total must be positive (got %v)", a.Total)
	}
	if a.Score < 0 || a.Score > a.Total {
		return fmt.Errorf("score must be between 0 and total (got %v/%v)", a.Score, a.Total)
	}
	return nil
}
