package record

// RecordID returns the student's unique ID.
func (s Student) RecordID() string { return s.ID }

// RecordID returns the subject's unique ID.
func (s Subject) RecordID() string { return s.ID }

// RecordID returns the attendance record's unique ID.
func (a Attendance) RecordID() string { return a.ID }

// RecordID returns the grade's unique ID.
func (g Grade) RecordID() string { return g.ID }

// RecordID returns the assessment's unique ID.
func (a Assessment) RecordID() string { return a.ID }
