package record

import "math"

// DefaultWeights is the weight split used when a subject has no custom
// grade settings: 20% quizzes, 20% assignments, 40% exams, 20% projects.
var DefaultWeights = GradeWeights{
	Quiz:       0.20,
	Assignment: 0.20,
	Exam:       0.40,
	Project:    0.20,
}

// DefaultLabels are the display names used when a subject has no custom
// grade settings.
var DefaultLabels = GradeLabels{
	Quiz:       "Quiz",
	Assignment: "Assignment",
	Exam:       "Exam",
	Project:    "Project",
}

// round2 rounds to two decimal places.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// FinalGrade computes the weighted final percentage from the four category
// percentages, rounded to two decimals.
func FinalGrade(quiz, assignment, exam, project float64, weights GradeWeights) float64 {
	return round2(quiz*weights.Quiz + assignment*weights.Assignment +
		exam*weights.Exam + project*weights.Project)
}

// Remark maps a final grade to its descriptive remark.
func Remark(grade float64) string {
	switch {
	case grade >= 90:
		return "Outstanding"
	case grade >= 85:
		return "Very Satisfactory"
	case grade >= 80:
		return "Satisfactory"
	case grade >= 75:
		return "Fairly Satisfactory"
	default:
		return "Did Not Meet Expectations"
	}
}

// PassingGrade is the lowest final grade that counts as passed.
const PassingGrade = 75

// PassFail reports "Passed" or "Failed" for a final grade.
func PassFail(grade float64) string {
	if grade >= PassingGrade {
		return "Passed"
	}
	return "Failed"
}

// QuarterAverage averages the final grades of one quarter's records,
// rounded to two decimals. An empty slice yields 0.
func QuarterAverage(grades []Grade) float64 {
	if len(grades) == 0 {
		return 0
	}
	var sum float64
	for _, g := range grades {
		sum += g.FinalGrade
	}
	return round2(sum / float64(len(grades)))
}

// FinalRating averages per-quarter grades into a final rating, rounded to
// two decimals. An empty slice yields 0.
func FinalRating(quarterGrades []float64) float64 {
	if len(quarterGrades) == 0 {
		return 0
	}
	var sum float64
	for _, g := range quarterGrades {
		sum += g
	}
	return round2(sum / float64(len(quarterGrades)))
}

// CategoryPercent aggregates assessments for one student, subject, quarter,
// and category into a percentage: total score earned over total possible.
// Records for other students, subjects, quarters, or categories are ignored.
// Returns 0 when no matching assessments exist.
func CategoryPercent(assessments []Assessment, studentID, subjectID string, quarter int, category Category) float64 {
	var score, total float64
	for _, a := range assessments {
		if a.StudentID != studentID || a.SubjectID != subjectID {
			continue
		}
		if a.Quarter != quarter || a.Category != category {
			continue
		}
		score += a.Score
		total += a.Total
	}
	if total == 0 {
		return 0
	}
	return round2(score / total * 100)
}
