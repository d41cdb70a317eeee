package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rollbook/rollbook/internal/record"
	"github.com/rollbook/rollbook/internal/store"
)

var studentCmd = &cobra.Command{
	Use:   "student",
	Short: "Manage students",
}

var (
	studentSubject string
	studentNo      string
	studentSection string
	studentYear    string
)

var studentAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a student to a subject",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st, closeStore, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer closeStore()

		now := time.Now()
		student := record.Student{
			ID:        record.NewID(),
			Name:      args[0],
			StudentNo: studentNo,
			SubjectID: studentSubject,
			Section:   studentSection,
			YearLevel: studentYear,
			CreatedAt: now,
			UpdatedAt: now,
		}
		student.QRCode = student.ID

		if err := st.SaveStudent(cmd.Context(), student, store.SaveOptions{}); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving student: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added student %s (%s)\n", student.Name, student.ID)
	},
}

var studentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List students",
	Run: func(cmd *cobra.Command, args []string) {
		st, closeStore, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer closeStore()

		students := st.Students(cmd.Context())
		if len(students) == 0 {
			fmt.Println("No students")
			return
		}
		for _, s := range students {
			if studentSubject != "" && s.SubjectID != studentSubject {
				continue
			}
			fmt.Printf("  %-16s %-24s subject=%s\n", s.ID, s.Name, s.SubjectID)
		}
	},
}

var studentRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a student and their grades, locally and remotely",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		syncer, _, cleanup, err := openSyncer()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		if err := syncer.DeleteStudentCascade(cmd.Context(), args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting student: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted student %s\n", args[0])
	},
}

var subjectCmd = &cobra.Command{
	Use:   "subject",
	Short: "Manage subjects",
}

var subjectTeacher string

var subjectAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a subject",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st, closeStore, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer closeStore()

		now := time.Now()
		subject := record.Subject{
			ID:        record.NewID(),
			Name:      args[0],
			TeacherID: subjectTeacher,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := st.SaveSubject(cmd.Context(), subject, store.SaveOptions{}); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving subject: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added subject %s (%s)\n", subject.Name, subject.ID)
	},
}

var subjectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subjects",
	Run: func(cmd *cobra.Command, args []string) {
		st, closeStore, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer closeStore()

		subjects := st.Subjects(cmd.Context())
		if len(subjects) == 0 {
			fmt.Println("No subjects")
			return
		}
		for _, s := range subjects {
			fmt.Printf("  %-16s %s\n", s.ID, s.Name)
		}
	},
}

var subjectRmEverywhere bool

var subjectRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a subject from this device (or everywhere with --everywhere)",
	Long: `Delete a subject. By default the deletion is local-only and the subject
is tombstoned so a later fetch does not bring it back; 'rollbook restore'
undoes that. With --everywhere the remote copy is deleted too.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		syncer, _, cleanup, err := openSyncer()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		if subjectRmEverywhere {
			err = syncer.DeleteSubjectEverywhere(cmd.Context(), args[0])
		} else {
			err = syncer.DeleteSubjectLocal(cmd.Context(), args[0])
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting subject: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted subject %s\n", args[0])
	},
}

var (
	attendStudent string
	attendSubject string
	attendStatus  string
)

var attendCmd = &cobra.Command{
	Use:   "attend",
	Short: "Mark a student's attendance for today",
	Run: func(cmd *cobra.Command, args []string) {
		st, closeStore, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer closeStore()

		now := time.Now()
		att := record.Attendance{
			ID:        record.NewID(),
			StudentID: attendStudent,
			SubjectID: attendSubject,
			Date:      now,
			Status:    record.AttendanceStatus(attendStatus),
			Timestamp: now,
		}

		if err := st.MarkAttendance(cmd.Context(), att); err != nil {
			fmt.Fprintf(os.Stderr, "Error marking attendance: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Marked %s %s\n", attendStudent, attendStatus)
	},
}

var (
	gradeStudent string
	gradeSubject string
	gradeQuarter int
	gradeScores  []float64
)

var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Set a student's quarter grade from category percentages",
	Long: `Set the final grade for one quarter. The four category percentages
(quiz, assignment, exam, project) are combined using the subject's weights,
or the default 20/20/40/20 split when the subject has none.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(gradeScores) != 4 {
			fmt.Fprintln(os.Stderr, "Error: --scores needs exactly four values: quiz,assignment,exam,project")
			os.Exit(1)
		}

		st, closeStore, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer closeStore()

		ctx := cmd.Context()
		weights := record.DefaultWeights
		for _, sub := range st.Subjects(ctx) {
			if sub.ID == gradeSubject && sub.GradeSettings != nil {
				weights = sub.GradeSettings.Weights
				break
			}
		}

		now := time.Now()
		g := record.Grade{
			ID:         record.GradeID(gradeStudent, gradeSubject, gradeQuarter),
			StudentID:  gradeStudent,
			SubjectID:  gradeSubject,
			Quarter:    gradeQuarter,
			Quiz:       gradeScores[0],
			Assignment: gradeScores[1],
			Exam:       gradeScores[2],
			Project:    gradeScores[3],
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		g.FinalGrade = record.FinalGrade(g.Quiz, g.Assignment, g.Exam, g.Project, weights)

		if err := st.SaveGrade(ctx, g, store.SaveOptions{}); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving grade: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Q%d final grade: %.2f (%s)\n", gradeQuarter, g.FinalGrade, record.Remark(g.FinalGrade))
	},
}

func init() {
	studentAddCmd.Flags().StringVar(&studentSubject, "subject", "", "owning subject ID (required)")
	studentAddCmd.Flags().StringVar(&studentNo, "number", "", "school-issued student number")
	studentAddCmd.Flags().StringVar(&studentSection, "section", "", "section")
	studentAddCmd.Flags().StringVar(&studentYear, "year", "", "year level")
	_ = studentAddCmd.MarkFlagRequired("subject")
	studentListCmd.Flags().StringVar(&studentSubject, "subject", "", "filter by subject ID")
	studentCmd.AddCommand(studentAddCmd, studentListCmd, studentRmCmd)

	subjectAddCmd.Flags().StringVar(&subjectTeacher, "teacher", "", "teacher ID")
	subjectRmCmd.Flags().BoolVar(&subjectRmEverywhere, "everywhere", false, "also delete the remote copy")
	subjectCmd.AddCommand(subjectAddCmd, subjectListCmd, subjectRmCmd)

	attendCmd.Flags().StringVar(&attendStudent, "student", "", "student ID (required)")
	attendCmd.Flags().StringVar(&attendSubject, "subject", "", "subject ID (required)")
	attendCmd.Flags().StringVar(&attendStatus, "status", string(record.StatusPresent), "Present, Late, or Absent")
	_ = attendCmd.MarkFlagRequired("student")
	_ = attendCmd.MarkFlagRequired("subject")

	gradeCmd.Flags().StringVar(&gradeStudent, "student", "", "student ID (required)")
	gradeCmd.Flags().StringVar(&gradeSubject, "subject", "", "subject ID (required)")
	gradeCmd.Flags().IntVar(&gradeQuarter, "quarter", 1, "quarter (1-4)")
	gradeCmd.Flags().Float64SliceVar(&gradeScores, "scores", nil, "quiz,assignment,exam,project percentages")
	_ = gradeCmd.MarkFlagRequired("student")
	_ = gradeCmd.MarkFlagRequired("subject")
	_ = gradeCmd.MarkFlagRequired("scores")

	rootCmd.AddCommand(studentCmd, subjectCmd, attendCmd, gradeCmd)
}
