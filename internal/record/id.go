package record

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// NewID generates a unique record ID: millisecond timestamp in base 36
// followed by a random suffix. Collision probability is treated as
// negligible for a single-device writer.
func NewID() string {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing is effectively unreachable; fall back to
		// the timestamp alone rather than panic in a write path.
		return strconv.FormatInt(time.Now().UnixMilli(), 36)
	}
	return strconv.FormatInt(time.Now().UnixMilli(), 36) + hex.EncodeToString(buf[:])
}

// GradeID returns the canonical deterministic grade identity for one
// student's quarter in a subject: {studentId}-{subjectId}-q{quarter}.
//
// This is the single ID scheme for quarter grades. Older data written with
// random IDs still round-trips through storage and sync, but new grade
// writes should always use this form so a quarter's final grade is
// overwritten in place instead of duplicated.
func GradeID(studentID, subjectID string, quarter int) string {
	return fmt.Sprintf("%s-%s-q%d", studentID, subjectID, quarter)
}
