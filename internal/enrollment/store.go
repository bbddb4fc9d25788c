package enrollment

import (
	"context"
	"errors"

	"github.com/mind-engage/mindengage-completion/internal/completion"
)

var (
	ErrNotFound = errors.New("enrollment not found")
	// ErrStaleWrite means another writer bumped the version between read and update.
	ErrStaleWrite = errors.New("enrollment changed concurrently")
	// ErrNoSubmissionTime rejects a quiz submission whose replays could not be recognized.
	ErrNoSubmissionTime = errors.New("submitted_at required")
)

// Store persists enrollments keyed by (student, course).
type Store interface {
	Get(ctx context.Context, studentID, courseID string) (completion.Enrollment, error)
	// Create inserts e unless the pair is already enrolled, and returns the stored record.
	Create(ctx context.Context, e completion.Enrollment) (completion.Enrollment, error)
	// Update writes e iff the stored version equals expectedVersion. The returned
	// record carries the bumped version.
	Update(ctx context.Context, e completion.Enrollment, expectedVersion int64) (completion.Enrollment, error)
}

// Key names one enrollment in locks, logs and the audit trail.
func Key(studentID, courseID string) string {
	return courseID + "/" + studentID
}
