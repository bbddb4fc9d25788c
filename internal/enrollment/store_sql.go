package enrollment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-completion/internal/completion"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const selectEnrollment = `SELECT id,student_id,course_id,status,best_score,quiz_score,scorm_score,
	current_attempt,completed_at,submission_keys_json,version,created_at,updated_at
	FROM enrollments`

func (s *SQLStore) Get(ctx context.Context, studentID, courseID string) (completion.Enrollment, error) {
	row := s.db.QueryRowContext(ctx, selectEnrollment+` WHERE student_id=$1 AND course_id=$2`, studentID, courseID)
	e, err := scanEnrollment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return completion.Enrollment{}, fmt.Errorf("%w: %s", ErrNotFound, Key(studentID, courseID))
	}
	return e, err
}

func (s *SQLStore) Create(ctx context.Context, e completion.Enrollment) (completion.Enrollment, error) {
	kj, err := json.Marshal(keysOrEmpty(e.SubmissionKeys))
	if err != nil {
		return completion.Enrollment{}, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO enrollments
		(id,student_id,course_id,status,best_score,quiz_score,scorm_score,current_attempt,completed_at,
		 submission_keys_json,version,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,1,$11,$12)
		ON CONFLICT (student_id, course_id) DO NOTHING`,
		e.ID, e.StudentID, e.CourseID, string(e.Status),
		nullInt(e.BestScore), nullInt(e.QuizScore), nullInt(e.ScormScore),
		e.CurrentAttempt, nullUnix(e.CompletedAt), string(kj),
		e.CreatedAt.Unix(), e.UpdatedAt.Unix())
	if err != nil {
		return completion.Enrollment{}, fmt.Errorf("create enrollment %s: %w", Key(e.StudentID, e.CourseID), err)
	}
	return s.Get(ctx, e.StudentID, e.CourseID)
}

func (s *SQLStore) Update(ctx context.Context, e completion.Enrollment, expectedVersion int64) (completion.Enrollment, error) {
	kj, err := json.Marshal(keysOrEmpty(e.SubmissionKeys))
	if err != nil {
		return completion.Enrollment{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE enrollments
		SET status=$1, best_score=$2, quiz_score=$3, scorm_score=$4, current_attempt=$5,
		    completed_at=$6, submission_keys_json=$7, updated_at=$8, version=version+1
		WHERE student_id=$9 AND course_id=$10 AND version=$11`,
		string(e.Status), nullInt(e.BestScore), nullInt(e.QuizScore), nullInt(e.ScormScore),
		e.CurrentAttempt, nullUnix(e.CompletedAt), string(kj), e.UpdatedAt.Unix(),
		e.StudentID, e.CourseID, expectedVersion)
	if err != nil {
		return completion.Enrollment{}, fmt.Errorf("update enrollment %s: %w", Key(e.StudentID, e.CourseID), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return completion.Enrollment{}, err
	}
	if n == 0 {
		// either gone or someone else won the race
		if _, gerr := s.Get(ctx, e.StudentID, e.CourseID); gerr != nil {
			return completion.Enrollment{}, gerr
		}
		return completion.Enrollment{}, fmt.Errorf("%w: %s expected version %d", ErrStaleWrite, Key(e.StudentID, e.CourseID), expectedVersion)
	}
	e.Version = expectedVersion + 1
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEnrollment(row scanner) (completion.Enrollment, error) {
	var (
		e                    completion.Enrollment
		status, kjson        string
		best, quiz, scormPct sql.NullInt64
		completedAt          sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&e.ID, &e.StudentID, &e.CourseID, &status, &best, &quiz, &scormPct,
		&e.CurrentAttempt, &completedAt, &kjson, &e.Version, &createdAt, &updatedAt); err != nil {
		return completion.Enrollment{}, err
	}
	e.Status = completion.Status(status)
	e.BestScore = intPtr(best)
	e.QuizScore = intPtr(quiz)
	e.ScormScore = intPtr(scormPct)
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0).UTC()
		e.CompletedAt = &t
	}
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	e.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if err := json.Unmarshal([]byte(kjson), &e.SubmissionKeys); err != nil {
		return completion.Enrollment{}, fmt.Errorf("enrollment %s submission keys: %w", e.ID, err)
	}
	return e, nil
}

func keysOrEmpty(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	return keys
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
