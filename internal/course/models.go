package course

import (
	"errors"

	"github.com/mind-engage/mindengage-completion/internal/completion"
	"github.com/mind-engage/mindengage-completion/internal/grading"
)

var ErrNotFound = errors.New("course not found")

// Course is the catalog entry the completion engine reads. Config and
// Questions are owned here; everything downstream treats them as read-only.
type Course struct {
	ID        string                  `json:"id"`
	Title     string                  `json:"title"`
	Config    completion.CourseConfig `json:"config"`
	Questions grading.QuestionBank    `json:"questions"`

	CreatedAt int64 `json:"created_at,omitempty"`
	UpdatedAt int64 `json:"updated_at,omitempty"`
}

// Validate rejects a course that the scorer or the gate could not work with.
func (c Course) Validate() error {
	if c.ID == "" {
		return errors.New("course id required")
	}
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.Config.QuizWeight == 0 && len(c.Questions) == 0 {
		// SCORM-only course
		return nil
	}
	return c.Questions.Validate()
}

// Public strips answer keys for learners.
func (c Course) Public() Course {
	c.Questions = c.Questions.WithoutAnswers()
	return c
}
