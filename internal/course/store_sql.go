package course

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-completion/internal/completion"
	"github.com/mind-engage/mindengage-completion/internal/grading"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Put validates and upserts a course.
func (s *SQLStore) Put(ctx context.Context, c Course) (Course, error) {
	if err := c.Validate(); err != nil {
		return Course{}, err
	}
	cj, err := json.Marshal(c.Config)
	if err != nil {
		return Course{}, err
	}
	qs := c.Questions
	if qs == nil {
		qs = grading.QuestionBank{}
	}
	qj, err := json.Marshal(qs)
	if err != nil {
		return Course{}, err
	}
	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx, `INSERT INTO courses (id,title,config_json,questions_json,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, config_json=EXCLUDED.config_json,
			questions_json=EXCLUDED.questions_json, updated_at=EXCLUDED.updated_at`,
		c.ID, c.Title, string(cj), string(qj), now, now)
	if err != nil {
		return Course{}, fmt.Errorf("put course %s: %w", c.ID, err)
	}
	return s.Get(ctx, c.ID)
}

// Get returns the full course including answer keys.
func (s *SQLStore) Get(ctx context.Context, id string) (Course, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,config_json,questions_json,created_at,updated_at FROM courses WHERE id=$1`, id)
	var c Course
	var cjson, qjson string
	if err := row.Scan(&c.ID, &c.Title, &cjson, &qjson, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Course{}, err
	}
	if err := json.Unmarshal([]byte(cjson), &c.Config); err != nil {
		return Course{}, fmt.Errorf("course %s config: %w", id, err)
	}
	if err := json.Unmarshal([]byte(qjson), &c.Questions); err != nil {
		return Course{}, fmt.Errorf("course %s questions: %w", id, err)
	}
	return c, nil
}

func (s *SQLStore) CourseConfig(ctx context.Context, courseID string) (completion.CourseConfig, error) {
	row := s.db.QueryRowContext(ctx, `SELECT config_json FROM courses WHERE id=$1`, courseID)
	var cjson string
	if err := row.Scan(&cjson); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return completion.CourseConfig{}, fmt.Errorf("%w: %s", ErrNotFound, courseID)
		}
		return completion.CourseConfig{}, err
	}
	var cfg completion.CourseConfig
	if err := json.Unmarshal([]byte(cjson), &cfg); err != nil {
		return completion.CourseConfig{}, fmt.Errorf("course %s config: %w", courseID, err)
	}
	return cfg, nil
}

func (s *SQLStore) QuestionBank(ctx context.Context, courseID string) (grading.QuestionBank, error) {
	c, err := s.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return c.Questions, nil
}
