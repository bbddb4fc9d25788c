package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-completion/internal/course"
)

type CourseStore interface {
	Put(ctx context.Context, c course.Course) (course.Course, error)
	Get(ctx context.Context, id string) (course.Course, error)
}

// PUT /courses/{courseID}
func PutCourseHandler(store CourseStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c course.Course
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		c.ID = chi.URLParam(r, "courseID")
		saved, err := store.Put(r.Context(), c)
		if err != nil {
			writeError(w, log, err)
			return
		}
		log.Info("course saved", zap.String("course", saved.ID), zap.Int("questions", len(saved.Questions)))
		writeJSON(w, http.StatusOK, saved.Public())
	}
}

// GET /courses/{courseID}
func GetCourseHandler(store CourseStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := store.Get(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, c.Public())
	}
}
