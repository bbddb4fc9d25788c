package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authmw "github.com/mind-engage/mindengage-completion/internal/auth/middleware"
	"github.com/mind-engage/mindengage-completion/internal/certificate"
	"github.com/mind-engage/mindengage-completion/internal/completion"
	"github.com/mind-engage/mindengage-completion/internal/enrollment"
	"github.com/mind-engage/mindengage-completion/internal/grading"
	"github.com/mind-engage/mindengage-completion/internal/scorm"
)

const maxRuntimePayload = 1 << 20

type EnrollmentService interface {
	Enroll(ctx context.Context, studentID, courseID string) (completion.Enrollment, error)
	Get(ctx context.Context, studentID, courseID string) (completion.Enrollment, error)
	SubmitQuiz(ctx context.Context, sub grading.Submission) (enrollment.QuizResult, error)
	ReportScorm(ctx context.Context, studentID, courseID string, raw []byte) (enrollment.ScormResult, error)
	Override(ctx context.Context, studentID, courseID string, score int, actor, reason string) (completion.Outcome, error)
	Recheck(ctx context.Context, studentID, courseID string) (completion.Outcome, error)
	Eligibility(ctx context.Context, studentID, courseID string) (certificate.Eligibility, error)
}

func ids(r *http.Request) (studentID, courseID string) {
	return chi.URLParam(r, "studentID"), chi.URLParam(r, "courseID")
}

// POST /courses/{courseID}/enrollments  { "student_id": "..." }
func EnrollHandler(svc EnrollmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StudentID string `json:"student_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.StudentID) == "" {
			http.Error(w, "student_id required", http.StatusBadRequest)
			return
		}
		e, err := svc.Enroll(r.Context(), strings.TrimSpace(req.StudentID), chi.URLParam(r, "courseID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

// GET /courses/{courseID}/enrollments/{studentID}
func GetEnrollmentHandler(svc EnrollmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		student, courseID := ids(r)
		e, err := svc.Get(r.Context(), student, courseID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// POST .../{studentID}/quiz  { "submitted_at": RFC3339 (required), "answers": {qid: [optionID...]} }
func SubmitQuizHandler(svc EnrollmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SubmittedAt time.Time           `json:"submitted_at"`
			Answers     map[string][]string `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.SubmittedAt.IsZero() {
			// submitted_at is the attempt identity
			http.Error(w, "submitted_at required", http.StatusBadRequest)
			return
		}
		student, courseID := ids(r)
		res, err := svc.SubmitQuiz(r.Context(), grading.Submission{
			StudentID: student, CourseID: courseID, Answers: req.Answers, SubmittedAt: req.SubmittedAt,
		})
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Score grading.Result `json:"score"`
			outcomeResponse
		}{res.Score, toOutcomeResponse(res.Outcome)})
	}
}

// POST .../{studentID}/scorm  raw runtime JSON. Unreadable data is recorded as activity, not rejected.
func ReportScormHandler(svc EnrollmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRuntimePayload))
		if err != nil {
			// truncated payloads degrade like any other malformed input
			raw = nil
		}
		student, courseID := ids(r)
		res, err := svc.ReportScorm(r.Context(), student, courseID, raw)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Normalized scorm.Result `json:"normalized"`
			outcomeResponse
		}{res.Normalized, toOutcomeResponse(res.Outcome)})
	}
}

// POST .../{studentID}/override  { "score": 0-100, "reason": "..." }
func OverrideHandler(svc EnrollmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Score  *int   `json:"score"`
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Score == nil {
			http.Error(w, "score required", http.StatusBadRequest)
			return
		}
		if *req.Score < 0 || *req.Score > 100 {
			http.Error(w, "score must be within 0-100", http.StatusBadRequest)
			return
		}
		student, courseID := ids(r)
		actor := authmw.SubjectFromContext(r.Context())
		out, err := svc.Override(r.Context(), student, courseID, *req.Score, actor, req.Reason)
		if err != nil {
			writeError(w, log, err)
			return
		}
		log.Info("manual override", zap.String("actor", actor), zap.String("student", student),
			zap.String("course", courseID), zap.Int("score", *req.Score), zap.String("reason", req.Reason))
		writeJSON(w, http.StatusOK, toOutcomeResponse(out))
	}
}

// POST .../{studentID}/recheck
func RecheckHandler(svc EnrollmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		student, courseID := ids(r)
		out, err := svc.Recheck(r.Context(), student, courseID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toOutcomeResponse(out))
	}
}

// GET .../{studentID}/certificate
func CertificateHandler(svc EnrollmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		student, courseID := ids(r)
		el, err := svc.Eligibility(r.Context(), student, courseID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, el)
	}
}
