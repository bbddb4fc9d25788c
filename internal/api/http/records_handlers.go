package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-completion/internal/enrollment"
	syncx "github.com/mind-engage/mindengage-completion/internal/sync"
)

type AuditReader interface {
	List(ctx context.Context, key string, limit int) ([]syncx.Event, error)
}

type SignatureRecorder interface {
	RecordSignature(ctx context.Context, studentID string, at time.Time) error
}

type auditItem struct {
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"created_at"`
}

// GET .../{studentID}/audit?limit=N  oldest first
func AuditHandler(audit AuditReader, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 1000 {
				http.Error(w, "limit must be within 1-1000", http.StatusBadRequest)
				return
			}
			limit = n
		}
		student, courseID := ids(r)
		evs, err := audit.List(r.Context(), enrollment.Key(student, courseID), limit)
		if err != nil {
			writeError(w, log, err)
			return
		}
		items := make([]auditItem, 0, len(evs))
		for _, e := range evs {
			items = append(items, auditItem{Seq: e.Seq, Type: e.Type, Data: json.RawMessage(e.DataJSON), CreatedAt: e.CreatedAt})
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// PUT /students/{studentID}/signature
// Recording twice keeps the first timestamp. Blocked enrollments complete on the next recheck.
func RecordSignatureHandler(sigs SignatureRecorder, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		student := chi.URLParam(r, "studentID")
		if err := sigs.RecordSignature(r.Context(), student, time.Now().UTC()); err != nil {
			writeError(w, log, err)
			return
		}
		log.Info("signature recorded", zap.String("student", student))
		w.WriteHeader(http.StatusNoContent)
	}
}
