package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-completion/internal/completion"
	"github.com/mind-engage/mindengage-completion/internal/course"
	"github.com/mind-engage/mindengage-completion/internal/enrollment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, enrollment.ErrNotFound), errors.Is(err, course.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, enrollment.ErrNoSubmissionTime):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, completion.ErrInvalidConfiguration):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, enrollment.ErrLockTimeout):
		http.Error(w, "busy, retry later", http.StatusServiceUnavailable)
	default:
		log.Error("request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

type outcomeResponse struct {
	Enrollment         completion.Enrollment `json:"enrollment"`
	CombinedScore      *int                  `json:"combined_score"`
	Duplicate          bool                  `json:"duplicate,omitempty"`
	BlockedOnSignature bool                  `json:"blocked_on_signature,omitempty"`
	Warnings           []string              `json:"warnings,omitempty"`
}

func toOutcomeResponse(o completion.Outcome) outcomeResponse {
	resp := outcomeResponse{
		Enrollment:         o.Enrollment,
		CombinedScore:      o.Combined,
		Duplicate:          o.Duplicate,
		BlockedOnSignature: o.BlockedOnSignature,
	}
	for _, w := range o.Warnings {
		resp.Warnings = append(resp.Warnings, w.Error())
	}
	if o.Duplicate {
		resp.Warnings = append(resp.Warnings, completion.ErrDuplicateSubmission.Error())
	}
	return resp
}
