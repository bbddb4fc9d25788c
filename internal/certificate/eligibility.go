package certificate

import (
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-completion/internal/completion"
)

// Eligibility answers whether a certificate may be issued for an enrollment.
type Eligibility struct {
	Eligible    bool       `json:"eligible"`
	StudentID   string     `json:"student_id"`
	CourseID    string     `json:"course_id"`
	BestScore   *int       `json:"best_score"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Reasons     []string   `json:"reasons,omitempty"`
}

// Check re-verifies the completion conditions instead of trusting the status alone.
func Check(cfg completion.CourseConfig, e completion.Enrollment, signaturePresent bool) Eligibility {
	out := Eligibility{
		StudentID:   e.StudentID,
		CourseID:    e.CourseID,
		BestScore:   e.BestScore,
		CompletedAt: e.CompletedAt,
	}
	if e.Status != completion.StatusCompleted {
		out.Reasons = append(out.Reasons, fmt.Sprintf("enrollment is %s", e.Status))
	}
	switch {
	case e.BestScore == nil:
		out.Reasons = append(out.Reasons, "no score recorded")
	case *e.BestScore < cfg.PassingScore:
		out.Reasons = append(out.Reasons, fmt.Sprintf("best score %d below passing score %d", *e.BestScore, cfg.PassingScore))
	}
	if cfg.RequiresSignature && !signaturePresent {
		out.Reasons = append(out.Reasons, "digital signature missing")
	}
	out.Eligible = len(out.Reasons) == 0
	return out
}
