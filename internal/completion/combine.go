package completion

import "math"

// Combine merges quiz and SCORM percentages per the course weights.
//
// With a zero SCORM weight the quiz score is the combined score. Otherwise a missing
// component counts as 0 as long as the other one is present, so a two-part course
// cannot be passed on the lighter half alone. Nil means there is nothing to judge yet.
func Combine(quiz, scorm *int, cfg CourseConfig) *int {
	if cfg.ScormWeight == 0 {
		return copyInt(quiz)
	}
	if quiz == nil && scorm == nil {
		return nil
	}
	q, s := 0, 0
	if quiz != nil {
		q = *quiz
	}
	if scorm != nil {
		s = *scorm
	}
	v := int(math.Round(float64(q*cfg.QuizWeight+s*cfg.ScormWeight) / 100))
	return &v
}
