// Package scorm collapses SCORM 1.2 / 2004 runtime data into one Result shape.
package scorm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var ErrMalformedRuntimeData = errors.New("malformed runtime data")

// Result is the normalized outcome of a SCORM runtime session.
type Result struct {
	RawScore  *int      `json:"raw_score"`
	Completed bool      `json:"completed"`
	Timestamp time.Time `json:"timestamp"`
	Malformed bool      `json:"malformed,omitempty"`
}

// Score keys in priority order. 1.2 first, then 2004, then loose vendor spellings.
var scoreKeys = []string{
	"cmi.core.score.raw",
	"cmi.score.raw",
	"cmi.score.scaled",
	"score.raw",
	"score",
	"raw_score",
	"rawScore",
}

var maxKeys = map[string]string{
	"cmi.core.score.raw": "cmi.core.score.max",
	"cmi.score.raw":      "cmi.score.max",
	"score.raw":          "score.max",
}

var statusKeys = []string{
	"cmi.core.lesson_status",
	"cmi.completion_status",
	"cmi.success_status",
	"lesson_status",
	"completion_status",
	"success_status",
}

// Normalize never fails: malformed fields degrade to "no score, not completed".
func Normalize(fields map[string]string) Result {
	res, err := Parse(fields)
	if err != nil {
		return Result{Malformed: true}
	}
	return res
}

// FromJSON accepts a flat or nested JSON object as posted by a runtime bridge.
func FromJSON(raw []byte) Result {
	fields, err := flattenJSON(raw)
	if err != nil {
		return Result{Malformed: true}
	}
	return Normalize(fields)
}

// Parse is Normalize with the failure reported. Errors wrap ErrMalformedRuntimeData.
func Parse(fields map[string]string) (Result, error) {
	var res Result

	score, found, err := extractScore(fields)
	if err != nil {
		return Result{}, err
	}

	completed, failed, err := extractCompletion(fields)
	if err != nil {
		return Result{}, err
	}
	res.Completed = completed && !failed

	if found {
		res.RawScore = &score
	} else if res.Completed {
		full := 100
		res.RawScore = &full
	}

	if ts := firstPresent(fields, "timestamp", "cmi.timestamp"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			res.Timestamp = t
		}
	}
	return res, nil
}

func extractScore(fields map[string]string) (int, bool, error) {
	for _, k := range scoreKeys {
		raw, ok := fields[k]
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false, fmt.Errorf("%w: %s=%q", ErrMalformedRuntimeData, k, raw)
		}
		switch {
		case k == "cmi.score.scaled":
			v *= 100
		case v > 0 && v < 1:
			v *= 100
		default:
			if mk, ok := maxKeys[k]; ok {
				if m, err := strconv.ParseFloat(strings.TrimSpace(fields[mk]), 64); err == nil && m > 0 && m != 100 {
					v = v / m * 100
				}
			}
		}
		return clampPercent(v), true, nil
	}
	return 0, false, nil
}

func extractCompletion(fields map[string]string) (completed, failed bool, err error) {
	for _, k := range statusKeys {
		switch normalizeStatus(fields[k]) {
		case "passed", "completed":
			completed = true
		case "failed":
			failed = true
		}
	}
	if raw, ok := fields["completed"]; ok && strings.TrimSpace(raw) != "" {
		b, perr := strconv.ParseBool(strings.TrimSpace(raw))
		if perr != nil {
			return false, false, fmt.Errorf("%w: completed=%q", ErrMalformedRuntimeData, raw)
		}
		completed = completed || b
	}
	return completed, failed, nil
}

// normalizeStatus folds vendor spellings: "Not Attempted", "not_attempted", "PASSED", "p".
func normalizeStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", " ")
	switch s {
	case "p":
		return "passed"
	case "c":
		return "completed"
	case "f":
		return "failed"
	}
	return s
}

func clampPercent(v float64) int {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return int(math.Round(v))
}

func firstPresent(fields map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(fields[k]); v != "" {
			return v
		}
	}
	return ""
}

// flattenJSON turns {"cmi":{"core":{"score":{"raw":85}}}} into {"cmi.core.score.raw":"85"}.
func flattenJSON(raw []byte) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var root map[string]any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRuntimeData, err)
	}
	if root == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedRuntimeData)
	}
	out := map[string]string{}
	if err := flattenInto(out, "", root); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(out map[string]string, prefix string, v any) error {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if err := flattenInto(out, key, child); err != nil {
				return err
			}
		}
	case json.Number:
		out[prefix] = t.String()
	case string:
		out[prefix] = t
	case bool:
		out[prefix] = strconv.FormatBool(t)
	case []any:
		// interactions and objectives do not feed the score
	case nil:
	}
	return nil
}
