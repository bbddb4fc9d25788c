package passback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-completion/internal/completion"
	"github.com/mind-engage/mindengage-completion/internal/enrollment"
)

func fakeGradebook(t *testing.T) (*httptest.Server, func() []Score) {
	t.Helper()
	var mu sync.Mutex
	var got []Score
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("token: ParseForm: %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("token: unexpected grant_type=%q", r.PostForm.Get("grant_type"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/courses/safety-101/scores", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var s Score
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, func() []Score {
		mu.Lock()
		defer mu.Unlock()
		return append([]Score(nil), got...)
	}
}

func TestClient_PostsScoreOnChange(t *testing.T) {
	srv, scores := fakeGradebook(t)
	c := New(Config{BaseURL: srv.URL + "/", TokenURL: srv.URL + "/oauth/token", ClientID: "id", ClientSecret: "secret", Timeout: 5 * time.Second})

	e := completion.NewEnrollment("e1", "s1", "safety-101", time.Now())
	if err := c.Notify(context.Background(), enrollment.Change{Enrollment: e}); err != nil {
		t.Fatalf("unscored enrollment: %v", err)
	}
	if len(scores()) != 0 {
		t.Fatalf("posted a score for an unscored enrollment")
	}

	e.Status = completion.StatusCompleted
	e.BestScore = completion.IntPtr(76)
	if err := c.Notify(context.Background(), enrollment.Change{Enrollment: e, PreviousStatus: completion.StatusInProgress}); err != nil {
		t.Fatal(err)
	}
	got := scores()
	if len(got) != 1 {
		t.Fatalf("expected one score, got %d", len(got))
	}
	if got[0].UserID != "s1" || got[0].ScoreGiven != 76 || got[0].ScoreMaximum != 100 ||
		got[0].ActivityProgress != "Completed" || got[0].GradingProgress != "FullyGraded" {
		t.Fatalf("unexpected score: %+v", got[0])
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	srv, _ := fakeGradebook(t)
	c := New(Config{BaseURL: srv.URL, TokenURL: srv.URL + "/oauth/token", ClientID: "id", ClientSecret: "secret"})
	if err := c.PostScore(context.Background(), "unknown-course", Score{UserID: "s1"}); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestScoreFor(t *testing.T) {
	e := completion.NewEnrollment("e1", "s1", "c1", time.Now())
	e.Status = completion.StatusInProgress
	e.BestScore = completion.IntPtr(40)
	if s := ScoreFor(e); s.ActivityProgress != "InProgress" || s.GradingProgress != "Pending" || s.ScoreGiven != 40 {
		t.Fatalf("unexpected in-progress score: %+v", s)
	}
	e.Status = completion.StatusFailed
	if s := ScoreFor(e); s.ActivityProgress != "Submitted" || s.GradingProgress != "FullyGraded" {
		t.Fatalf("unexpected failed score: %+v", s)
	}
}
