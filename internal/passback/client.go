package passback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/mind-engage/mindengage-completion/internal/completion"
	"github.com/mind-engage/mindengage-completion/internal/enrollment"
)

type Config struct {
	BaseURL      string // gradebook API root; scores go to {BaseURL}/courses/{id}/scores
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

// Client pushes enrollment scores to the external gradebook. It is an enrollment.Notifier.
type Client struct {
	http    *http.Client
	baseURL string
}

func New(cfg Config) *Client {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	h := cc.Client(context.Background())
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	return &Client{http: h, baseURL: strings.TrimSuffix(cfg.BaseURL, "/")}
}

type Score struct {
	UserID           string    `json:"userId"`
	ScoreGiven       int       `json:"scoreGiven"`
	ScoreMaximum     int       `json:"scoreMaximum"`
	ActivityProgress string    `json:"activityProgress"`
	GradingProgress  string    `json:"gradingProgress"`
	Timestamp        time.Time `json:"timestamp"`
}

func (c *Client) Name() string { return "gradebook" }

// Notify posts the best score. Enrollments without a score have nothing to report.
func (c *Client) Notify(ctx context.Context, ch enrollment.Change) error {
	e := ch.Enrollment
	if e.BestScore == nil {
		return nil
	}
	return c.PostScore(ctx, e.CourseID, ScoreFor(e))
}

// ScoreFor maps an enrollment onto the gradebook's score shape.
func ScoreFor(e completion.Enrollment) Score {
	s := Score{
		UserID:           e.StudentID,
		ScoreMaximum:     100,
		ActivityProgress: "InProgress",
		GradingProgress:  "Pending",
		Timestamp:        e.UpdatedAt.UTC(),
	}
	if e.BestScore != nil {
		s.ScoreGiven = *e.BestScore
	}
	switch e.Status {
	case completion.StatusCompleted:
		s.ActivityProgress = "Completed"
		s.GradingProgress = "FullyGraded"
	case completion.StatusFailed:
		s.ActivityProgress = "Submitted"
		s.GradingProgress = "FullyGraded"
	}
	return s
}

func (c *Client) PostScore(ctx context.Context, courseID string, s Score) error {
	body, err := json.Marshal(s)
	if err != nil {
		return err
	}
	u := c.baseURL + "/courses/" + url.PathEscape(courseID) + "/scores"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/vnd.ims.lis.v1.score+json")
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("post score: %s", res.Status)
	}
	return nil
}
