package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event is one row of the reconciliation audit log.
type Event struct {
	Seq       int64
	SiteID    string
	Type      string // e.g. quiz_submitted
	Key       string // natural key: course/student
	DataJSON  string
	CreatedAt int64
}

type Clock func() time.Time

type EventRepo struct {
	db     *sql.DB
	siteID string
	now    Clock
}

func NewEventRepo(db *sql.DB, siteID string, now Clock) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	if now == nil {
		now = time.Now
	}
	return &EventRepo{db: db, siteID: siteID, now: now}
}

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.SiteID == "" {
		e.SiteID = r.siteID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, r.now().Unix())
	return err
}

// Record marshals data and appends it under typ/key.
func (r *EventRepo) Record(ctx context.Context, typ, key string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("event %s: %w", typ, err)
	}
	return r.Append(ctx, Event{Type: typ, Key: key, DataJSON: string(b)})
}

// List returns the entries for key, oldest first.
func (r *EventRepo) List(ctx context.Context, key string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log
		 WHERE key=$1 ORDER BY seq LIMIT $2`, key, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
