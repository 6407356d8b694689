package store

import (
	"context"
	"fmt"
	"time"

	"github.com/campushub/eventhub/internal/models"
)

const (
	analyticsEntity   = "analytics"
	performanceEntity = "performance"
)

// InsertAnalyticsIfAbsent stores a unless a record for the same period and
// window exists, then returns whichever record is stored. created reports
// whether a was the one written.
func (s *Store) InsertAnalyticsIfAbsent(ctx context.Context, a *models.Analytics) (stored *models.Analytics, created bool, err error) {
	doc, err := encode(a)
	if err != nil {
		return nil, false, err
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO analytics (id, period, window_start, window_end, generated_at, expires_at, doc)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (period, window_start, window_end) DO NOTHING`,
		a.ID, string(a.Period), ts(a.WindowStart), ts(a.WindowEnd), ts(a.GeneratedAt), ts(a.ExpiresAt), doc,
	)
	if err != nil {
		return nil, false, translate(err, analyticsEntity)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	stored, err = s.GetAnalytics(ctx, a.Period, a.WindowStart, a.WindowEnd)
	return stored, n == 1, err
}

func (s *Store) GetAnalytics(ctx context.Context, period models.Period, start, end time.Time) (*models.Analytics, error) {
	return getDoc[models.Analytics](ctx, s.q, analyticsEntity,
		`SELECT doc FROM analytics WHERE period = ? AND window_start = ? AND window_end = ?`,
		string(period), ts(start), ts(end))
}

// ListAnalytics returns the newest snapshots of a period, or of every
// period when empty.
func (s *Store) ListAnalytics(ctx context.Context, period models.Period, limit int) ([]models.Analytics, error) {
	w := &where{}
	if period != "" {
		w.add("period = ?", string(period))
	}
	return listDocs[models.Analytics](ctx, s.q,
		`SELECT doc FROM analytics`+w.String()+` ORDER BY window_start DESC`+Page{Limit: limit}.clause(), w.args...)
}

func (s *Store) DeleteExpiredAnalytics(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"analytics", "performance"} {
		res, err := s.q.ExecContext(ctx, `DELETE FROM `+table+` WHERE expires_at <= ?`, ts(now))
		if err != nil {
			return total, fmt.Errorf("expire %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// UpsertPerformance writes the snapshot for (entityType, entityID, date),
// replacing the metrics of an existing one.
func (s *Store) UpsertPerformance(ctx context.Context, p *models.Performance) error {
	doc, err := encode(p)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO performance (id, entity_type, entity_id, date, created_at, expires_at, doc)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (entity_type, entity_id, date) DO UPDATE SET
		   doc = json_set(excluded.doc, '$.id', performance.id, '$.createdAt', json_extract(performance.doc, '$.createdAt')),
		   expires_at = excluded.expires_at`,
		p.ID, p.EntityType, p.EntityID, p.Date, ts(p.CreatedAt), ts(p.ExpiresAt), doc,
	)
	return translate(err, performanceEntity)
}

func (s *Store) ListPerformance(ctx context.Context, entityType, entityID string) ([]models.Performance, error) {
	return listDocs[models.Performance](ctx, s.q,
		`SELECT doc FROM performance WHERE entity_type = ? AND entity_id = ? ORDER BY date DESC`,
		entityType, entityID)
}

// Counts is a set of platform-wide counters, optionally limited to records
// created inside a window.
type Counts struct {
	Users            int `json:"users"`
	Events           int `json:"events"`
	ActiveEvents     int `json:"activeEvents"`
	Registrations    int `json:"registrations"`
	AttendanceMarked int `json:"attendanceMarked"`
	PresentCount     int `json:"presentCount"`
	Certificates     int `json:"certificates"`
	Feedback         int `json:"feedback"`
}

// createdColumn names the creation timestamp column of each collection
// counted by CountWindow.
var createdColumn = map[string]string{
	"users":         "created_at",
	"events":        "created_at",
	"registrations": "registered_at",
	"attendance":    "marked_at",
	"certificates":  "issued_at",
	"feedback":      "submitted_at",
}

// CountWindow counts records created in [from, to). Zero bounds count
// everything.
func (s *Store) CountWindow(ctx context.Context, from, to time.Time) (Counts, error) {
	var c Counts
	targets := []struct {
		table string
		extra string
		dst   *int
	}{
		{"users", "", &c.Users},
		{"events", "", &c.Events},
		{"events", "status IN ('approved','ongoing')", &c.ActiveEvents},
		{"registrations", "status != 'cancelled'", &c.Registrations},
		{"attendance", "", &c.AttendanceMarked},
		{"attendance", "present = 1", &c.PresentCount},
		{"certificates", "", &c.Certificates},
		{"feedback", "", &c.Feedback},
	}
	for _, t := range targets {
		w := &where{}
		if t.extra != "" {
			w.add(t.extra)
		}
		col := createdColumn[t.table]
		if !from.IsZero() {
			w.add(col+" >= ?", ts(from))
		}
		if !to.IsZero() {
			w.add(col+" < ?", ts(to))
		}
		n, err := count(ctx, s.q, `SELECT COUNT(*) FROM `+t.table+w.String(), w.args...)
		if err != nil {
			return c, fmt.Errorf("count %s: %w", t.table, err)
		}
		*t.dst = n
	}
	return c, nil
}
