package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/campushub/eventhub/internal/models"
)

const attendanceEntity = "attendance"

// UpsertAttendance writes the record for (a.SessionID, a.UserID) in one
// statement. When the pair already exists the stored id and createdAt win
// and everything else is replaced, so concurrent marks settle to a single
// row. a is updated to the stored document.
func (s *Store) UpsertAttendance(ctx context.Context, a *models.Attendance) error {
	doc, err := encode(a)
	if err != nil {
		return err
	}
	var raw string
	err = s.q.QueryRowContext(ctx,
		`INSERT INTO attendance (id, session_id, event_id, user_id, present, marked_at, doc)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, user_id) DO UPDATE SET
		   event_id  = excluded.event_id,
		   present   = excluded.present,
		   marked_at = excluded.marked_at,
		   doc       = json_set(excluded.doc,
		                 '$.id', attendance.id,
		                 '$.createdAt', json_extract(attendance.doc, '$.createdAt'))
		 RETURNING doc`,
		a.ID, a.SessionID, a.EventID, a.UserID, boolInt(a.Present), ts(a.MarkedAt), doc,
	).Scan(&raw)
	if err != nil {
		return translate(err, attendanceEntity)
	}
	if err := json.Unmarshal([]byte(raw), a); err != nil {
		return fmt.Errorf("decode attendance: %w", err)
	}
	return nil
}

func (s *Store) GetAttendance(ctx context.Context, sessionID, userID string) (*models.Attendance, error) {
	return getDoc[models.Attendance](ctx, s.q, attendanceEntity,
		`SELECT doc FROM attendance WHERE session_id = ? AND user_id = ?`, sessionID, userID)
}

// UpdateAttendanceSnapshot rewrites the document without touching the key
// columns. Used when refreshing denormalized names.
func (s *Store) UpdateAttendanceSnapshot(ctx context.Context, a *models.Attendance) error {
	doc, err := encode(a)
	if err != nil {
		return err
	}
	return execOne(ctx, s.q, attendanceEntity, `UPDATE attendance SET doc = ? WHERE id = ?`, doc, a.ID)
}

func (s *Store) ListAttendanceBySession(ctx context.Context, sessionID string) ([]models.Attendance, error) {
	return listDocs[models.Attendance](ctx, s.q,
		`SELECT doc FROM attendance WHERE session_id = ? ORDER BY marked_at`, sessionID)
}

func (s *Store) ListAttendanceByEvent(ctx context.Context, eventID string) ([]models.Attendance, error) {
	return listDocs[models.Attendance](ctx, s.q,
		`SELECT doc FROM attendance WHERE event_id = ? ORDER BY marked_at`, eventID)
}

func (s *Store) ListAttendanceByUser(ctx context.Context, userID string) ([]models.Attendance, error) {
	return listDocs[models.Attendance](ctx, s.q,
		`SELECT doc FROM attendance WHERE user_id = ? ORDER BY marked_at DESC`, userID)
}

// AttendanceFilter narrows SearchAttendance.
type AttendanceFilter struct {
	UserID     string
	EventID    string
	SessionID  string
	Department string
	Present    *bool
	From, To   time.Time
	Page
}

// SearchAttendance returns one page of matching records, newest first, and
// the total match count.
func (s *Store) SearchAttendance(ctx context.Context, f AttendanceFilter) ([]models.Attendance, int, error) {
	w := &where{}
	if f.UserID != "" {
		w.add("user_id = ?", f.UserID)
	}
	if f.EventID != "" {
		w.add("event_id = ?", f.EventID)
	}
	if f.SessionID != "" {
		w.add("session_id = ?", f.SessionID)
	}
	if f.Department != "" {
		w.add("json_extract(doc, '$.department') = ?", f.Department)
	}
	if f.Present != nil {
		w.add("present = ?", boolInt(*f.Present))
	}
	if !f.From.IsZero() {
		w.add("marked_at >= ?", ts(f.From))
	}
	if !f.To.IsZero() {
		w.add("marked_at < ?", ts(f.To))
	}

	total, err := count(ctx, s.q, `SELECT COUNT(*) FROM attendance`+w.String(), w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	recs, err := listDocs[models.Attendance](ctx, s.q,
		`SELECT doc FROM attendance`+w.String()+` ORDER BY marked_at DESC`+f.clause(), w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search attendance: %w", err)
	}
	return recs, total, nil
}

// AttendanceIDs returns the ids of every attendance record.
func (s *Store) AttendanceIDs(ctx context.Context) ([]string, error) {
	return listStrings(ctx, s.q, `SELECT id FROM attendance ORDER BY marked_at`)
}

func (s *Store) GetAttendanceByID(ctx context.Context, id string) (*models.Attendance, error) {
	return getDoc[models.Attendance](ctx, s.q, attendanceEntity, `SELECT doc FROM attendance WHERE id = ?`, id)
}
