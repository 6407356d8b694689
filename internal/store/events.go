package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/campushub/eventhub/internal/models"
)

const eventEntity = "event"

// EventFilter narrows ListEvents. Department keeps events whose eligibility
// list is empty or contains it.
type EventFilter struct {
	Statuses      []models.EventStatus
	Category      string
	Type          models.EventType
	CoordinatorID string
	Department    string
	Search        string
	Page
}

func (f EventFilter) conds() *where {
	w := &where{}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			marks[i] = "?"
			w.args = append(w.args, string(st))
		}
		w.conds = append(w.conds, "status IN ("+strings.Join(marks, ",")+")")
	}
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}
	if f.Type != "" {
		w.add("json_extract(doc, '$.type') = ?", string(f.Type))
	}
	if f.CoordinatorID != "" {
		w.add("coordinator_id = ?", f.CoordinatorID)
	}
	if f.Department != "" {
		w.add(`(COALESCE(json_array_length(doc, '$.eligibility.departments'), 0) = 0
		        OR EXISTS (SELECT 1 FROM json_each(doc, '$.eligibility.departments') WHERE value = ?))`, f.Department)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		w.add("(lower(json_extract(doc, '$.title')) LIKE ? OR lower(json_extract(doc, '$.description')) LIKE ? OR lower(event_code) LIKE ?)", like, like, like)
	}
	return w
}

func (s *Store) InsertEvent(ctx context.Context, e *models.Event) error {
	doc, err := encode(e)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO events (id, event_code, status, coordinator_id, category, start_date, created_at, doc)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.EventCode, string(e.Status), e.CoordinatorID, e.Category, ts(e.StartDate), ts(e.CreatedAt), doc,
	)
	return translate(err, eventEntity)
}

func (s *Store) UpdateEvent(ctx context.Context, e *models.Event) error {
	doc, err := encode(e)
	if err != nil {
		return err
	}
	return execOne(ctx, s.q, eventEntity,
		`UPDATE events SET event_code = ?, status = ?, coordinator_id = ?, category = ?, start_date = ?, doc = ?
		 WHERE id = ?`,
		e.EventCode, string(e.Status), e.CoordinatorID, e.Category, ts(e.StartDate), doc, e.ID,
	)
}

func (s *Store) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	return getDoc[models.Event](ctx, s.q, eventEntity, `SELECT doc FROM events WHERE id = ?`, id)
}

// DeleteEvent removes an event together with everything owned by it.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx *Store) error {
		for _, table := range []string{"attendance", "sessions", "registrations", "feedback", "certificates"} {
			if _, err := tx.q.ExecContext(ctx, `DELETE FROM `+table+` WHERE event_id = ?`, id); err != nil {
				return fmt.Errorf("delete %s of event: %w", table, err)
			}
		}
		if _, err := tx.q.ExecContext(ctx,
			`DELETE FROM performance WHERE entity_type = 'event' AND entity_id = ?`, id); err != nil {
			return fmt.Errorf("delete performance of event: %w", err)
		}
		return execOne(ctx, tx.q, eventEntity, `DELETE FROM events WHERE id = ?`, id)
	})
}

// ListEvents returns one page of events ordered by start date plus the
// total match count.
func (s *Store) ListEvents(ctx context.Context, f EventFilter) ([]models.Event, int, error) {
	w := f.conds()
	total, err := count(ctx, s.q, `SELECT COUNT(*) FROM events`+w.String(), w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	events, err := listDocs[models.Event](ctx, s.q,
		`SELECT doc FROM events`+w.String()+` ORDER BY start_date DESC`+f.clause(), w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	return events, total, nil
}

// EventIDs returns the ids of events in any of the statuses, or of every
// event when none are given.
func (s *Store) EventIDs(ctx context.Context, statuses ...models.EventStatus) ([]string, error) {
	w := EventFilter{Statuses: statuses}.conds()
	return listStrings(ctx, s.q, `SELECT id FROM events`+w.String()+` ORDER BY created_at`, w.args...)
}

// CountEvents counts events in any of the statuses, or all events.
func (s *Store) CountEvents(ctx context.Context, f EventFilter) (int, error) {
	w := f.conds()
	return count(ctx, s.q, `SELECT COUNT(*) FROM events`+w.String(), w.args...)
}
