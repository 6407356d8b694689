package store

import (
	"context"
	"time"

	"github.com/campushub/eventhub/internal/apperr"
	"github.com/campushub/eventhub/internal/models"
)

const registrationEntity = "registration"

// InsertRegistration relies on the (event_id, user_id) UNIQUE constraint:
// of two concurrent inserts for the same pair exactly one succeeds and the
// other returns a Conflict.
func (s *Store) InsertRegistration(ctx context.Context, r *models.Registration) error {
	if r.Attendance == nil {
		r.Attendance = []models.SessionMark{}
	}
	doc, err := encode(r)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO registrations (id, event_id, user_id, status, registered_at, doc)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.EventID, r.UserID, string(r.Status), ts(r.RegisteredAt), doc,
	)
	return translate(err, registrationEntity)
}

func (s *Store) UpdateRegistration(ctx context.Context, r *models.Registration) error {
	doc, err := encode(r)
	if err != nil {
		return err
	}
	return execOne(ctx, s.q, registrationEntity,
		`UPDATE registrations SET status = ?, doc = ? WHERE id = ?`,
		string(r.Status), doc, r.ID,
	)
}

func (s *Store) GetRegistration(ctx context.Context, id string) (*models.Registration, error) {
	return getDoc[models.Registration](ctx, s.q, registrationEntity,
		`SELECT doc FROM registrations WHERE id = ?`, id)
}

func (s *Store) GetRegistrationFor(ctx context.Context, eventID, userID string) (*models.Registration, error) {
	return getDoc[models.Registration](ctx, s.q, registrationEntity,
		`SELECT doc FROM registrations WHERE event_id = ? AND user_id = ?`, eventID, userID)
}

// ListRegistrationsByEvent returns the event's registrations oldest first,
// optionally restricted to one status.
func (s *Store) ListRegistrationsByEvent(ctx context.Context, eventID string, status models.RegistrationStatus) ([]models.Registration, error) {
	if status == "" {
		return listDocs[models.Registration](ctx, s.q,
			`SELECT doc FROM registrations WHERE event_id = ? ORDER BY registered_at, id`, eventID)
	}
	return listDocs[models.Registration](ctx, s.q,
		`SELECT doc FROM registrations WHERE event_id = ? AND status = ? ORDER BY registered_at, id`,
		eventID, string(status))
}

func (s *Store) ListRegistrationsByUser(ctx context.Context, userID string) ([]models.Registration, error) {
	return listDocs[models.Registration](ctx, s.q,
		`SELECT doc FROM registrations WHERE user_id = ? ORDER BY registered_at DESC`, userID)
}

// CountRegistrations counts an event's registrations in the given status.
func (s *Store) CountRegistrations(ctx context.Context, eventID string, status models.RegistrationStatus) (int, error) {
	return count(ctx, s.q,
		`SELECT COUNT(*) FROM registrations WHERE event_id = ? AND status = ?`, eventID, string(status))
}

// CountUserRegistrations counts a user's non-cancelled registrations.
func (s *Store) CountUserRegistrations(ctx context.Context, userID string) (int, error) {
	return count(ctx, s.q,
		`SELECT COUNT(*) FROM registrations WHERE user_id = ? AND status != 'cancelled'`, userID)
}

// OldestWaitlisted returns the event's earliest waitlisted registration, or
// nil when the waitlist is empty.
func (s *Store) OldestWaitlisted(ctx context.Context, eventID string) (*models.Registration, error) {
	r, err := getDoc[models.Registration](ctx, s.q, registrationEntity,
		`SELECT doc FROM registrations WHERE event_id = ? AND status = 'waitlisted'
		 ORDER BY registered_at, id LIMIT 1`, eventID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, nil
	}
	return r, err
}

// Promote moves a waitlisted registration to confirmed and reports whether
// it did. The status guard in the WHERE clause makes concurrent promotions
// of the same row settle on one winner; the losers get false.
func (s *Store) Promote(ctx context.Context, r *models.Registration, at time.Time) (bool, error) {
	promoted := *r
	promoted.Status = models.RegConfirmed
	promoted.PromotedAt = &at
	doc, err := encode(&promoted)
	if err != nil {
		return false, err
	}
	res, err := s.q.ExecContext(ctx,
		`UPDATE registrations SET status = 'confirmed', doc = ? WHERE id = ? AND status = 'waitlisted'`,
		doc, r.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	*r = promoted
	return true, nil
}

// Cancel moves a live registration to cancelled and reports whether it
// did. Only status and cancelledAt are touched in the stored document, so
// an attendance mark committed after r was read survives. Like Promote, the
// status guard lets one of several concurrent cancellations win; r is
// reloaded on success.
func (s *Store) Cancel(ctx context.Context, r *models.Registration, at time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE registrations
		 SET status = 'cancelled',
		     doc = json_set(doc, '$.status', 'cancelled', '$.cancelledAt', ?)
		 WHERE id = ? AND status = ?`,
		at.UTC().Format(time.RFC3339Nano), r.ID, string(r.Status))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	fresh, err := s.GetRegistration(ctx, r.ID)
	if err != nil {
		return false, err
	}
	*r = *fresh
	return true, nil
}

// RegistrationIDs returns the ids of every registration.
func (s *Store) RegistrationIDs(ctx context.Context) ([]string, error) {
	return listStrings(ctx, s.q, `SELECT id FROM registrations ORDER BY registered_at`)
}

// ParticipantIDs returns the users holding a confirmed registration.
func (s *Store) ParticipantIDs(ctx context.Context, eventID string) ([]string, error) {
	return listStrings(ctx, s.q,
		`SELECT user_id FROM registrations WHERE event_id = ? AND status = 'confirmed'`, eventID)
}
