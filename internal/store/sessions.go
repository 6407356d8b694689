package store

import (
	"context"

	"github.com/campushub/eventhub/internal/models"
)

const sessionEntity = "session"

func (s *Store) InsertSession(ctx context.Context, ses *models.Session) error {
	doc, err := encode(ses)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO sessions (id, session_code, event_id, sequence, trainer_id, status, scheduled_start, doc)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ses.ID, ses.SessionCode, ses.EventID, ses.Sequence, ses.TrainerID, string(ses.Status), ts(ses.ScheduledStart), doc,
	)
	return translate(err, sessionEntity)
}

func (s *Store) UpdateSession(ctx context.Context, ses *models.Session) error {
	doc, err := encode(ses)
	if err != nil {
		return err
	}
	return execOne(ctx, s.q, sessionEntity,
		`UPDATE sessions SET sequence = ?, trainer_id = ?, status = ?, scheduled_start = ?, doc = ?
		 WHERE id = ?`,
		ses.Sequence, ses.TrainerID, string(ses.Status), ts(ses.ScheduledStart), doc, ses.ID,
	)
}

func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return getDoc[models.Session](ctx, s.q, sessionEntity, `SELECT doc FROM sessions WHERE id = ?`, id)
}

// DeleteSession removes a session and its attendance records.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if _, err := tx.q.ExecContext(ctx, `DELETE FROM attendance WHERE session_id = ?`, id); err != nil {
			return err
		}
		return execOne(ctx, tx.q, sessionEntity, `DELETE FROM sessions WHERE id = ?`, id)
	})
}

// ListSessionsByEvent returns an event's sessions in sequence order.
func (s *Store) ListSessionsByEvent(ctx context.Context, eventID string) ([]models.Session, error) {
	return listDocs[models.Session](ctx, s.q,
		`SELECT doc FROM sessions WHERE event_id = ? ORDER BY sequence`, eventID)
}

func (s *Store) ListSessionsByTrainer(ctx context.Context, trainerID string) ([]models.Session, error) {
	return listDocs[models.Session](ctx, s.q,
		`SELECT doc FROM sessions WHERE trainer_id = ? ORDER BY scheduled_start`, trainerID)
}

// NextSequence returns one past the highest sequence used by the event.
func (s *Store) NextSequence(ctx context.Context, eventID string) (int, error) {
	return count(ctx, s.q, `SELECT COALESCE(MAX(sequence), 0) + 1 FROM sessions WHERE event_id = ?`, eventID)
}

// SessionIDs returns the ids of every session.
func (s *Store) SessionIDs(ctx context.Context) ([]string, error) {
	return listStrings(ctx, s.q, `SELECT id FROM sessions ORDER BY event_id, sequence`)
}

func (s *Store) CountSessions(ctx context.Context, status models.SessionStatus) (int, error) {
	if status == "" {
		return count(ctx, s.q, `SELECT COUNT(*) FROM sessions`)
	}
	return count(ctx, s.q, `SELECT COUNT(*) FROM sessions WHERE status = ?`, string(status))
}
