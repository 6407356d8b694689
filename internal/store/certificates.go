package store

import (
	"context"
	"time"

	"github.com/campushub/eventhub/internal/models"
)

const (
	certificateEntity = "certificate"
	feedbackEntity    = "feedback"
)

// InsertCertificate fails with a Conflict when the (event, user) pair was
// already issued.
func (s *Store) InsertCertificate(ctx context.Context, c *models.Certificate) error {
	doc, err := encode(c)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO certificates (id, certificate_number, verification_code, event_id, user_id, issued_at, doc)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CertificateNumber, c.VerificationCode, c.EventID, c.UserID, ts(c.IssuedAt), doc,
	)
	return translate(err, certificateEntity)
}

func (s *Store) GetCertificate(ctx context.Context, id string) (*models.Certificate, error) {
	return getDoc[models.Certificate](ctx, s.q, certificateEntity,
		`SELECT doc FROM certificates WHERE id = ?`, id)
}

func (s *Store) GetCertificateByCode(ctx context.Context, code string) (*models.Certificate, error) {
	return getDoc[models.Certificate](ctx, s.q, certificateEntity,
		`SELECT doc FROM certificates WHERE verification_code = ? OR certificate_number = ?`, code, code)
}

// TrackDownload increments the download counter in place and returns the
// updated certificate. Nothing else on a certificate ever changes.
func (s *Store) TrackDownload(ctx context.Context, id string, at time.Time) (*models.Certificate, error) {
	return getDoc[models.Certificate](ctx, s.q, certificateEntity,
		`UPDATE certificates
		 SET doc = json_set(doc,
		     '$.downloadCount', COALESCE(json_extract(doc, '$.downloadCount'), 0) + 1,
		     '$.lastDownloadedAt', ?)
		 WHERE id = ?
		 RETURNING doc`,
		at.UTC().Format(time.RFC3339Nano), id)
}

func (s *Store) ListCertificatesByUser(ctx context.Context, userID string) ([]models.Certificate, error) {
	return listDocs[models.Certificate](ctx, s.q,
		`SELECT doc FROM certificates WHERE user_id = ? ORDER BY issued_at DESC`, userID)
}

func (s *Store) ListCertificatesByEvent(ctx context.Context, eventID string) ([]models.Certificate, error) {
	return listDocs[models.Certificate](ctx, s.q,
		`SELECT doc FROM certificates WHERE event_id = ? ORDER BY issued_at`, eventID)
}

func (s *Store) CountCertificatesByUser(ctx context.Context, userID string) (int, error) {
	return count(ctx, s.q, `SELECT COUNT(*) FROM certificates WHERE user_id = ?`, userID)
}

// InsertFeedback fails with a Conflict on a second submission for the same
// (event, user) pair.
func (s *Store) InsertFeedback(ctx context.Context, f *models.Feedback) error {
	doc, err := encode(f)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO feedback (id, event_id, user_id, submitted_at, doc) VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.EventID, f.UserID, ts(f.SubmittedAt), doc,
	)
	return translate(err, feedbackEntity)
}

func (s *Store) GetFeedbackFor(ctx context.Context, eventID, userID string) (*models.Feedback, error) {
	return getDoc[models.Feedback](ctx, s.q, feedbackEntity,
		`SELECT doc FROM feedback WHERE event_id = ? AND user_id = ?`, eventID, userID)
}

func (s *Store) ListFeedbackByEvent(ctx context.Context, eventID string) ([]models.Feedback, error) {
	return listDocs[models.Feedback](ctx, s.q,
		`SELECT doc FROM feedback WHERE event_id = ? ORDER BY submitted_at DESC`, eventID)
}
