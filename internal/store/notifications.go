package store

import (
	"context"
	"fmt"
	"time"

	"github.com/campushub/eventhub/internal/models"
)

const notificationEntity = "notification"

func (s *Store) InsertNotification(ctx context.Context, n *models.Notification) error {
	doc, err := encode(n)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO notifications (id, recipient_id, recipient_role, broadcast, is_read, created_at, expires_at, doc)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.RecipientID, string(n.RecipientRole), boolInt(n.Broadcast), boolInt(n.IsRead),
		ts(n.CreatedAt), ts(n.ExpiresAt), doc,
	)
	return translate(err, notificationEntity)
}

func (s *Store) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	return getDoc[models.Notification](ctx, s.q, notificationEntity,
		`SELECT doc FROM notifications WHERE id = ?`, id)
}

// visibleTo matches notifications addressed to the user directly, to the
// user's role, or to everyone.
const visibleTo = `(recipient_id = ? OR recipient_role = ? OR broadcast = 1)`

// ListNotifications returns one page of the notifications visible to the
// user, newest first, with the total and unread counts.
func (s *Store) ListNotifications(ctx context.Context, userID string, role models.UserRole, unreadOnly bool, p Page) (list []models.Notification, total, unread int, err error) {
	w := &where{}
	w.add(visibleTo, userID, string(role))
	w.add("expires_at > ?", ts(time.Now()))
	unreadW := &where{conds: append([]string{}, w.conds...), args: append([]any{}, w.args...)}
	unreadW.add("is_read = 0")
	if unreadOnly {
		w = unreadW
	}

	if total, err = count(ctx, s.q, `SELECT COUNT(*) FROM notifications`+w.String(), w.args...); err != nil {
		return nil, 0, 0, fmt.Errorf("count notifications: %w", err)
	}
	if unread, err = count(ctx, s.q, `SELECT COUNT(*) FROM notifications`+unreadW.String(), unreadW.args...); err != nil {
		return nil, 0, 0, fmt.Errorf("count unread notifications: %w", err)
	}
	list, err = listDocs[models.Notification](ctx, s.q,
		`SELECT doc FROM notifications`+w.String()+` ORDER BY created_at DESC`+p.clause(), w.args...)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("list notifications: %w", err)
	}
	return list, total, unread, nil
}

// MarkNotificationRead flags a notification addressed directly to userID.
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID string, at time.Time) error {
	return execOne(ctx, s.q, notificationEntity,
		`UPDATE notifications SET is_read = 1, doc = json_set(doc, '$.isRead', json('true'), '$.readAt', ?)
		 WHERE id = ? AND recipient_id = ?`,
		at.UTC().Format(time.RFC3339Nano), id, userID)
}

// MarkAllNotificationsRead flags every unread notification addressed
// directly to userID and returns how many changed.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1, doc = json_set(doc, '$.isRead', json('true'), '$.readAt', ?)
		 WHERE recipient_id = ? AND is_read = 0`,
		at.UTC().Format(time.RFC3339Nano), userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteNotification removes a notification addressed directly to userID.
func (s *Store) DeleteNotification(ctx context.Context, id, userID string) error {
	return execOne(ctx, s.q, notificationEntity,
		`DELETE FROM notifications WHERE id = ? AND recipient_id = ?`, id, userID)
}

// DeleteExpiredNotifications enforces the retention window.
func (s *Store) DeleteExpiredNotifications(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM notifications WHERE expires_at <= ?`, ts(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
