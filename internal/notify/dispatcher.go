package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/campushub/eventhub/internal/models"
	"github.com/campushub/eventhub/internal/store"
	"github.com/google/uuid"
)

// Dispatcher fans domain events out to the persisted and ephemeral
// channels. The two are independent: a push is attempted even when the
// store write failed, and a failed push never surfaces to the caller.
type Dispatcher struct {
	store     *store.Store
	hub       Broadcaster
	log       *slog.Logger
	retention time.Duration
	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewDispatcher returns a Dispatcher. A nil Broadcaster disables the
// ephemeral channel.
func NewDispatcher(st *store.Store, hub Broadcaster, log *slog.Logger, retention time.Duration) *Dispatcher {
	return &Dispatcher{
		store:     st,
		hub:       hub,
		log:       log,
		retention: retention,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// draft is the addressing-independent part of a notification.
type draft struct {
	typ     models.NotificationType
	title   string
	message string
	data    map[string]any
}

func (d *Dispatcher) build(dr draft) models.Notification {
	now := d.Now()
	return models.Notification{
		ID:        uuid.NewString(),
		Type:      dr.typ,
		Title:     dr.title,
		Message:   dr.message,
		Data:      dr.data,
		CreatedAt: now,
		ExpiresAt: now.Add(d.retention),
	}
}

func (d *Dispatcher) toUsers(dr draft, ids ...string) []models.Notification {
	out := make([]models.Notification, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		n := d.build(dr)
		n.RecipientID = id
		out = append(out, n)
	}
	return out
}

func (d *Dispatcher) toRole(dr draft, role models.UserRole) models.Notification {
	n := d.build(dr)
	n.RecipientRole = role
	return n
}

func (d *Dispatcher) toEveryone(dr draft) models.Notification {
	n := d.build(dr)
	n.Broadcast = true
	return n
}

// persist writes the notifications in one transaction.
func (d *Dispatcher) persist(ctx context.Context, kind models.NotificationType, list []models.Notification) error {
	if len(list) == 0 {
		return nil
	}
	err := d.store.WithTx(ctx, func(tx *store.Store) error {
		for i := range list {
			if err := tx.InsertNotification(ctx, &list[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		d.log.Error("persist notifications", "type", kind, "count", len(list), "err", err)
		return fmt.Errorf("persist %s notifications: %w", kind, err)
	}
	return nil
}

// push sends msg to each room, logging failures. An empty room is not a
// failure worth more than a debug line.
func (d *Dispatcher) push(dr draft, rooms ...string) {
	if d.hub == nil {
		return
	}
	msg := Message{Type: string(dr.typ), Data: pushData(dr), At: d.Now()}
	for _, room := range rooms {
		err := d.hub.Broadcast(room, msg)
		switch {
		case err == nil:
		case errors.Is(err, ErrNoListeners):
			d.log.Debug("no listeners", "room", room, "type", dr.typ)
		default:
			d.log.Warn("broadcast failed", "room", room, "type", dr.typ, "err", err)
		}
	}
}

func pushData(dr draft) map[string]any {
	out := map[string]any{"title": dr.title, "message": dr.message}
	for k, v := range dr.data {
		out[k] = v
	}
	return out
}

func eventData(ev *models.Event) map[string]any {
	return map[string]any{"eventId": ev.ID, "eventCode": ev.EventCode, "eventTitle": ev.Title}
}

// EventCreated announces a new event to the students of its eligible
// departments, or to every student when it has no department restriction,
// and asks admins for approval.
func (d *Dispatcher) EventCreated(ctx context.Context, ev *models.Event) error {
	dr := draft{
		typ:     models.NotifyEventCreated,
		title:   "New event: " + ev.Title,
		message: fmt.Sprintf("%s starts on %s.", ev.Title, ev.StartDate.Format("Jan 2, 2006")),
		data:    eventData(ev),
	}
	review := draft{
		typ:     models.NotifyEventCreated,
		title:   "Event awaiting approval",
		message: fmt.Sprintf("%s by %s needs review.", ev.Title, ev.CoordinatorName),
		data:    eventData(ev),
	}

	list := []models.Notification{d.toRole(review, models.RoleAdmin)}
	var rooms []string
	if depts := ev.Eligibility.Departments; len(depts) > 0 {
		ids, err := d.store.UserIDsByDepartment(ctx, models.RoleStudent, depts)
		if err != nil {
			d.log.Error("resolve event audience", "event_id", ev.ID, "err", err)
		}
		list = append(list, d.toUsers(dr, ids...)...)
		for _, id := range ids {
			rooms = append(rooms, UserRoom(id))
		}
	} else {
		list = append(list, d.toRole(dr, models.RoleStudent))
		rooms = append(rooms, RoleRoom(models.RoleStudent))
	}

	err := d.persist(ctx, dr.typ, list)
	d.push(dr, rooms...)
	d.push(review, RoleRoom(models.RoleAdmin))
	return err
}

// EventApproved tells the coordinator and, since the event just became
// visible, everyone.
func (d *Dispatcher) EventApproved(ctx context.Context, ev *models.Event) error {
	dr := draft{
		typ:     models.NotifyEventApproved,
		title:   "Event approved",
		message: ev.Title + " has been approved.",
		data:    eventData(ev),
	}
	list := append(d.toUsers(dr, ev.CoordinatorID), d.toEveryone(dr))
	err := d.persist(ctx, dr.typ, list)
	d.push(dr, UserRoom(ev.CoordinatorID), RoomAll)
	return err
}

// EventRejected tells the coordinator why.
func (d *Dispatcher) EventRejected(ctx context.Context, ev *models.Event) error {
	data := eventData(ev)
	data["reason"] = ev.Approval.RejectionReason
	dr := draft{
		typ:     models.NotifyEventRejected,
		title:   "Event rejected",
		message: fmt.Sprintf("%s was rejected: %s", ev.Title, ev.Approval.RejectionReason),
		data:    data,
	}
	err := d.persist(ctx, dr.typ, d.toUsers(dr, ev.CoordinatorID))
	d.push(dr, UserRoom(ev.CoordinatorID))
	return err
}

func sessionData(ev *models.Event, ses *models.Session) map[string]any {
	data := eventData(ev)
	data["sessionId"] = ses.ID
	data["sessionTitle"] = ses.Title
	data["sequence"] = ses.Sequence
	return data
}

func (d *Dispatcher) sessionChanged(ctx context.Context, dr draft, ev *models.Event, ses *models.Session) error {
	ids, err := d.store.ParticipantIDs(ctx, ev.ID)
	if err != nil {
		d.log.Error("resolve participants", "event_id", ev.ID, "err", err)
	}
	perr := d.persist(ctx, dr.typ, d.toUsers(dr, ids...))
	rooms := []string{EventRoom(ev.ID), RoleRoom(models.RoleAdmin), RoleRoom(models.RoleFaculty)}
	if ses.TrainerID != "" {
		rooms = append(rooms, UserRoom(ses.TrainerID))
	}
	d.push(dr, rooms...)
	return errors.Join(err, perr)
}

// SessionStarted tells the event's participants and staff a session began.
func (d *Dispatcher) SessionStarted(ctx context.Context, ev *models.Event, ses *models.Session) error {
	return d.sessionChanged(ctx, draft{
		typ:     models.NotifySessionStarted,
		title:   "Session started",
		message: fmt.Sprintf("%s of %s has started.", ses.Title, ev.Title),
		data:    sessionData(ev, ses),
	}, ev, ses)
}

// SessionEnded tells the event's participants and staff a session ended.
func (d *Dispatcher) SessionEnded(ctx context.Context, ev *models.Event, ses *models.Session) error {
	return d.sessionChanged(ctx, draft{
		typ:     models.NotifySessionEnded,
		title:   "Session ended",
		message: fmt.Sprintf("%s of %s has ended.", ses.Title, ev.Title),
		data:    sessionData(ev, ses),
	}, ev, ses)
}

// AttendanceMarked reports a session's updated attendance summary to the
// coordinator, the staff rooms and the event room.
func (d *Dispatcher) AttendanceMarked(ctx context.Context, ev *models.Event, ses *models.Session) error {
	data := sessionData(ev, ses)
	data["attendance"] = ses.Attendance
	dr := draft{
		typ:   models.NotifyAttendanceMarked,
		title: "Attendance marked",
		message: fmt.Sprintf("%s: %d of %d present (%.2f%%).",
			ses.Title, ses.Attendance.Present, ses.Attendance.Total, ses.Attendance.Percentage),
		data: data,
	}
	err := d.persist(ctx, dr.typ, d.toUsers(dr, ev.CoordinatorID))
	d.push(dr, RoleRoom(models.RoleAdmin), RoleRoom(models.RoleFaculty), EventRoom(ev.ID))
	return err
}

func registrationData(ev *models.Event, r *models.Registration) map[string]any {
	data := eventData(ev)
	data["registrationId"] = r.ID
	data["status"] = r.Status
	data["currentCount"] = ev.Registration.CurrentCount
	return data
}

// RegistrationCreated confirms the registration to the registrant and
// broadcasts the new count.
func (d *Dispatcher) RegistrationCreated(ctx context.Context, ev *models.Event, r *models.Registration) error {
	msg := "You are registered for " + ev.Title + "."
	if r.Status == models.RegWaitlisted {
		msg = "You are on the waitlist for " + ev.Title + "."
	}
	dr := draft{
		typ:     models.NotifyRegistrationCreated,
		title:   "Registration received",
		message: msg,
		data:    registrationData(ev, r),
	}
	err := d.persist(ctx, dr.typ, d.toUsers(dr, r.UserID))
	d.push(dr, RoomAll)
	return err
}

// RegistrationCancelled confirms the cancellation to the registrant and
// broadcasts the new count.
func (d *Dispatcher) RegistrationCancelled(ctx context.Context, ev *models.Event, r *models.Registration) error {
	dr := draft{
		typ:     models.NotifyRegistrationCancelled,
		title:   "Registration cancelled",
		message: "Your registration for " + ev.Title + " was cancelled.",
		data:    registrationData(ev, r),
	}
	err := d.persist(ctx, dr.typ, d.toUsers(dr, r.UserID))
	d.push(dr, RoomAll)
	return err
}

// WaitlistPromoted tells a promoted registrant they now hold a place.
func (d *Dispatcher) WaitlistPromoted(ctx context.Context, ev *models.Event, r *models.Registration) error {
	dr := draft{
		typ:     models.NotifyWaitlistPromoted,
		title:   "You're in",
		message: "A place opened up and your registration for " + ev.Title + " is confirmed.",
		data:    registrationData(ev, r),
	}
	err := d.persist(ctx, dr.typ, d.toUsers(dr, r.UserID))
	d.push(dr, UserRoom(r.UserID), RoomAll)
	return err
}

// CertificateReady tells the holder a certificate was issued.
func (d *Dispatcher) CertificateReady(ctx context.Context, c *models.Certificate) error {
	dr := draft{
		typ:     models.NotifyCertificateReady,
		title:   "Certificate ready",
		message: "Your certificate for " + c.EventTitle + " is ready.",
		data: map[string]any{
			"certificateId":     c.ID,
			"certificateNumber": c.CertificateNumber,
			"verificationCode":  c.VerificationCode,
			"eventId":           c.EventID,
		},
	}
	err := d.persist(ctx, dr.typ, d.toUsers(dr, c.UserID))
	d.push(dr, UserRoom(c.UserID))
	return err
}

// FeedbackRequest asks every confirmed participant for feedback.
func (d *Dispatcher) FeedbackRequest(ctx context.Context, ev *models.Event) error {
	dr := draft{
		typ:     models.NotifyFeedbackRequest,
		title:   "Share your feedback",
		message: "Tell us how " + ev.Title + " went.",
		data:    eventData(ev),
	}
	ids, err := d.store.ParticipantIDs(ctx, ev.ID)
	if err != nil {
		d.log.Error("resolve participants", "event_id", ev.ID, "err", err)
	}
	perr := d.persist(ctx, dr.typ, d.toUsers(dr, ids...))
	d.push(dr, EventRoom(ev.ID))
	return errors.Join(err, perr)
}
