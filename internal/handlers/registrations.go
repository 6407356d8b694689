package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/campushub/eventhub/internal/apperr"
	"github.com/campushub/eventhub/internal/models"
	"github.com/campushub/eventhub/internal/policy"
	"github.com/campushub/eventhub/internal/rules"
	"github.com/campushub/eventhub/internal/store"
	"github.com/google/uuid"
)

var (
	errAlreadyRegistered = apperr.Conflict("registration", "already registered for this event")
	errAlreadyCancelled  = apperr.Validation("registration is already cancelled")
)

// syncCurrentCount stores the event's confirmed registration count. It
// must run on the same Store as the write that changed the count.
func syncCurrentCount(ctx context.Context, tx *store.Store, eventID string, now time.Time) (*models.Event, error) {
	ev, err := tx.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	confirmed, err := tx.CountRegistrations(ctx, eventID, models.RegConfirmed)
	if err != nil {
		return nil, err
	}
	if ev.Registration.CurrentCount == confirmed {
		return ev, nil
	}
	ev.Registration.CurrentCount = confirmed
	ev.UpdatedAt = now
	return ev, tx.UpdateEvent(ctx, ev)
}

// RegisterForEvent handles POST /api/events/{id}/register
//
// Flow: window check, eligibility check, then in one transaction count the
// confirmed registrations, place the registrant and refresh the event's
// confirmed count. The UNIQUE (event, user) key turns a concurrent double
// registration into 409. A user whose earlier registration was cancelled
// gets it back, placed again by capacity.
func (s *Server) RegisterForEvent(w http.ResponseWriter, r *http.Request) {
	p := caller(r)
	if err := authorize(p, policy.RegisterForEvent, policy.Ownership{}); err != nil {
		s.fail(w, r, err)
		return
	}
	ctx := r.Context()
	ev, err := s.Store.GetEvent(ctx, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.Store.GetUser(ctx, p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	now := s.Now()
	if !rules.CanOpenRegistration(ev.Status) {
		s.fail(w, r, rules.ErrOutOfWindow)
		return
	}
	if err := rules.RegistrationWindowCheck(ev, now); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := rules.EligibilityCheck(ev, u); err != nil {
		s.fail(w, r, err)
		return
	}

	var reg *models.Registration
	err = s.Store.WithTx(ctx, func(tx *store.Store) error {
		current, err := tx.GetEvent(ctx, ev.ID)
		if err != nil {
			return err
		}
		confirmed, err := tx.CountRegistrations(ctx, ev.ID, models.RegConfirmed)
		if err != nil {
			return err
		}
		status := rules.CapacityDecision(current, confirmed)

		// The UNIQUE (event, user) key decides; an existing row is only
		// reused when it was cancelled.
		reg = newRegistration(current, u, status, now)
		err = tx.InsertRegistration(ctx, reg)
		if apperr.Is(err, apperr.KindConflict) {
			if reg, err = reactivate(ctx, tx, ev.ID, u.ID, status, now); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		if status == models.RegConfirmed {
			current.Registration.CurrentCount = confirmed + 1
			current.UpdatedAt = now
			if err := tx.UpdateEvent(ctx, current); err != nil {
				return err
			}
		}
		ev = current
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.logDispatch("registration created", s.Notify.RegistrationCreated(ctx, ev, reg))
	s.Log.Info("registration created", "event_id", ev.ID, "user_id", u.ID, "status", reg.Status)
	msg := "registered for event"
	if reg.Status == models.RegWaitlisted {
		msg = "event is full; you have been added to the waitlist"
	}
	created(w, msg, reg)
}

// reactivate gives a cancelled registration back to its user with a new
// place in line. A live registration is a conflict.
func reactivate(ctx context.Context, tx *store.Store, eventID, userID string, status models.RegistrationStatus, now time.Time) (*models.Registration, error) {
	prev, err := tx.GetRegistrationFor(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if prev.Status != models.RegCancelled {
		return nil, errAlreadyRegistered
	}
	prev.Status = status
	prev.RegisteredAt = now
	prev.CancelledAt, prev.PromotedAt = nil, nil
	if err := tx.UpdateRegistration(ctx, prev); err != nil {
		return nil, err
	}
	return prev, nil
}

func newRegistration(ev *models.Event, u *models.User, status models.RegistrationStatus, now time.Time) *models.Registration {
	reg := &models.Registration{
		ID:           uuid.NewString(),
		EventID:      ev.ID,
		UserID:       u.ID,
		EventTitle:   ev.Title,
		UserName:     u.Name,
		UserEmail:    u.Email,
		Department:   u.Department(),
		Status:       status,
		RegisteredAt: now,
		Attendance:   []models.SessionMark{},
	}
	if u.Student != nil {
		reg.Year = u.Student.Year
		reg.Section = u.Student.Section
	}
	return reg
}

// MyRegistrations handles GET /api/registrations/my
func (s *Server) MyRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := s.Store.ListRegistrationsByUser(r.Context(), caller(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "registrations", regs)
}

// EventRegistrations handles GET /api/events/{id}/registrations?status=
func (s *Server) EventRegistrations(w http.ResponseWriter, r *http.Request) {
	ev, err := s.loadEvent(r, "id", policy.ViewRegistrations)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := models.RegistrationStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.RegConfirmed, models.RegWaitlisted, models.RegCancelled:
	default:
		s.fail(w, r, apperr.Validation("invalid query parameter",
			apperr.FieldError{Field: "status", Message: "must be one of: confirmed, waitlisted, cancelled"}))
		return
	}
	regs, err := s.Store.ListRegistrationsByEvent(r.Context(), ev.ID, status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "registrations", regs)
}

// CancelRegistration handles PATCH /api/registrations/{id}/cancel
//
// Cancelling a confirmed registration frees one place, which goes to the
// oldest waitlisted registrant of the event. The event's confirmed count
// is recounted in the same transaction.
func (s *Server) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reg, err := s.Store.GetRegistration(ctx, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ev, err := s.Store.GetEvent(ctx, reg.EventID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p := caller(r)
	own, err := s.ownership(ctx, p, ev)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	own.Self = reg.UserID == p.UserID
	if err := authorize(p, policy.CancelRegistration, own); err != nil {
		s.fail(w, r, err)
		return
	}

	now := s.Now()
	var promoted *models.Registration
	err = s.Store.WithTx(ctx, func(tx *store.Store) error {
		// The status decides whether a place is freed, so it is read again
		// inside the transaction.
		current, err := tx.GetRegistration(ctx, reg.ID)
		if err != nil {
			return err
		}
		if current.Status == models.RegCancelled {
			return errAlreadyCancelled
		}
		wasConfirmed := current.Status == models.RegConfirmed
		done, err := tx.Cancel(ctx, current, now)
		if err != nil {
			return err
		}
		if !done {
			return errAlreadyCancelled
		}
		reg = current
		if wasConfirmed {
			if promoted, err = rules.CancellationPromotion(ctx, tx, ev.ID, now); err != nil {
				return err
			}
		}
		fresh, err := syncCurrentCount(ctx, tx, ev.ID, now)
		if err != nil {
			return err
		}
		ev = fresh
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.logDispatch("registration cancelled", s.Notify.RegistrationCancelled(ctx, ev, reg))
	if promoted != nil {
		s.Log.Info("waitlist promoted", "event_id", ev.ID, "user_id", promoted.UserID)
		s.logDispatch("waitlist promoted", s.Notify.WaitlistPromoted(ctx, ev, promoted))
	}
	ok(w, "registration cancelled", map[string]any{"registration": reg, "promoted": promoted})
}

// ExportRegistrations handles GET /api/events/{id}/registrations/export
// and streams the registrations as CSV.
func (s *Server) ExportRegistrations(w http.ResponseWriter, r *http.Request) {
	ev, err := s.loadEvent(r, "id", policy.ExportRegistrations)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	regs, err := s.Store.ListRegistrationsByEvent(r.Context(), ev.ID, "")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ev.EventCode+"-registrations.csv"))
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"registrationId", "userName", "userEmail", "department", "year", "section", "status",
		"registeredAt", "attendedSessions", "totalSessions", "attendancePercentage",
		"certificateIssued", "feedbackSubmitted",
	})
	for _, reg := range regs {
		_ = cw.Write([]string{
			reg.ID, reg.UserName, reg.UserEmail, reg.Department, reg.Year, reg.Section, string(reg.Status),
			reg.RegisteredAt.Format(time.RFC3339),
			strconv.Itoa(reg.AttendedSessions), strconv.Itoa(reg.TotalSessions),
			strconv.FormatFloat(reg.AttendancePercentage, 'f', 2, 64),
			strconv.FormatBool(reg.Certificate.Issued), strconv.FormatBool(reg.FeedbackSubmitted),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.Log.Warn("registration export interrupted", "event_id", ev.ID, "err", err)
	}
}
