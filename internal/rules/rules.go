// Package rules holds the registration decisions consulted before a
// Registration is created or changed. Everything except
// CancellationPromotion is a pure function of its arguments.
package rules

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/campushub/eventhub/internal/apperr"
	"github.com/campushub/eventhub/internal/models"
)

var (
	ErrOutOfWindow = &apperr.Error{Kind: apperr.KindValidation, Message: "registration is not open for this event"}
	ErrNotEligible = &apperr.Error{Kind: apperr.KindForbidden, Message: "you are not eligible to register for this event"}
)

// RegistrationWindowCheck fails with ErrOutOfWindow unless registration is
// required, open, and now lies inside [StartDate, EndDate]. A missing bound
// is unbounded on that side.
func RegistrationWindowCheck(ev *models.Event, now time.Time) error {
	reg := ev.Registration
	if !reg.Required || !reg.IsOpen {
		return ErrOutOfWindow
	}
	if reg.StartDate != nil && now.Before(*reg.StartDate) {
		return ErrOutOfWindow
	}
	if reg.EndDate != nil && now.After(*reg.EndDate) {
		return ErrOutOfWindow
	}
	return nil
}

// EligibilityCheck fails with ErrNotEligible when a student's profile is
// missing from any non-empty eligibility list. Other roles always pass.
func EligibilityCheck(ev *models.Event, u *models.User) error {
	if u.Role != models.RoleStudent {
		return nil
	}
	var p models.StudentProfile
	if u.Student != nil {
		p = *u.Student
	}
	el := ev.Eligibility
	if !allows(el.Departments, p.Department) ||
		!allows(el.Programs, p.Program) ||
		!allows(el.Years, p.Year) ||
		!allows(el.Sections, p.Section) {
		return ErrNotEligible
	}
	return nil
}

func allows(list []string, v string) bool {
	return len(list) == 0 || slices.Contains(list, v)
}

// CapacityDecision places the next registrant. A count equal to the
// capacity waitlists.
func CapacityDecision(ev *models.Event, confirmed int) models.RegistrationStatus {
	limit := ev.Registration.MaxParticipants
	if limit == nil || confirmed < *limit {
		return models.RegConfirmed
	}
	return models.RegWaitlisted
}

// Waitlist is the store surface CancellationPromotion needs. Promote
// reports false when the registration already left the waitlist.
type Waitlist interface {
	OldestWaitlisted(ctx context.Context, eventID string) (*models.Registration, error)
	Promote(ctx context.Context, r *models.Registration, at time.Time) (bool, error)
}

// CancellationPromotion promotes the oldest waitlisted registration of the
// event and returns it, or returns nil when the waitlist is empty. It
// promotes at most one registration per call; if a concurrent writer takes
// the candidate first the next oldest is tried.
func CancellationPromotion(ctx context.Context, w Waitlist, eventID string, now time.Time) (*models.Registration, error) {
	for attempt := 0; attempt < 5; attempt++ {
		next, err := w.OldestWaitlisted(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("find waitlisted: %w", err)
		}
		if next == nil {
			return nil, nil
		}
		ok, err := w.Promote(ctx, next, now)
		if err != nil {
			return nil, fmt.Errorf("promote %s: %w", next.ID, err)
		}
		if ok {
			return next, nil
		}
	}
	return nil, errors.New("waitlist promotion kept losing to concurrent writers")
}

// CanOpenRegistration reports whether registration may be open for an
// event in the given status.
func CanOpenRegistration(status models.EventStatus) bool {
	return status == models.EventApproved || status == models.EventOngoing
}

var transitions = map[models.EventStatus][]models.EventStatus{
	models.EventDraft:     {models.EventPending, models.EventCancelled},
	models.EventPending:   {models.EventApproved, models.EventRejected, models.EventCancelled},
	models.EventRejected:  {models.EventPending},
	models.EventApproved:  {models.EventOngoing, models.EventCompleted, models.EventCancelled},
	models.EventOngoing:   {models.EventCompleted, models.EventCancelled},
	models.EventCompleted: nil,
	models.EventCancelled: nil,
}

// CanTransition reports whether an event may move from one status to
// another.
func CanTransition(from, to models.EventStatus) bool {
	return slices.Contains(transitions[from], to)
}
