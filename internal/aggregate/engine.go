// Package aggregate keeps derived and denormalized fields consistent with
// the records they are computed from.
//
// The Compute*/Apply* functions are pure. Engine wraps them with store
// reads and writes, both for the inline updates done while handling a
// request and for the periodic sweeps driven by the scheduler. Sweeps never
// stop on a single failing item: they log it, count it and move on.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/campushub/eventhub/internal/apperr"
	"github.com/campushub/eventhub/internal/models"
	"github.com/campushub/eventhub/internal/store"
	"github.com/google/uuid"
)

// ErrNotRegistered is returned by MarkAttendance for a user without an
// active registration for the session's event.
var ErrNotRegistered = &apperr.Error{Kind: apperr.KindValidation, Message: "user is not registered for this event"}

// Engine recomputes derived fields against a Store.
type Engine struct {
	store     *store.Store
	log       *slog.Logger
	retention time.Duration
	// Now is the clock; tests replace it.
	Now func() time.Time
}

// New returns an Engine. retention is how long Analytics and Performance
// snapshots are kept.
func New(st *store.Store, log *slog.Logger, retention time.Duration) *Engine {
	return &Engine{
		store:     st,
		log:       log,
		retention: retention,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithStore returns a copy of e that reads and writes through st, typically
// a transaction-bound Store.
func (e *Engine) WithStore(st *store.Store) *Engine {
	cp := *e
	cp.store = st
	return &cp
}

// RecomputeRegistrationAttendance re-derives a registration's attendance
// fields and certificate eligibility from its embedded list.
func (e *Engine) RecomputeRegistrationAttendance(ctx context.Context, registrationID string) (*models.Registration, error) {
	reg, err := e.store.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	ev, err := e.store.GetEvent(ctx, reg.EventID)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}
	ApplyAttendance(reg, ev)
	if err := e.store.UpdateRegistration(ctx, reg); err != nil {
		return nil, fmt.Errorf("update registration %s: %w", reg.ID, err)
	}
	return reg, nil
}

// MarkAttendance is the unit of work for one (session, user) mark: it
// upserts the Attendance record and updates the owning registration's
// embedded list, derived percentage and eligibility in one transaction, so
// no reader sees the mark without the percentage that reflects it.
func (e *Engine) MarkAttendance(ctx context.Context, ev *models.Event, a *models.Attendance) (*models.Registration, error) {
	var reg *models.Registration
	err := e.store.WithTx(ctx, func(tx *store.Store) error {
		r, err := tx.GetRegistrationFor(ctx, a.EventID, a.UserID)
		if apperr.Is(err, apperr.KindNotFound) {
			return ErrNotRegistered
		}
		if err != nil {
			return err
		}
		if r.Status == models.RegCancelled {
			return ErrNotRegistered
		}
		if a.Department == "" {
			a.Department = r.Department
		}
		if a.UserName == "" {
			a.UserName = r.UserName
		}
		if err := tx.UpsertAttendance(ctx, a); err != nil {
			return fmt.Errorf("upsert attendance: %w", err)
		}
		MarkSession(r, a.SessionID, a.Present, a.MarkedAt)
		ApplyAttendance(r, ev)
		if err := tx.UpdateRegistration(ctx, r); err != nil {
			return fmt.Errorf("update registration: %w", err)
		}
		reg = r
		return nil
	})
	return reg, err
}

// RecomputeSessionAttendance stores the attendance summary of a session.
// records are all attendance records of the session; nil loads them.
func (e *Engine) RecomputeSessionAttendance(ctx context.Context, sessionID string, records []models.Attendance) (*models.Session, error) {
	ses, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		if records, err = e.store.ListAttendanceBySession(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("load attendance: %w", err)
		}
	}
	ses.Attendance = SummarizeSession(records)
	ses.UpdatedAt = e.Now()
	if err := e.store.UpdateSession(ctx, ses); err != nil {
		return nil, fmt.Errorf("update session %s: %w", sessionID, err)
	}
	return ses, nil
}

// RecomputeEventStats overwrites an event's stats and performance blocks,
// resyncs its confirmed count and upserts today's Performance snapshot.
func (e *Engine) RecomputeEventStats(ctx context.Context, eventID string) (*models.Event, error) {
	ev, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	regs, err := e.store.ListRegistrationsByEvent(ctx, eventID, "")
	if err != nil {
		return nil, fmt.Errorf("load registrations: %w", err)
	}
	sessions, err := e.store.ListSessionsByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	feedback, err := e.store.ListFeedbackByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load feedback: %w", err)
	}

	now := e.Now()
	ev.Stats, ev.Performance = ComputeEventStats(ev, regs, sessions, feedback)
	ev.Registration.CurrentCount = ev.Stats.ConfirmedRegistrations
	ev.StatsUpdatedAt = &now
	if err := e.store.UpdateEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("update event %s: %w", eventID, err)
	}

	snap := &models.Performance{
		ID:         uuid.NewString(),
		EntityType: "event",
		EntityID:   ev.ID,
		Date:       now.Format("2006-01-02"),
		Metrics: models.PerformanceMetrics{
			RegistrationRate:  ev.Performance.RegistrationRate,
			DropoutRate:       ev.Performance.DropoutRate,
			EngagementScore:   ev.Performance.EngagementScore,
			AverageAttendance: ev.Stats.AverageAttendance,
			CompletionRate:    ev.Stats.CompletionRate,
		},
		CreatedAt: now,
		ExpiresAt: now.Add(e.retention),
	}
	if err := e.store.UpsertPerformance(ctx, snap); err != nil {
		return nil, fmt.Errorf("performance snapshot %s: %w", eventID, err)
	}
	return ev, nil
}

// RecomputeUserAnalytics overwrites a user's cached analytics.
func (e *Engine) RecomputeUserAnalytics(ctx context.Context, userID string) (*models.User, error) {
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	regs, err := e.store.ListRegistrationsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load registrations: %w", err)
	}
	certs, err := e.store.CountCertificatesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count certificates: %w", err)
	}
	u.Analytics = ComputeUserAnalytics(u, regs, certs)
	if err := e.store.UpdateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("update user %s: %w", userID, err)
	}
	return u, nil
}

// GeneratePeriodSummary returns the platform snapshot for [start, end),
// creating it if no snapshot for exactly that period and window exists.
// created is false when an existing snapshot was returned unchanged.
func (e *Engine) GeneratePeriodSummary(ctx context.Context, period models.Period, start, end time.Time) (a *models.Analytics, created bool, err error) {
	if !end.After(start) {
		return nil, false, apperr.Validation("window end must be after its start",
			apperr.FieldError{Field: "endDate", Message: "must be after startDate"})
	}
	existing, err := e.store.GetAnalytics(ctx, period, start, end)
	if err == nil {
		return existing, false, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, false, err
	}

	win, err := e.store.CountWindow(ctx, start, end)
	if err != nil {
		return nil, false, err
	}
	all, err := e.store.CountWindow(ctx, time.Time{}, time.Time{})
	if err != nil {
		return nil, false, err
	}

	now := e.Now()
	snap := &models.Analytics{
		ID:          uuid.NewString(),
		Period:      period,
		WindowStart: start.UTC(),
		WindowEnd:   end.UTC(),
		Summary: models.PlatformSummary{
			NewUsers:           win.Users,
			TotalUsers:         all.Users,
			NewEvents:          win.Events,
			TotalEvents:        all.Events,
			ActiveEvents:       all.ActiveEvents,
			NewRegistrations:   win.Registrations,
			TotalRegistrations: all.Registrations,
			AttendanceMarked:   win.AttendanceMarked,
			PresentCount:       win.PresentCount,
			AttendanceRate:     Percent(win.PresentCount, win.AttendanceMarked),
			CertificatesIssued: win.Certificates,
			FeedbackCount:      win.Feedback,
		},
		GeneratedAt: now,
		ExpiresAt:   now.Add(e.retention),
	}
	return e.store.InsertAnalyticsIfAbsent(ctx, snap)
}

// GenerateLastPeriod generates the summary of the last complete window of
// a daily, weekly or monthly period.
func (e *Engine) GenerateLastPeriod(ctx context.Context, period models.Period) (*models.Analytics, bool, error) {
	start, end, ok := PeriodWindow(period, e.Now())
	if !ok {
		return nil, false, apperr.Validation("unknown period",
			apperr.FieldError{Field: "period", Message: "must be daily, weekly or monthly"})
	}
	return e.GeneratePeriodSummary(ctx, period, start, end)
}

// CleanupResult counts the documents removed by Cleanup.
type CleanupResult struct {
	Notifications int64 `json:"notifications"`
	Analytics     int64 `json:"analytics"`
}

// Cleanup removes notifications and snapshots past their expiry.
func (e *Engine) Cleanup(ctx context.Context, now time.Time) (CleanupResult, error) {
	var res CleanupResult
	var errs []error
	n, err := e.store.DeleteExpiredNotifications(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("notifications: %w", err))
	}
	res.Notifications = n
	a, err := e.store.DeleteExpiredAnalytics(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("analytics: %w", err))
	}
	res.Analytics = a
	e.log.Info("cleanup finished", "notifications", res.Notifications, "snapshots", res.Analytics)
	return res, errors.Join(errs...)
}
