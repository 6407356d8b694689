package aggregate

import (
	"context"
	"fmt"
	"slices"

	"github.com/campushub/eventhub/internal/apperr"
	"github.com/campushub/eventhub/internal/models"
)

// maxReportedErrors caps BatchResult.Errors; Failed still counts them all.
const maxReportedErrors = 50

// ItemError is one failed item of a sweep.
type ItemError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchResult reports the outcome of a sweep. A sweep with failed items is
// still a completed sweep.
type BatchResult struct {
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors,omitempty"`
}

func (b *BatchResult) record(id string, err error) {
	b.Total++
	if err == nil {
		b.Succeeded++
		return
	}
	b.Failed++
	if len(b.Errors) < maxReportedErrors {
		b.Errors = append(b.Errors, ItemError{ID: id, Error: err.Error()})
	}
}

func (b *BatchResult) merge(o BatchResult) {
	b.Total += o.Total
	b.Succeeded += o.Succeeded
	b.Failed += o.Failed
	for _, e := range o.Errors {
		if len(b.Errors) >= maxReportedErrors {
			break
		}
		b.Errors = append(b.Errors, e)
	}
}

// sweep applies fn to each id, logging and counting failures. It stops
// early only when ctx is cancelled.
func (e *Engine) sweep(ctx context.Context, name string, ids []string, fn func(ctx context.Context, id string) error) BatchResult {
	var res BatchResult
	for _, id := range ids {
		if ctx.Err() != nil {
			e.log.Warn("sweep interrupted", "sweep", name, "done", res.Total, "remaining", len(ids)-res.Total)
			break
		}
		err := fn(ctx, id)
		if err != nil {
			e.log.Warn("sweep item failed", "sweep", name, "id", id, "err", err)
		}
		res.record(id, err)
	}
	e.log.Info("sweep finished", "sweep", name, "total", res.Total, "succeeded", res.Succeeded, "failed", res.Failed)
	return res
}

// statsStatuses are the event states whose statistics can still change.
var statsStatuses = []models.EventStatus{models.EventApproved, models.EventOngoing, models.EventCompleted}

// RecomputeAllEventStats recomputes stats for every approved, ongoing or
// completed event.
func (e *Engine) RecomputeAllEventStats(ctx context.Context) (BatchResult, error) {
	ids, err := e.store.EventIDs(ctx, statsStatuses...)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list events: %w", err)
	}
	return e.sweep(ctx, "event-stats", ids, func(ctx context.Context, id string) error {
		_, err := e.RecomputeEventStats(ctx, id)
		return err
	}), nil
}

// RecomputeAllUserAnalytics recomputes analytics for every student.
func (e *Engine) RecomputeAllUserAnalytics(ctx context.Context) (BatchResult, error) {
	ids, err := e.store.UserIDs(ctx, models.RoleStudent)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list students: %w", err)
	}
	return e.sweep(ctx, "user-analytics", ids, func(ctx context.Context, id string) error {
		_, err := e.RecomputeUserAnalytics(ctx, id)
		return err
	}), nil
}

// lookup caches owner documents for RefreshDenormalized. A nil entry means
// the owner no longer exists.
type lookup struct {
	e        *Engine
	events   map[string]*models.Event
	users    map[string]*models.User
	sessions map[string]*models.Session
}

func (l *lookup) event(ctx context.Context, id string) (*models.Event, error) {
	if v, ok := l.events[id]; ok {
		return v, nil
	}
	v, err := l.e.store.GetEvent(ctx, id)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}
	l.events[id] = v
	return v, nil
}

func (l *lookup) user(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, nil
	}
	if v, ok := l.users[id]; ok {
		return v, nil
	}
	v, err := l.e.store.GetUser(ctx, id)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}
	l.users[id] = v
	return v, nil
}

func (l *lookup) session(ctx context.Context, id string) (*models.Session, error) {
	if v, ok := l.sessions[id]; ok {
		return v, nil
	}
	v, err := l.e.store.GetSession(ctx, id)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}
	l.sessions[id] = v
	return v, nil
}

// RefreshDenormalized rewrites the snapshot fields carried by sessions,
// registrations and attendance records from their owning documents, and
// fills in fields missing from older documents. Documents whose owner was
// deleted keep their last snapshot.
func (e *Engine) RefreshDenormalized(ctx context.Context) (BatchResult, error) {
	l := &lookup{
		e:        e,
		events:   map[string]*models.Event{},
		users:    map[string]*models.User{},
		sessions: map[string]*models.Session{},
	}
	var total BatchResult

	sessionIDs, err := e.store.SessionIDs(ctx)
	if err != nil {
		return total, fmt.Errorf("list sessions: %w", err)
	}
	total.merge(e.sweep(ctx, "refresh-sessions", sessionIDs, func(ctx context.Context, id string) error {
		ses, err := e.store.GetSession(ctx, id)
		if err != nil {
			return err
		}
		before := *ses
		ev, err := l.event(ctx, ses.EventID)
		if err != nil {
			return err
		}
		if ev != nil {
			ses.EventTitle = ev.Title
		}
		trainer, err := l.user(ctx, ses.TrainerID)
		if err != nil {
			return err
		}
		if trainer != nil {
			ses.TrainerName = trainer.Name
		}
		if ses.Materials == nil {
			ses.Materials = []models.Material{}
		}
		l.sessions[id] = ses
		if ses.EventTitle == before.EventTitle && ses.TrainerName == before.TrainerName && before.Materials != nil {
			return nil
		}
		return e.store.UpdateSession(ctx, ses)
	}))

	regIDs, err := e.store.RegistrationIDs(ctx)
	if err != nil {
		return total, fmt.Errorf("list registrations: %w", err)
	}
	total.merge(e.sweep(ctx, "refresh-registrations", regIDs, func(ctx context.Context, id string) error {
		reg, err := e.store.GetRegistration(ctx, id)
		if err != nil {
			return err
		}
		before := *reg
		before.Attendance = slices.Clone(reg.Attendance)
		ev, err := l.event(ctx, reg.EventID)
		if err != nil {
			return err
		}
		if ev != nil {
			reg.EventTitle = ev.Title
		}
		u, err := l.user(ctx, reg.UserID)
		if err != nil {
			return err
		}
		if u != nil {
			reg.UserName = u.Name
			reg.UserEmail = u.Email
			reg.Department = u.Department()
			if u.Student != nil {
				reg.Year = u.Student.Year
				reg.Section = u.Student.Section
			}
		}
		ApplyAttendance(reg, ev)
		if sameRegistration(&before, reg) {
			return nil
		}
		return e.store.UpdateRegistration(ctx, reg)
	}))

	attIDs, err := e.store.AttendanceIDs(ctx)
	if err != nil {
		return total, fmt.Errorf("list attendance: %w", err)
	}
	total.merge(e.sweep(ctx, "refresh-attendance", attIDs, func(ctx context.Context, id string) error {
		a, err := e.store.GetAttendanceByID(ctx, id)
		if err != nil {
			return err
		}
		before := *a
		if ev, err := l.event(ctx, a.EventID); err != nil {
			return err
		} else if ev != nil {
			a.EventTitle = ev.Title
		}
		if ses, err := l.session(ctx, a.SessionID); err != nil {
			return err
		} else if ses != nil {
			a.SessionTitle = ses.Title
		}
		if u, err := l.user(ctx, a.UserID); err != nil {
			return err
		} else if u != nil {
			a.UserName = u.Name
			a.Department = u.Department()
		}
		if *a == before {
			return nil
		}
		return e.store.UpdateAttendanceSnapshot(ctx, a)
	}))

	return total, nil
}

func sameRegistration(a, b *models.Registration) bool {
	return a.EventTitle == b.EventTitle &&
		a.UserName == b.UserName &&
		a.UserEmail == b.UserEmail &&
		a.Department == b.Department &&
		a.Year == b.Year &&
		a.Section == b.Section &&
		a.AttendedSessions == b.AttendedSessions &&
		a.TotalSessions == b.TotalSessions &&
		a.AttendancePercentage == b.AttendancePercentage &&
		a.Certificate.Eligible == b.Certificate.Eligible &&
		a.Attendance != nil
}
