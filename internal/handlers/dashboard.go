package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/campushub/eventhub/internal/models"
	"github.com/campushub/eventhub/internal/policy"
	"github.com/campushub/eventhub/internal/store"
	"golang.org/x/sync/errgroup"
)

const dashboardListSize = 5

// AdminDashboard is the dashboard of an administrator.
type AdminDashboard struct {
	Users           map[models.UserRole]int    `json:"users"`
	Events          map[models.EventStatus]int `json:"events"`
	PendingApproval []models.Event             `json:"pendingApproval"`
	OngoingSessions int                        `json:"ongoingSessions"`
	Platform        store.Counts               `json:"platform"`
	LatestSummary   *models.Analytics          `json:"latestSummary,omitempty"`
	Realtime        map[string]int             `json:"realtime"`
}

// FacultyDashboard is the dashboard of a faculty coordinator.
type FacultyDashboard struct {
	MyEvents     []models.Event             `json:"myEvents"`
	MyEventCount int                        `json:"myEventCount"`
	ByStatus     map[models.EventStatus]int `json:"byStatus"`
	Upcoming     []models.Event             `json:"upcoming"`
}

// TrainerDashboard is the dashboard of a session trainer.
type TrainerDashboard struct {
	Sessions  []models.Session `json:"sessions"`
	Upcoming  []models.Session `json:"upcoming"`
	Completed int              `json:"completed"`
}

// StudentDashboard is the dashboard of a student.
type StudentDashboard struct {
	Analytics     models.UserAnalytics  `json:"analytics"`
	Registrations []models.Registration `json:"registrations"`
	Certificates  []models.Certificate  `json:"certificates"`
	OpenEvents    []models.Event        `json:"openEvents"`
	Unread        int                   `json:"unreadNotifications"`
}

var dashboardStatuses = []models.EventStatus{
	models.EventDraft, models.EventPending, models.EventApproved, models.EventRejected,
	models.EventOngoing, models.EventCompleted, models.EventCancelled,
}

// Dashboard handles GET /api/dashboard and returns the caller's role
// summary. Independent reads run concurrently.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	p := caller(r)
	if err := authorize(p, policy.ViewDashboard, policy.Ownership{}); err != nil {
		s.fail(w, r, err)
		return
	}
	var (
		data any
		err  error
	)
	switch p.Role {
	case models.RoleAdmin:
		data, err = s.adminDashboard(r.Context())
	case models.RoleFaculty:
		data, err = s.facultyDashboard(r.Context(), p)
	case models.RoleTrainer:
		data, err = s.trainerDashboard(r.Context(), p)
	default:
		data, err = s.studentDashboard(r.Context(), p)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "dashboard", data)
}

// countByStatus counts events per status, optionally for one coordinator.
func (s *Server) countByStatus(ctx context.Context, coordinatorID string) (map[models.EventStatus]int, error) {
	out := make(map[models.EventStatus]int, len(dashboardStatuses))
	for _, st := range dashboardStatuses {
		n, err := s.Store.CountEvents(ctx, store.EventFilter{
			Statuses: []models.EventStatus{st}, CoordinatorID: coordinatorID,
		})
		if err != nil {
			return nil, err
		}
		out[st] = n
	}
	return out, nil
}

func (s *Server) adminDashboard(ctx context.Context) (*AdminDashboard, error) {
	d := &AdminDashboard{Realtime: map[string]int{"clients": s.Hub.Clients()}}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Users, err = s.Store.CountUsersByRole(ctx)
		return err
	})
	g.Go(func() (err error) {
		d.Events, err = s.countByStatus(ctx, "")
		return err
	})
	g.Go(func() (err error) {
		d.PendingApproval, _, err = s.Store.ListEvents(ctx, store.EventFilter{
			Statuses: []models.EventStatus{models.EventPending},
			Page:     store.Page{Limit: dashboardListSize},
		})
		return err
	})
	g.Go(func() (err error) {
		d.OngoingSessions, err = s.Store.CountSessions(ctx, models.SessionOngoing)
		return err
	})
	g.Go(func() (err error) {
		d.Platform, err = s.Store.CountWindow(ctx, time.Time{}, time.Time{})
		return err
	})
	g.Go(func() error {
		latest, err := s.Store.ListAnalytics(ctx, models.PeriodDaily, 1)
		if err != nil {
			return err
		}
		if len(latest) > 0 {
			d.LatestSummary = &latest[0]
		}
		return nil
	})
	return d, g.Wait()
}

func (s *Server) facultyDashboard(ctx context.Context, p policy.Principal) (*FacultyDashboard, error) {
	d := &FacultyDashboard{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.MyEvents, d.MyEventCount, err = s.Store.ListEvents(ctx, store.EventFilter{
			CoordinatorID: p.UserID,
			Page:          store.Page{Limit: dashboardListSize},
		})
		return err
	})
	g.Go(func() (err error) {
		d.ByStatus, err = s.countByStatus(ctx, p.UserID)
		return err
	})
	g.Go(func() (err error) {
		d.Upcoming, _, err = s.Store.ListEvents(ctx, store.EventFilter{
			Statuses: []models.EventStatus{models.EventApproved, models.EventOngoing},
			Page:     store.Page{Limit: dashboardListSize},
		})
		return err
	})
	return d, g.Wait()
}

func (s *Server) trainerDashboard(ctx context.Context, p policy.Principal) (*TrainerDashboard, error) {
	sessions, err := s.Store.ListSessionsByTrainer(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	d := &TrainerDashboard{Sessions: sessions, Upcoming: []models.Session{}}
	now := s.Now()
	for _, ses := range sessions {
		switch {
		case ses.Status == models.SessionCompleted:
			d.Completed++
		case ses.Status == models.SessionOngoing || ses.ScheduledStart.After(now):
			d.Upcoming = append(d.Upcoming, ses)
		}
	}
	return d, nil
}

func (s *Server) studentDashboard(ctx context.Context, p policy.Principal) (*StudentDashboard, error) {
	d := &StudentDashboard{}
	u, err := s.Store.GetUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	d.Analytics = u.Analytics

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Registrations, err = s.Store.ListRegistrationsByUser(ctx, p.UserID)
		return err
	})
	g.Go(func() (err error) {
		d.Certificates, err = s.Store.ListCertificatesByUser(ctx, p.UserID)
		return err
	})
	g.Go(func() (err error) {
		d.OpenEvents, _, err = s.Store.ListEvents(ctx, store.EventFilter{
			Statuses:   []models.EventStatus{models.EventApproved, models.EventOngoing},
			Department: u.Department(),
			Page:       store.Page{Limit: dashboardListSize},
		})
		return err
	})
	g.Go(func() (err error) {
		_, _, d.Unread, err = s.Store.ListNotifications(ctx, p.UserID, p.Role, true, store.Page{Limit: 1})
		return err
	})
	return d, g.Wait()
}
