package handlers

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/campushub/eventhub/internal/aggregate"
	"github.com/campushub/eventhub/internal/apperr"
	"github.com/campushub/eventhub/internal/models"
	"github.com/campushub/eventhub/internal/policy"
	"github.com/campushub/eventhub/internal/rules"
	"github.com/campushub/eventhub/internal/store"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// studentVisible are the statuses a student may browse.
var studentVisible = []models.EventStatus{models.EventApproved, models.EventOngoing, models.EventCompleted}

// ownership resolves how p relates to ev. Trainers own an event when they
// run at least one of its sessions.
func (s *Server) ownership(ctx context.Context, p policy.Principal, ev *models.Event) (policy.Ownership, error) {
	own := policy.Ownership{Coordinator: ev.CoordinatorID == p.UserID}
	if p.Role != models.RoleTrainer {
		return own, nil
	}
	sessions, err := s.Store.ListSessionsByEvent(ctx, ev.ID)
	if err != nil {
		return own, err
	}
	own.Trainer = slices.ContainsFunc(sessions, func(ses models.Session) bool {
		return ses.TrainerID == p.UserID
	})
	return own, nil
}

// loadEvent fetches the event named by the {id} path value and checks
// that the caller may perform a on it.
func (s *Server) loadEvent(r *http.Request, key string, a policy.Action) (*models.Event, error) {
	ev, err := s.Store.GetEvent(r.Context(), r.PathValue(key))
	if err != nil {
		return nil, err
	}
	p := caller(r)
	own, err := s.ownership(r.Context(), p, ev)
	if err != nil {
		return nil, err
	}
	if err := authorize(p, a, own); err != nil {
		return nil, err
	}
	return ev, nil
}

func newEventCode(at time.Time) string {
	return "EVT-" + at.Format("20060102") + "-" + randomCode(6)
}

// applyEventRequest copies the client-editable fields of req onto ev.
// Derived blocks and the confirmed count are left alone.
func applyEventRequest(ev *models.Event, req *models.EventRequest) {
	ev.Title = strings.TrimSpace(req.Title)
	ev.Description = req.Description
	ev.Category = req.Category
	ev.Type = req.Type
	ev.Venue = req.Venue
	ev.StartDate = req.StartDate.UTC()
	ev.EndDate = req.EndDate.UTC()
	ev.Eligibility = req.Eligibility
	ev.Registration.Required = req.Registration.Required
	ev.Registration.StartDate = req.Registration.StartDate
	ev.Registration.EndDate = req.Registration.EndDate
	ev.Registration.MaxParticipants = req.Registration.MaxParticipants
	if !ev.Registration.Required {
		ev.Registration.IsOpen = false
	}
	ev.Certificate = req.Certificate
	ev.Feedback = req.Feedback
}

func checkEventRequest(req *models.EventRequest) error {
	reg := req.Registration
	if reg.StartDate != nil && reg.EndDate != nil && reg.EndDate.Before(*reg.StartDate) {
		return apperr.Validation("validation failed",
			apperr.FieldError{Field: "registration.endDate", Message: "must be after registration.startDate"})
	}
	if req.Certificate.MinAttendance < 0 || req.Certificate.MinAttendance > 100 {
		return apperr.Validation("validation failed",
			apperr.FieldError{Field: "certificate.minAttendance", Message: "must be between 0 and 100"})
	}
	return nil
}

// ListEvents handles GET /api/events
//
// Query: status (comma separated), category, type, department, search,
// coordinatorId, page, limit. Students only ever see approved, ongoing and
// completed events.
func (s *Server) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pg, page, limit := pageFrom(r)
	f := store.EventFilter{
		Category:      q.Get("category"),
		Type:          models.EventType(q.Get("type")),
		CoordinatorID: q.Get("coordinatorId"),
		Department:    q.Get("department"),
		Search:        strings.TrimSpace(q.Get("search")),
		Page:          pg,
	}
	for _, st := range strings.Split(q.Get("status"), ",") {
		if st = strings.TrimSpace(st); st != "" {
			f.Statuses = append(f.Statuses, models.EventStatus(st))
		}
	}

	if caller(r).Role == models.RoleStudent {
		if len(f.Statuses) == 0 {
			f.Statuses = studentVisible
		} else {
			f.Statuses = slices.DeleteFunc(f.Statuses, func(st models.EventStatus) bool {
				return !slices.Contains(studentVisible, st)
			})
			if len(f.Statuses) == 0 {
				ok(w, "events", paged([]models.Event{}, 0, page, limit))
				return
			}
		}
	}

	events, total, err := s.Store.ListEvents(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "events", paged(events, total, page, limit))
}

// GetEvent handles GET /api/events/{id}
func (s *Server) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.Store.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if caller(r).Role == models.RoleStudent && !slices.Contains(studentVisible, ev.Status) {
		s.fail(w, r, apperr.NotFound("event"))
		return
	}
	ok(w, "event", ev)
}

// CreateEvent handles POST /api/events (admin, faculty)
//
// New events wait for admin approval. The event code is unique; a clash
// on the random suffix is retried with a fresh one.
func (s *Server) CreateEvent(w http.ResponseWriter, r *http.Request) {
	p := caller(r)
	if err := authorize(p, policy.CreateEvent, policy.Ownership{}); err != nil {
		s.fail(w, r, err)
		return
	}
	var req models.EventRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := checkEventRequest(&req); err != nil {
		s.fail(w, r, err)
		return
	}
	coord, err := s.Store.GetUser(r.Context(), p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	now := s.Now()
	ev := &models.Event{
		ID:              uuid.NewString(),
		Status:          models.EventPending,
		CoordinatorID:   coord.ID,
		CoordinatorName: coord.Name,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	applyEventRequest(ev, &req)

	for attempt := 0; ; attempt++ {
		ev.EventCode = newEventCode(now)
		err = s.Store.InsertEvent(r.Context(), ev)
		if err == nil || !apperr.Is(err, apperr.KindConflict) || attempt == 2 {
			break
		}
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.logDispatch("event created", s.Notify.EventCreated(r.Context(), ev))
	s.Log.Info("event created", "event_id", ev.ID, "code", ev.EventCode, "coordinator", coord.ID)
	created(w, "event created and awaiting approval", ev)
}

// UpdateEvent handles PUT /api/events/{id}
func (s *Server) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.loadEvent(r, "id", policy.UpdateEvent)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ev.Status == models.EventCompleted || ev.Status == models.EventCancelled {
		s.fail(w, r, apperr.Validation("a "+string(ev.Status)+" event can no longer be edited"))
		return
	}
	var req models.EventRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := checkEventRequest(&req); err != nil {
		s.fail(w, r, err)
		return
	}
	applyEventRequest(ev, &req)
	ev.UpdatedAt = s.Now()
	if err := s.Store.UpdateEvent(r.Context(), ev); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "event updated", ev)
}

// DeleteEvent handles DELETE /api/events/{id}. Sessions, registrations,
// attendance, certificates and feedback of the event go with it.
func (s *Server) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.loadEvent(r, "id", policy.DeleteEvent)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.Store.DeleteEvent(r.Context(), ev.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.Log.Info("event deleted", "event_id", ev.ID, "by", caller(r).UserID)
	ok(w, "event deleted", nil)
}

func transitionError(from, to models.EventStatus) error {
	return apperr.Validation("cannot change event status from " + string(from) + " to " + string(to))
}

// ApproveEvent handles PATCH /api/events/{id}/approve (admin). Approval
// opens registration for events that take registrations.
func (s *Server) ApproveEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.loadEvent(r, "id", policy.ApproveEvent)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !rules.CanTransition(ev.Status, models.EventApproved) {
		s.fail(w, r, transitionError(ev.Status, models.EventApproved))
		return
	}
	now := s.Now()
	ev.Status = models.EventApproved
	ev.Approval = models.Approval{ApprovedBy: caller(r).UserID, ApprovedAt: &now}
	ev.Registration.IsOpen = ev.Registration.Required
	ev.UpdatedAt = now
	if err := s.Store.UpdateEvent(r.Context(), ev); err != nil {
		s.fail(w, r, err)
		return
	}
	s.logDispatch("event approved", s.Notify.EventApproved(r.Context(), ev))
	ok(w, "event approved", ev)
}

// RejectEvent handles PATCH /api/events/{id}/reject (admin)
func (s *Server) RejectEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.loadEvent(r, "id", policy.ApproveEvent)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req models.RejectEventRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if !rules.CanTransition(ev.Status, models.EventRejected) {
		s.fail(w, r, transitionError(ev.Status, models.EventRejected))
		return
	}
	ev.Status = models.EventRejected
	ev.Approval = models.Approval{RejectionReason: strings.TrimSpace(req.Reason)}
	ev.Registration.IsOpen = false
	ev.UpdatedAt = s.Now()
	if err := s.Store.UpdateEvent(r.Context(), ev); err != nil {
		s.fail(w, r, err)
		return
	}
	s.logDispatch("event rejected", s.Notify.EventRejected(r.Context(), ev))
	ok(w, "event rejected", ev)
}

// ChangeEventStatus handles PATCH /api/events/{id}/status
//
// Approving and rejecting go through their own endpoints so the approval
// record and notifications stay consistent. Completing an event refreshes
// its statistics and asks participants for feedback when enabled.
func (s *Server) ChangeEventStatus(w http.ResponseWriter, r *http.Request) {
	ev, err := s.loadEvent(r, "id", policy.ChangeEventStatus)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req models.EventStatusRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Status == models.EventApproved || req.Status == models.EventRejected {
		s.fail(w, r, apperr.Validation("use the approve or reject endpoint for this status"))
		return
	}
	if !rules.CanTransition(ev.Status, req.Status) {
		s.fail(w, r, transitionError(ev.Status, req.Status))
		return
	}

	ev.Status = req.Status
	if !rules.CanOpenRegistration(ev.Status) {
		ev.Registration.IsOpen = false
	}
	ev.UpdatedAt = s.Now()
	if err := s.Store.UpdateEvent(r.Context(), ev); err != nil {
		s.fail(w, r, err)
		return
	}

	if ev.Status == models.EventCompleted {
		if fresh, err := s.Engine.RecomputeEventStats(r.Context(), ev.ID); err != nil {
			s.Log.Warn("stats refresh after completion failed", "event_id", ev.ID, "err", err)
		} else {
			ev = fresh
		}
		if ev.Feedback.Enabled {
			s.logDispatch("feedback request", s.Notify.FeedbackRequest(r.Context(), ev))
		}
	}
	ok(w, "event status updated", ev)
}

// ToggleRegistration handles PATCH /api/events/{id}/toggle-registration
func (s *Server) ToggleRegistration(w http.ResponseWriter, r *http.Request) {
	ev, err := s.loadEvent(r, "id", policy.ToggleRegistration)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req models.ToggleRegistrationRequest
	if err := decode(r, &req); err != nil && r.ContentLength != 0 {
		s.fail(w, r, err)
		return
	}
	open := !ev.Registration.IsOpen
	if req.IsOpen != nil {
		open = *req.IsOpen
	}
	if open {
		if !ev.Registration.Required {
			s.fail(w, r, apperr.Validation("this event does not take registrations"))
			return
		}
		if !rules.CanOpenRegistration(ev.Status) {
			s.fail(w, r, apperr.Validation("registration can only be opened for approved or ongoing events"))
			return
		}
	}
	ev.Registration.IsOpen = open
	ev.UpdatedAt = s.Now()
	if err := s.Store.UpdateEvent(r.Context(), ev); err != nil {
		s.fail(w, r, err)
		return
	}
	msg := "registration closed"
	if open {
		msg = "registration opened"
	}
	ok(w, msg, ev)
}

// summarizeFeedback counts ratings 1 to 5 and averages them.
func summarizeFeedback(list []models.Feedback) models.FeedbackSummary {
	sum := models.FeedbackSummary{Count: len(list), RatingDistribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	total := 0
	for _, f := range list {
		sum.RatingDistribution[f.OverallRating]++
		total += f.OverallRating
	}
	if len(list) > 0 {
		sum.AverageRating = aggregate.Round2(float64(total) / float64(len(list)))
	}
	return sum
}

// EventAnalytics handles GET /api/events/{id}/analytics. Stats are
// recomputed first so the response never lags the underlying records.
func (s *Server) EventAnalytics(w http.ResponseWriter, r *http.Request) {
	ev, err := s.loadEvent(r, "id", policy.ViewEventAnalytics)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ev, err = s.Engine.RecomputeEventStats(r.Context(), ev.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var (
		feedback []models.Feedback
		history  []models.Performance
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		feedback, err = s.Store.ListFeedbackByEvent(ctx, ev.ID)
		return err
	})
	g.Go(func() (err error) {
		history, err = s.Store.ListPerformance(ctx, "event", ev.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "event analytics", models.EventAnalytics{
		Event:       ev,
		Stats:       ev.Stats,
		Performance: ev.Performance,
		Feedback:    summarizeFeedback(feedback),
		History:     history,
	})
}
