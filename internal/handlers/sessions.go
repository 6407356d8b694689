package handlers

import (
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"

	"github.com/campushub/eventhub/internal/aggregate"
	"github.com/campushub/eventhub/internal/apperr"
	"github.com/campushub/eventhub/internal/models"
	"github.com/campushub/eventhub/internal/policy"
	"github.com/campushub/eventhub/internal/rules"
	"github.com/google/uuid"
)

// loadSession fetches the session named by {id} with its event and checks
// that the caller may perform a on the event.
func (s *Server) loadSession(r *http.Request, a policy.Action) (*models.Session, *models.Event, error) {
	ses, err := s.Store.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, nil, err
	}
	ev, err := s.Store.GetEvent(r.Context(), ses.EventID)
	if err != nil {
		return nil, nil, err
	}
	p := caller(r)
	own, err := s.ownership(r.Context(), p, ev)
	if err != nil {
		return nil, nil, err
	}
	if err := authorize(p, a, own); err != nil {
		return nil, nil, err
	}
	return ses, ev, nil
}

// resolveTrainer returns the display name of the session's trainer. Only
// trainer and faculty accounts may run sessions.
func (s *Server) resolveTrainer(r *http.Request, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	u, err := s.Store.GetUser(r.Context(), id)
	if apperr.Is(err, apperr.KindNotFound) {
		return "", apperr.Validation("validation failed",
			apperr.FieldError{Field: "trainerId", Message: "no such user"})
	}
	if err != nil {
		return "", err
	}
	if u.Role != models.RoleTrainer && u.Role != models.RoleFaculty {
		return "", apperr.Validation("validation failed",
			apperr.FieldError{Field: "trainerId", Message: "must be a trainer or faculty member"})
	}
	return u.Name, nil
}

// ListSessions handles GET /api/events/{id}/sessions
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ev, err := s.Store.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if caller(r).Role == models.RoleStudent && !slices.Contains(studentVisible, ev.Status) {
		s.fail(w, r, apperr.NotFound("event"))
		return
	}
	sessions, err := s.Store.ListSessionsByEvent(r.Context(), ev.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "sessions", sessions)
}

// CreateSession handles POST /api/events/{id}/sessions
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	ev, err := s.loadEvent(r, "id", policy.ManageSession)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req models.SessionRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	trainerName, err := s.resolveTrainer(r, req.TrainerID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	seq := req.Sequence
	if seq == 0 {
		if seq, err = s.Store.NextSequence(r.Context(), ev.ID); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	now := s.Now()
	ses := &models.Session{
		ID:             uuid.NewString(),
		SessionCode:    fmt.Sprintf("%s-S%02d", ev.EventCode, seq),
		EventID:        ev.ID,
		EventTitle:     ev.Title,
		Sequence:       seq,
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		TrainerID:      req.TrainerID,
		TrainerName:    trainerName,
		ScheduledStart: req.ScheduledStart.UTC(),
		ScheduledEnd:   req.ScheduledEnd.UTC(),
		Venue:          req.Venue,
		Materials:      []models.Material{},
		Status:         models.SessionScheduled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if ses.Venue == "" {
		ses.Venue = ev.Venue
	}
	if err := s.Store.InsertSession(r.Context(), ses); err != nil {
		s.fail(w, r, err)
		return
	}
	created(w, "session created", ses)
}

// GetSession handles GET /api/sessions/{id}
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	ses, err := s.Store.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "session", ses)
}

// UpdateSession handles PUT /api/sessions/{id}
func (s *Server) UpdateSession(w http.ResponseWriter, r *http.Request) {
	ses, _, err := s.loadSession(r, policy.ManageSession)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req models.SessionRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.TrainerID != ses.TrainerID {
		name, err := s.resolveTrainer(r, req.TrainerID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		ses.TrainerID, ses.TrainerName = req.TrainerID, name
	}
	if req.Sequence > 0 {
		ses.Sequence = req.Sequence
	}
	if req.Status != "" {
		ses.Status = req.Status
	}
	ses.Title = strings.TrimSpace(req.Title)
	ses.Description = req.Description
	ses.ScheduledStart = req.ScheduledStart.UTC()
	ses.ScheduledEnd = req.ScheduledEnd.UTC()
	if req.Venue != "" {
		ses.Venue = req.Venue
	}
	ses.UpdatedAt = s.Now()
	if err := s.Store.UpdateSession(r.Context(), ses); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "session updated", ses)
}

// DeleteSession handles DELETE /api/sessions/{id}. Its attendance records
// go with it; registrations keep their embedded marks until the next
// denormalization sweep.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	ses, ev, err := s.loadSession(r, policy.ManageSession)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ses.Status == models.SessionOngoing {
		s.fail(w, r, apperr.Validation("end the session before deleting it"))
		return
	}
	if err := s.Store.DeleteSession(r.Context(), ses.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.Engine.RecomputeEventStats(r.Context(), ev.ID); err != nil {
		s.Log.Warn("stats refresh after session delete failed", "event_id", ev.ID, "err", err)
	}
	ok(w, "session deleted", nil)
}

// StartSession handles PATCH /api/sessions/{id}/start. Starting the first
// session of an approved event moves the event to ongoing.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	ses, ev, err := s.loadSession(r, policy.StartEndSession)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ses.Status != models.SessionScheduled && ses.Status != models.SessionPostponed {
		s.fail(w, r, apperr.Validation("only a scheduled or postponed session can be started"))
		return
	}
	if ev.Status != models.EventApproved && ev.Status != models.EventOngoing {
		s.fail(w, r, apperr.Validation("sessions can only run for approved or ongoing events"))
		return
	}

	now := s.Now()
	ses.Status = models.SessionOngoing
	ses.ActualStart = &now
	ses.UpdatedAt = now
	if err := s.Store.UpdateSession(r.Context(), ses); err != nil {
		s.fail(w, r, err)
		return
	}
	if ev.Status == models.EventApproved && rules.CanTransition(ev.Status, models.EventOngoing) {
		ev.Status = models.EventOngoing
		ev.UpdatedAt = now
		if err := s.Store.UpdateEvent(r.Context(), ev); err != nil {
			s.Log.Warn("could not mark event ongoing", "event_id", ev.ID, "err", err)
		}
	}
	s.logDispatch("session started", s.Notify.SessionStarted(r.Context(), ev, ses))
	ok(w, "session started", ses)
}

// EndSession handles PATCH /api/sessions/{id}/end
func (s *Server) EndSession(w http.ResponseWriter, r *http.Request) {
	ses, ev, err := s.loadSession(r, policy.StartEndSession)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ses.Status != models.SessionOngoing {
		s.fail(w, r, apperr.Validation("only an ongoing session can be ended"))
		return
	}

	now := s.Now()
	ses.Status = models.SessionCompleted
	ses.ActualEnd = &now
	ses.UpdatedAt = now
	if err := s.Store.UpdateSession(r.Context(), ses); err != nil {
		s.fail(w, r, err)
		return
	}
	if fresh, err := s.Engine.RecomputeSessionAttendance(r.Context(), ses.ID, nil); err != nil {
		s.Log.Warn("session summary failed", "session_id", ses.ID, "err", err)
	} else {
		ses = fresh
	}
	if _, err := s.Engine.RecomputeEventStats(r.Context(), ev.ID); err != nil {
		s.Log.Warn("stats refresh after session end failed", "event_id", ev.ID, "err", err)
	}
	s.logDispatch("session ended", s.Notify.SessionEnded(r.Context(), ev, ses))
	ok(w, "session ended", ses)
}

// AddMaterial handles POST /api/sessions/{id}/materials
func (s *Server) AddMaterial(w http.ResponseWriter, r *http.Request) {
	ses, _, err := s.loadSession(r, policy.StartEndSession)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req models.MaterialRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	now := s.Now()
	ses.Materials = append(ses.Materials, models.Material{
		Name:       strings.TrimSpace(req.Name),
		URL:        req.URL,
		Type:       req.Type,
		UploadedAt: now,
	})
	ses.UpdatedAt = now
	if err := s.Store.UpdateSession(r.Context(), ses); err != nil {
		s.fail(w, r, err)
		return
	}
	created(w, "material added", ses)
}

// departmentBreakdown groups attendance records by department. Registered
// counts marked users, Attended those marked present.
func departmentBreakdown(records []models.Attendance) []models.DepartmentStats {
	byDept := map[string]*models.DepartmentStats{}
	for _, a := range records {
		d := a.Department
		if d == "" {
			d = "unknown"
		}
		st, seen := byDept[d]
		if !seen {
			st = &models.DepartmentStats{Department: d}
			byDept[d] = st
		}
		st.Registered++
		if a.Present {
			st.Attended++
		}
	}
	out := make([]models.DepartmentStats, 0, len(byDept))
	for _, st := range byDept {
		st.AverageAttendance = aggregate.Percent(st.Attended, st.Registered)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Department < out[j].Department })
	return out
}

// SessionAnalytics handles GET /api/sessions/{id}/analytics
func (s *Server) SessionAnalytics(w http.ResponseWriter, r *http.Request) {
	ses, _, err := s.loadSession(r, policy.ViewEventAnalytics)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	records, err := s.Store.ListAttendanceBySession(r.Context(), ses.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "session analytics", models.SessionAnalytics{
		Session:     ses,
		Attendance:  aggregate.SummarizeSession(records),
		Departments: departmentBreakdown(records),
		Records:     records,
	})
}
