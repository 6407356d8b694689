package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/campushub/eventhub/internal/aggregate"
	"github.com/campushub/eventhub/internal/apperr"
	"github.com/campushub/eventhub/internal/models"
	"github.com/campushub/eventhub/internal/policy"
	"github.com/campushub/eventhub/internal/store"
	"github.com/google/uuid"
)

// MarkAttendance handles POST /api/sessions/{id}/attendance
//
// Each entry is its own unit of work: the attendance record and the
// owning registration's percentage change together or not at all. Users
// without a live registration and repeated entries are reported in the
// skipped list. Any other failure ends the request with an error; entries
// marked before it stay marked. Re-marking the same user replaces the
// earlier mark.
//
// Request body:
//
//	{ "records": [ { "userId": "...", "present": true, "remarks": "" }, ... ] }
func (s *Server) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	ses, ev, err := s.loadSession(r, policy.MarkAttendance)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ses.Status == models.SessionCancelled || ses.Status == models.SessionPostponed {
		s.fail(w, r, apperr.Validation("attendance cannot be marked for a " + string(ses.Status) + " session"))
		return
	}
	var req models.MarkAttendanceRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	ctx := r.Context()
	now := s.Now()
	resp := models.MarkAttendanceResponse{Marked: []models.Attendance{}, Skipped: []models.Skipped{}}
	seen := make(map[string]bool, len(req.Records))
	for _, entry := range req.Records {
		if seen[entry.UserID] {
			resp.Skipped = append(resp.Skipped, models.Skipped{UserID: entry.UserID, Reason: "duplicate entry in batch"})
			continue
		}
		seen[entry.UserID] = true

		a := &models.Attendance{
			ID:           uuid.NewString(),
			SessionID:    ses.ID,
			EventID:      ev.ID,
			UserID:       entry.UserID,
			Present:      entry.Present,
			MarkedBy:     caller(r).UserID,
			MarkedAt:     now,
			SessionTitle: ses.Title,
			EventTitle:   ev.Title,
			Remarks:      entry.Remarks,
			CreatedAt:    now,
		}
		_, err := s.Engine.MarkAttendance(ctx, ev, a)
		if errors.Is(err, aggregate.ErrNotRegistered) {
			resp.Skipped = append(resp.Skipped, models.Skipped{UserID: entry.UserID, Reason: apperr.PublicMessage(err)})
			continue
		}
		if err != nil {
			s.fail(w, r, fmt.Errorf("mark attendance for user %s: %w", entry.UserID, err))
			return
		}
		resp.Marked = append(resp.Marked, *a)
	}

	fresh, err := s.Engine.RecomputeSessionAttendance(ctx, ses.ID, nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp.Session = fresh

	if len(resp.Marked) > 0 {
		s.logDispatch("attendance marked", s.Notify.AttendanceMarked(ctx, ev, fresh))
	}
	s.Log.Info("attendance marked", "session_id", ses.ID, "marked", len(resp.Marked), "skipped", len(resp.Skipped))
	ok(w, "attendance recorded", resp)
}

// SessionAttendance handles GET /api/sessions/{id}/attendance
func (s *Server) SessionAttendance(w http.ResponseWriter, r *http.Request) {
	ses, _, err := s.loadSession(r, policy.ViewAttendance)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	records, err := s.Store.ListAttendanceBySession(r.Context(), ses.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "attendance", records)
}

// EventAttendance handles GET /api/events/{id}/attendance
func (s *Server) EventAttendance(w http.ResponseWriter, r *http.Request) {
	ev, err := s.loadEvent(r, "id", policy.ViewAttendance)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	records, err := s.Store.ListAttendanceByEvent(r.Context(), ev.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "attendance", records)
}

// UserAttendance handles GET /api/users/{id}/attendance
func (s *Server) UserAttendance(w http.ResponseWriter, r *http.Request) {
	p := caller(r)
	userID := r.PathValue("id")
	if err := authorize(p, policy.ViewAttendance, policy.Ownership{Self: userID == p.UserID}); err != nil {
		s.fail(w, r, err)
		return
	}
	records, err := s.Store.ListAttendanceByUser(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "attendance", records)
}

// AttendanceAnalytics handles GET /api/attendance/analytics?eventId=
//
// With an event it reports per-session rates and a department breakdown;
// without one it reports platform totals only (admin and faculty).
func (s *Server) AttendanceAnalytics(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("eventId")
	if eventID == "" {
		if err := authorize(caller(r), policy.ViewAttendance, policy.Ownership{}); err != nil {
			s.fail(w, r, err)
			return
		}
		c, err := s.Store.CountWindow(r.Context(), time.Time{}, time.Time{})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		ok(w, "attendance analytics", models.AttendanceAnalytics{
			Total:       c.AttendanceMarked,
			Present:     c.PresentCount,
			Rate:        aggregate.Percent(c.PresentCount, c.AttendanceMarked),
			Sessions:    []models.SessionRate{},
			Departments: []models.DepartmentStats{},
		})
		return
	}

	r.SetPathValue("eventId", eventID)
	ev, err := s.loadEvent(r, "eventId", policy.ViewAttendance)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	records, err := s.Store.ListAttendanceByEvent(r.Context(), ev.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sessions, err := s.Store.ListSessionsByEvent(r.Context(), ev.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	bySession := map[string][]models.Attendance{}
	present := 0
	for _, a := range records {
		bySession[a.SessionID] = append(bySession[a.SessionID], a)
		if a.Present {
			present++
		}
	}
	rates := make([]models.SessionRate, 0, len(sessions))
	for _, ses := range sessions {
		sum := aggregate.SummarizeSession(bySession[ses.ID])
		rates = append(rates, models.SessionRate{
			SessionID: ses.ID, Sequence: ses.Sequence, Title: ses.Title, Rate: sum.Percentage,
		})
	}
	ok(w, "attendance analytics", models.AttendanceAnalytics{
		EventID:     ev.ID,
		Total:       len(records),
		Present:     present,
		Rate:        aggregate.Percent(present, len(records)),
		Sessions:    rates,
		Departments: departmentBreakdown(records),
	})
}

// SearchAttendance handles GET /api/attendance/search
//
// Query: userId, eventId, sessionId, department, present, from, to, page,
// limit. Students only ever see their own records; trainers must name an
// event they run a session of.
func (s *Server) SearchAttendance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pg, page, limit := pageFrom(r)
	f := store.AttendanceFilter{
		UserID:     q.Get("userId"),
		EventID:    q.Get("eventId"),
		SessionID:  q.Get("sessionId"),
		Department: q.Get("department"),
		Page:       pg,
	}
	var err error
	if f.Present, err = queryBool(r, "present"); err != nil {
		s.fail(w, r, err)
		return
	}
	if f.From, err = queryTime(r, "from"); err != nil {
		s.fail(w, r, err)
		return
	}
	if f.To, err = queryTime(r, "to"); err != nil {
		s.fail(w, r, err)
		return
	}

	p := caller(r)
	switch p.Role {
	case models.RoleStudent:
		f.UserID = p.UserID
	case models.RoleTrainer:
		if f.EventID == "" {
			s.fail(w, r, apperr.Validation("eventId is required",
				apperr.FieldError{Field: "eventId", Message: "is required"}))
			return
		}
		r.SetPathValue("eventId", f.EventID)
		if _, err := s.loadEvent(r, "eventId", policy.ViewAttendance); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	records, total, err := s.Store.SearchAttendance(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "attendance", paged(records, total, page, limit))
}
