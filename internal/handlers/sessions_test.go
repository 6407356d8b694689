package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/campushub/eventhub/internal/models"
	"github.com/google/uuid"
)

// seedSession inserts a scheduled session of ev run by trainer (may be nil).
func seedSession(t *testing.T, srv *Server, ev *models.Event, trainer *models.User) *models.Session {
	t.Helper()
	ses := &models.Session{
		ID:             uuid.NewString(),
		SessionCode:    ev.EventCode + "-S01",
		EventID:        ev.ID,
		EventTitle:     ev.Title,
		Sequence:       1,
		Title:          "Session",
		ScheduledStart: ev.StartDate,
		ScheduledEnd:   ev.StartDate.Add(2 * time.Hour),
		Materials:      []models.Material{},
		Status:         models.SessionScheduled,
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	}
	if trainer != nil {
		ses.TrainerID, ses.TrainerName = trainer.ID, trainer.Name
	}
	if err := srv.Store.InsertSession(context.Background(), ses); err != nil {
		t.Fatalf("seedSession: %v", err)
	}
	return ses
}

// ---- Session handler tests ----

func TestCreateSession_CodeAndSequence(t *testing.T) {
	srv := newTestServer(t)
	faculty := seedUser(t, srv, models.RoleFaculty, "fac@campus.test")
	trainer := seedUser(t, srv, models.RoleTrainer, "tr@acme.test")
	student := seedUser(t, srv, models.RoleStudent, "stu@campus.test")
	ev := seedEvent(t, srv, faculty, func(e *models.Event) { e.Venue = "Hall A" })

	req := models.SessionRequest{
		Title:          "Day one",
		TrainerID:      trainer.ID,
		ScheduledStart: ev.StartDate,
		ScheduledEnd:   ev.StartDate.Add(time.Hour),
	}
	var first, second models.Session
	expect(t, call(t, srv.CreateSession, http.MethodPost, "/api/events/x/sessions", req, faculty, "id", ev.ID),
		http.StatusCreated, &first)
	expect(t, call(t, srv.CreateSession, http.MethodPost, "/api/events/x/sessions", req, faculty, "id", ev.ID),
		http.StatusCreated, &second)
	if first.Sequence != 1 || second.Sequence != 2 {
		t.Errorf("sequences: %d, %d", first.Sequence, second.Sequence)
	}
	if second.SessionCode != ev.EventCode+"-S02" {
		t.Errorf("session code: got %q", second.SessionCode)
	}
	if first.Venue != "Hall A" || first.TrainerName != trainer.Name {
		t.Errorf("venue=%q trainer=%q", first.Venue, first.TrainerName)
	}

	req.TrainerID = student.ID
	env := expect(t, call(t, srv.CreateSession, http.MethodPost, "/api/events/x/sessions", req, faculty, "id", ev.ID),
		http.StatusBadRequest, nil)
	if len(env.Errors) == 0 || env.Errors[0].Field != "trainerId" {
		t.Errorf("expected a trainerId field error, got %+v", env.Errors)
	}
}

func TestStartAndEndSession(t *testing.T) {
	srv := newTestServer(t)
	faculty := seedUser(t, srv, models.RoleFaculty, "fac@campus.test")
	trainer := seedUser(t, srv, models.RoleTrainer, "tr@acme.test")
	stranger := seedUser(t, srv, models.RoleTrainer, "other@acme.test")
	ev := seedEvent(t, srv, faculty, nil)
	ses := seedSession(t, srv, ev, trainer)

	expect(t, call(t, srv.StartSession, http.MethodPatch, "/api/sessions/x/start", nil, stranger, "id", ses.ID),
		http.StatusForbidden, nil)
	expect(t, call(t, srv.EndSession, http.MethodPatch, "/api/sessions/x/end", nil, trainer, "id", ses.ID),
		http.StatusBadRequest, nil)

	var started models.Session
	expect(t, call(t, srv.StartSession, http.MethodPatch, "/api/sessions/x/start", nil, trainer, "id", ses.ID),
		http.StatusOK, &started)
	if started.Status != models.SessionOngoing || started.ActualStart == nil {
		t.Errorf("started session: %+v", started)
	}
	fresh, err := srv.Store.GetEvent(context.Background(), ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Status != models.EventOngoing {
		t.Errorf("event status: got %q, want ongoing", fresh.Status)
	}

	expect(t, call(t, srv.DeleteSession, http.MethodDelete, "/api/sessions/x", nil, faculty, "id", ses.ID),
		http.StatusBadRequest, nil)

	var ended models.Session
	expect(t, call(t, srv.EndSession, http.MethodPatch, "/api/sessions/x/end", nil, trainer, "id", ses.ID),
		http.StatusOK, &ended)
	if ended.Status != models.SessionCompleted || ended.ActualEnd == nil {
		t.Errorf("ended session: %+v", ended)
	}
}

func TestAddMaterial(t *testing.T) {
	srv := newTestServer(t)
	faculty := seedUser(t, srv, models.RoleFaculty, "fac@campus.test")
	trainer := seedUser(t, srv, models.RoleTrainer, "tr@acme.test")
	ev := seedEvent(t, srv, faculty, nil)
	ses := seedSession(t, srv, ev, trainer)

	expect(t, call(t, srv.AddMaterial, http.MethodPost, "/api/sessions/x/materials",
		models.MaterialRequest{Name: "Slides", URL: "not a url"}, trainer, "id", ses.ID), http.StatusBadRequest, nil)

	var updated models.Session
	expect(t, call(t, srv.AddMaterial, http.MethodPost, "/api/sessions/x/materials",
		models.MaterialRequest{Name: "Slides", URL: "https://example.com/slides.pdf", Type: "pdf"}, trainer, "id", ses.ID),
		http.StatusCreated, &updated)
	if len(updated.Materials) != 1 || updated.Materials[0].Name != "Slides" {
		t.Errorf("materials: %+v", updated.Materials)
	}
}

func TestDepartmentBreakdown(t *testing.T) {
	got := departmentBreakdown([]models.Attendance{
		{Department: "ECE", Present: true},
		{Department: "CSE", Present: true},
		{Department: "CSE", Present: false},
		{Present: true},
	})
	want := []models.DepartmentStats{
		{Department: "CSE", Registered: 2, Attended: 1, AverageAttendance: 50},
		{Department: "ECE", Registered: 1, Attended: 1, AverageAttendance: 100},
		{Department: "unknown", Registered: 1, Attended: 1, AverageAttendance: 100},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}
