package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/campushub/eventhub/internal/models"
)

// completedFixture returns a fixture whose event has moved to completed
// after its students registered.
func completedFixture(t *testing.T) *attendanceFixture {
	t.Helper()
	f := newAttendanceFixture(t, 2, func(e *models.Event) {
		e.Feedback = models.FeedbackPolicy{Enabled: true, Questions: []string{"Was the pace right?"}}
	})
	expect(t, call(t, f.srv.ChangeEventStatus, http.MethodPatch, "/api/events/x/status",
		models.EventStatusRequest{Status: models.EventCompleted}, f.faculty, "id", f.event.ID), http.StatusOK, nil)
	return f
}

// ---- Feedback handler tests ----

func TestSubmitFeedback(t *testing.T) {
	f := completedFixture(t)
	student := f.students[0]
	rating := 4
	req := models.FeedbackRequest{
		Responses:     []models.FeedbackResponse{{Question: "Was the pace right?", Answer: "Yes", Rating: &rating}},
		OverallRating: 5,
		Comments:      "  great  ",
	}

	var fb models.Feedback
	expect(t, call(t, f.srv.SubmitFeedback, http.MethodPost, "/api/events/x/feedback", req, student, "id", f.event.ID),
		http.StatusCreated, &fb)
	if fb.Comments != "great" || len(fb.TrainerNames) != 1 || fb.TrainerNames[0] != f.trainer.Name {
		t.Errorf("feedback: %+v", fb)
	}
	expect(t, call(t, f.srv.SubmitFeedback, http.MethodPost, "/api/events/x/feedback", req, student, "id", f.event.ID),
		http.StatusConflict, nil)

	reg, err := f.srv.Store.GetRegistrationFor(context.Background(), f.event.ID, student.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reg.FeedbackSubmitted {
		t.Error("registration should record the feedback")
	}

	var check struct {
		Submitted bool             `json:"submitted"`
		Feedback  *models.Feedback `json:"feedback"`
	}
	expect(t, call(t, f.srv.CheckFeedback, http.MethodGet, "/api/events/x/feedback/check", nil, student, "id", f.event.ID),
		http.StatusOK, &check)
	if !check.Submitted || check.Feedback == nil || check.Feedback.ID != fb.ID {
		t.Errorf("check: %+v", check)
	}
	expect(t, call(t, f.srv.CheckFeedback, http.MethodGet, "/api/events/x/feedback/check", nil, f.students[1], "id", f.event.ID),
		http.StatusOK, &check)
	if check.Submitted {
		t.Error("second student has not submitted")
	}

	var list struct {
		Items   []models.Feedback      `json:"items"`
		Summary models.FeedbackSummary `json:"summary"`
	}
	expect(t, call(t, f.srv.EventFeedback, http.MethodGet, "/api/events/x/feedback", nil, f.faculty, "id", f.event.ID),
		http.StatusOK, &list)
	if list.Summary.Count != 1 || list.Summary.AverageRating != 5 || list.Summary.RatingDistribution[5] != 1 {
		t.Errorf("summary: %+v", list.Summary)
	}
	expect(t, call(t, f.srv.EventFeedback, http.MethodGet, "/api/events/x/feedback", nil, student, "id", f.event.ID),
		http.StatusForbidden, nil)

	ev, err := f.srv.Store.GetEvent(context.Background(), f.event.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Performance.FeedbackCount != 1 || ev.Performance.AverageRating != 5 {
		t.Errorf("performance: %+v", ev.Performance)
	}
}

func TestSubmitFeedback_Rejections(t *testing.T) {
	f := newAttendanceFixture(t, 1, func(e *models.Event) { e.Feedback.Enabled = true })
	req := models.FeedbackRequest{OverallRating: 3}
	path := "/api/events/x/feedback"

	// Still approved, not under way.
	expect(t, call(t, f.srv.SubmitFeedback, http.MethodPost, path, req, f.students[0], "id", f.event.ID),
		http.StatusBadRequest, nil)

	expect(t, call(t, f.srv.ChangeEventStatus, http.MethodPatch, "/api/events/x/status",
		models.EventStatusRequest{Status: models.EventOngoing}, f.faculty, "id", f.event.ID), http.StatusOK, nil)

	outsider := seedUser(t, f.srv, models.RoleStudent, "outsider@campus.test")
	expect(t, call(t, f.srv.SubmitFeedback, http.MethodPost, path, req, outsider, "id", f.event.ID),
		http.StatusForbidden, nil)
	expect(t, call(t, f.srv.SubmitFeedback, http.MethodPost, path, req, f.faculty, "id", f.event.ID),
		http.StatusForbidden, nil)
	expect(t, call(t, f.srv.SubmitFeedback, http.MethodPost, path, models.FeedbackRequest{OverallRating: 6},
		f.students[0], "id", f.event.ID), http.StatusBadRequest, nil)
	expect(t, call(t, f.srv.SubmitFeedback, http.MethodPost, path, req, f.students[0], "id", f.event.ID),
		http.StatusCreated, nil)
}
