package handlers

// SeedDemo handles POST /api/admin/seed
//
// Development-only endpoint that loads a fixed campus so the client can be
// demoed from a known state. Ids are hard-coded, so a second call finds
// the seeded admin and returns without writing anything.
//
// DEMO SCENARIO
// ─────────────────────────────────────────────────────────────────────────
// Admin    : admin@campus.test    / demo1234
// Faculty  : rao@campus.test      / demo1234  (coordinates every event)
// Trainer  : mehta@trainer.test   / demo1234  (runs the workshop sessions)
// Students : asha, ben, chen (CSE) and dina (ECE) @campus.test / demo1234
//
// Events:
//  1. Go Workshop           completed, 2 sessions, certificates at 50%
//                           asha 2/2, ben 1/2, chen 0/2
//  2. Cloud Seminar         approved, registration open, capacity 2
//                           asha and ben confirmed, dina waitlisted
//  3. Robotics Competition  pending approval, CSE only

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/campushub/eventhub/internal/aggregate"
	"github.com/campushub/eventhub/internal/apperr"
	"github.com/campushub/eventhub/internal/auth"
	"github.com/campushub/eventhub/internal/models"
)

// Pre-determined ids keep the seed idempotent.
const (
	SeedAdminID   = "seed-admin-0000-0000-0000-000000000001"
	SeedFacultyID = "seed-faculty-000-0000-0000-000000000002"
	SeedTrainerID = "seed-trainer-000-0000-0000-000000000003"
	SeedAshaID    = "seed-asha-00000-0000-0000-000000000010"
	SeedBenID     = "seed-ben-000000-0000-0000-000000000011"
	SeedChenID    = "seed-chen-00000-0000-0000-000000000012"
	SeedDinaID    = "seed-dina-00000-0000-0000-000000000013"

	SeedWorkshopID = "seed-event-workshop-0000-000000000020"
	SeedSeminarID  = "seed-event-seminar-00000-000000000021"
	SeedRoboticsID = "seed-event-robotics-0000-000000000022"

	SeedSession1ID = "seed-session-1-000-0000-000000000030"
	SeedSession2ID = "seed-session-2-000-0000-000000000031"

	seedPassword = "demo1234"
)

type seedSummary struct {
	Users         int `json:"users"`
	Events        int `json:"events"`
	Sessions      int `json:"sessions"`
	Registrations int `json:"registrations"`
	Attendance    int `json:"attendance"`
}

func (s *Server) SeedDemo(w http.ResponseWriter, r *http.Request) {
	if s.Config.IsProduction() {
		s.fail(w, r, apperr.Forbidden("seeding is disabled in production"))
		return
	}
	if !s.requireMaintainer(w, r) {
		return
	}
	if _, err := s.Store.GetUser(r.Context(), SeedAdminID); err == nil {
		ok(w, "demo data already present", nil)
		return
	}
	sum, err := s.seed(r.Context())
	if err != nil {
		s.fail(w, r, apperr.Internal("seed failed", err))
		return
	}
	s.Log.Info("demo data seeded", "users", sum.Users, "events", sum.Events)
	created(w, "demo data seeded", sum)
}

// Seed loads the demo data into an empty database. cmd/server calls it
// for the -seed flag.
func (s *Server) Seed(ctx context.Context) error {
	if _, err := s.Store.GetUser(ctx, SeedAdminID); err == nil {
		return nil
	}
	_, err := s.seed(ctx)
	return err
}

func (s *Server) seed(ctx context.Context) (seedSummary, error) {
	var sum seedSummary
	hash, err := auth.HashPassword(seedPassword)
	if err != nil {
		return sum, err
	}
	now := s.Now()
	day := 24 * time.Hour

	student := func(id, email, name, dept, roll string) *models.User {
		return &models.User{ID: id, Email: email, Name: name, Role: models.RoleStudent,
			Student: &models.StudentProfile{Department: dept, Program: "B.Tech", Year: "3", Section: "A", RollNumber: roll}}
	}
	users := []*models.User{
		{ID: SeedAdminID, Email: "admin@campus.test", Name: "Campus Admin", Role: models.RoleAdmin},
		{ID: SeedFacultyID, Email: "rao@campus.test", Name: "Dr. Rao", Role: models.RoleFaculty,
			Faculty: &models.FacultyProfile{Department: "CSE", Designation: "Associate Professor", CanCoordinate: true}},
		{ID: SeedTrainerID, Email: "mehta@trainer.test", Name: "Priya Mehta", Role: models.RoleTrainer,
			Trainer: &models.TrainerProfile{Organization: "Gopher Labs", Expertise: []string{"Go", "Distributed systems"}}},
		student(SeedAshaID, "asha@campus.test", "Asha Kumar", "CSE", "CSE21001"),
		student(SeedBenID, "ben@campus.test", "Ben Thomas", "CSE", "CSE21002"),
		student(SeedChenID, "chen@campus.test", "Chen Wei", "CSE", "CSE21003"),
		student(SeedDinaID, "dina@campus.test", "Dina Roy", "ECE", "ECE21001"),
	}
	for _, u := range users {
		u.PasswordHash = hash
		u.IsActive, u.IsVerified = true, true
		u.CreatedAt, u.UpdatedAt = now.Add(-90*day), now.Add(-90*day)
		u.Analytics.ProfileCompleteness = aggregate.ProfileCompleteness(u)
		if err := s.Store.InsertUser(ctx, u); err != nil {
			return sum, fmt.Errorf("user %s: %w", u.Email, err)
		}
		sum.Users++
	}
	byID := make(map[string]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	capacity := 2
	approvedAt := now.Add(-40 * day)
	events := []*models.Event{
		{ID: SeedWorkshopID, EventCode: "EVT-DEMO-WORKSHOP", Title: "Go Workshop",
			Description: "Two afternoons of hands-on Go.", Category: "technical", Type: models.TypeWorkshop,
			Status: models.EventCompleted, Venue: "Lab 3",
			StartDate: now.Add(-30 * day), EndDate: now.Add(-29 * day),
			Registration: models.RegistrationPolicy{Required: true},
			Certificate:  models.CertificatePolicy{Enabled: true, MinAttendance: 50},
			Feedback:     models.FeedbackPolicy{Enabled: true, Questions: []string{"Was the pace right?"}},
			Approval:     models.Approval{ApprovedBy: SeedAdminID, ApprovedAt: &approvedAt}},
		{ID: SeedSeminarID, EventCode: "EVT-DEMO-SEMINAR", Title: "Cloud Seminar",
			Description: "Running services in the cloud.", Category: "technical", Type: models.TypeSeminar,
			Status: models.EventApproved, Venue: "Auditorium",
			StartDate: now.Add(14 * day), EndDate: now.Add(14*day + 3*time.Hour),
			Registration: models.RegistrationPolicy{Required: true, IsOpen: true, MaxParticipants: &capacity},
			Approval:     models.Approval{ApprovedBy: SeedAdminID, ApprovedAt: &approvedAt}},
		{ID: SeedRoboticsID, EventCode: "EVT-DEMO-ROBOTICS", Title: "Robotics Competition",
			Category: "competition", Type: models.TypeCompetition, Status: models.EventPending, Venue: "Sports Hall",
			StartDate: now.Add(45 * day), EndDate: now.Add(46 * day),
			Eligibility:  models.Eligibility{Departments: []string{"CSE"}},
			Registration: models.RegistrationPolicy{Required: true}},
	}
	for _, ev := range events {
		ev.CoordinatorID, ev.CoordinatorName = SeedFacultyID, "Dr. Rao"
		ev.CreatedAt, ev.UpdatedAt = now.Add(-45*day), now.Add(-45*day)
		if err := s.Store.InsertEvent(ctx, ev); err != nil {
			return sum, fmt.Errorf("event %s: %w", ev.Title, err)
		}
		sum.Events++
	}
	workshop, seminar := events[0], events[1]

	sessions := []*models.Session{
		{ID: SeedSession1ID, SessionCode: "EVT-DEMO-WORKSHOP-S01", Sequence: 1, Title: "Types and interfaces",
			ScheduledStart: workshop.StartDate, ScheduledEnd: workshop.StartDate.Add(3 * time.Hour)},
		{ID: SeedSession2ID, SessionCode: "EVT-DEMO-WORKSHOP-S02", Sequence: 2, Title: "Concurrency",
			ScheduledStart: workshop.EndDate.Add(-3 * time.Hour), ScheduledEnd: workshop.EndDate},
	}
	for _, ses := range sessions {
		start, end := ses.ScheduledStart, ses.ScheduledEnd
		ses.EventID, ses.EventTitle = workshop.ID, workshop.Title
		ses.TrainerID, ses.TrainerName = SeedTrainerID, "Priya Mehta"
		ses.Venue, ses.Status = workshop.Venue, models.SessionCompleted
		ses.ActualStart, ses.ActualEnd = &start, &end
		ses.Materials = []models.Material{}
		ses.CreatedAt, ses.UpdatedAt = workshop.CreatedAt, end
		if err := s.Store.InsertSession(ctx, ses); err != nil {
			return sum, fmt.Errorf("session %s: %w", ses.Title, err)
		}
		sum.Sessions++
	}

	register := func(ev *models.Event, userID string, status models.RegistrationStatus, at time.Time) error {
		reg := newRegistration(ev, byID[userID], status, at)
		reg.ID = "seed-reg-" + ev.ID[len(ev.ID)-2:] + "-" + userID[len(userID)-2:]
		if err := s.Store.InsertRegistration(ctx, reg); err != nil {
			return fmt.Errorf("registration %s/%s: %w", ev.Title, userID, err)
		}
		sum.Registrations++
		return nil
	}
	for i, id := range []string{SeedAshaID, SeedBenID, SeedChenID} {
		if err := register(workshop, id, models.RegConfirmed, now.Add(-35*day+time.Duration(i)*time.Hour)); err != nil {
			return sum, err
		}
	}
	for i, id := range []string{SeedAshaID, SeedBenID, SeedDinaID} {
		status := models.RegConfirmed
		if i == 2 {
			status = models.RegWaitlisted
		}
		if err := register(seminar, id, status, now.Add(-5*day+time.Duration(i)*time.Hour)); err != nil {
			return sum, err
		}
	}

	marks := []struct {
		session, user string
		present       bool
	}{
		{SeedSession1ID, SeedAshaID, true}, {SeedSession1ID, SeedBenID, true}, {SeedSession1ID, SeedChenID, false},
		{SeedSession2ID, SeedAshaID, true}, {SeedSession2ID, SeedBenID, false}, {SeedSession2ID, SeedChenID, false},
	}
	for _, m := range marks {
		ses := sessions[0]
		if m.session == SeedSession2ID {
			ses = sessions[1]
		}
		a := &models.Attendance{
			ID: "seed-att-" + m.session[len(m.session)-2:] + "-" + m.user[len(m.user)-2:],
			SessionID: ses.ID, EventID: workshop.ID, UserID: m.user, Present: m.present,
			MarkedBy: SeedTrainerID, MarkedAt: *ses.ActualEnd, SessionTitle: ses.Title,
			EventTitle: workshop.Title, CreatedAt: *ses.ActualEnd,
		}
		if _, err := s.Engine.MarkAttendance(ctx, workshop, a); err != nil {
			return sum, fmt.Errorf("attendance: %w", err)
		}
		sum.Attendance++
	}
	for _, ses := range sessions {
		if _, err := s.Engine.RecomputeSessionAttendance(ctx, ses.ID, nil); err != nil {
			return sum, err
		}
	}
	for _, ev := range events {
		if _, err := s.Engine.RecomputeEventStats(ctx, ev.ID); err != nil {
			return sum, err
		}
	}
	for _, u := range users {
		if _, err := s.Engine.RecomputeUserAnalytics(ctx, u.ID); err != nil {
			return sum, err
		}
	}
	return sum, nil
}
