package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/campushub/eventhub/internal/config"
	"github.com/campushub/eventhub/internal/models"
)

// runSeed fires SeedDemo as the given admin and asserts the status.
func runSeed(t *testing.T, srv *Server, admin *models.User, want int) {
	t.Helper()
	expect(t, call(t, srv.SeedDemo, http.MethodPost, "/api/admin/seed", nil, admin), want, nil)
}

// ---- Seed handler tests ----

func TestSeedDemo_Idempotent(t *testing.T) {
	srv := newTestServer(t)
	admin := seedUser(t, srv, models.RoleAdmin, "ops@campus.test")

	var sum seedSummary
	expect(t, call(t, srv.SeedDemo, http.MethodPost, "/api/admin/seed", nil, admin), http.StatusCreated, &sum)
	want := seedSummary{Users: 7, Events: 3, Sessions: 2, Registrations: 6, Attendance: 6}
	if sum != want {
		t.Errorf("summary: got %+v, want %+v", sum, want)
	}
	runSeed(t, srv, admin, http.StatusOK)

	users, err := srv.Store.CountUsersByRole(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if users[models.RoleStudent] != 4 || users[models.RoleAdmin] != 2 {
		t.Errorf("users after a second seed: %v", users)
	}
}

func TestSeedDemo_Guards(t *testing.T) {
	srv := newTestServer(t)
	faculty := seedUser(t, srv, models.RoleFaculty, "fac@campus.test")
	admin := seedUser(t, srv, models.RoleAdmin, "ops@campus.test")
	runSeed(t, srv, faculty, http.StatusForbidden)

	srv.Config.Env = config.EnvProduction
	runSeed(t, srv, admin, http.StatusForbidden)
	if _, err := srv.Store.GetUser(context.Background(), SeedAdminID); err == nil {
		t.Error("production seed must not write")
	}
}

func TestSeedDemo_Scenario(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	if err := srv.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cases := []struct {
		user     string
		attended int
		eligible bool
	}{
		{SeedAshaID, 2, true},
		{SeedBenID, 1, true},
		{SeedChenID, 0, false},
	}
	for _, c := range cases {
		reg, err := srv.Store.GetRegistrationFor(ctx, SeedWorkshopID, c.user)
		if err != nil {
			t.Fatalf("registration %s: %v", c.user, err)
		}
		if reg.AttendedSessions != c.attended || reg.TotalSessions != 2 || reg.Certificate.Eligible != c.eligible {
			t.Errorf("%s: attended=%d total=%d eligible=%v", c.user,
				reg.AttendedSessions, reg.TotalSessions, reg.Certificate.Eligible)
		}
	}

	seminar, err := srv.Store.GetEvent(ctx, SeedSeminarID)
	if err != nil {
		t.Fatal(err)
	}
	if seminar.Registration.CurrentCount != 2 || seminar.Stats.Waitlisted != 1 {
		t.Errorf("seminar: count=%d waitlisted=%d", seminar.Registration.CurrentCount, seminar.Stats.Waitlisted)
	}
	dina, err := srv.Store.GetRegistrationFor(ctx, SeedSeminarID, SeedDinaID)
	if err != nil {
		t.Fatal(err)
	}
	if dina.Status != models.RegWaitlisted {
		t.Errorf("dina: %s", dina.Status)
	}

	asha, err := srv.Store.GetUser(ctx, SeedAshaID)
	if err != nil {
		t.Fatal(err)
	}
	if asha.Analytics.TotalRegistered != 2 || asha.Analytics.TotalAttended != 1 {
		t.Errorf("asha analytics: %+v", asha.Analytics)
	}

	// The seeded accounts can log in with the demo password.
	expect(t, call(t, srv.Login, http.MethodPost, "/api/auth/login",
		models.LoginRequest{Email: "asha@campus.test", Password: seedPassword}, nil), http.StatusOK, nil)
}
