package policy

import (
	"slices"
	"testing"

	"github.com/campushub/eventhub/internal/models"
)

func TestAllowed(t *testing.T) {
	admin := Principal{UserID: "a", Role: models.RoleAdmin}
	fac := Principal{UserID: "f", Role: models.RoleFaculty}
	tr := Principal{UserID: "t", Role: models.RoleTrainer}
	stu := Principal{UserID: "s", Role: models.RoleStudent}
	none := Ownership{}

	cases := []struct {
		name string
		p    Principal
		a    Action
		own  Ownership
		want bool
	}{
		{"admin approves", admin, ApproveEvent, none, true},
		{"faculty cannot approve", fac, ApproveEvent, Ownership{Coordinator: true}, false},
		{"faculty creates", fac, CreateEvent, none, true},
		{"student cannot create", stu, CreateEvent, none, false},
		{"coordinator updates own event", fac, UpdateEvent, Ownership{Coordinator: true}, true},
		{"faculty cannot update others' event", fac, UpdateEvent, none, false},
		{"trainer marks own session", tr, MarkAttendance, Ownership{Trainer: true}, true},
		{"trainer cannot mark other sessions", tr, MarkAttendance, none, false},
		{"student cannot mark attendance", stu, MarkAttendance, Ownership{Self: true}, false},
		{"student registers", stu, RegisterForEvent, none, true},
		{"faculty cannot register", fac, RegisterForEvent, none, false},
		{"student cancels own registration", stu, CancelRegistration, Ownership{Self: true}, true},
		{"student cannot cancel others'", stu, CancelRegistration, none, false},
		{"student views own attendance", stu, ViewAttendance, Ownership{Self: true}, true},
		{"student submits own feedback", stu, SubmitFeedback, Ownership{Self: true}, true},
		{"trainer views feedback of own event", tr, ViewFeedback, Ownership{Trainer: true}, true},
		{"faculty views any user", fac, ViewUser, none, true},
		{"student views self", stu, ViewUser, Ownership{Self: true}, true},
		{"student cannot view others", stu, ViewUser, none, false},
		{"only admin maintains the database", fac, MaintainDatabase, none, false},
		{"every role has a dashboard", stu, ViewDashboard, none, true},
		{"unknown role denied", Principal{Role: "guest"}, ViewDashboard, none, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Allowed(c.p, c.a, c.own); got != c.want {
				t.Errorf("Allowed(%s, %s, %+v) = %v, want %v", c.p.Role, c.a, c.own, got, c.want)
			}
		})
	}
}

func TestRoles(t *testing.T) {
	got := Roles(MarkAttendance)
	want := []models.UserRole{models.RoleAdmin, models.RoleFaculty, models.RoleTrainer}
	if !slices.Equal(got, want) {
		t.Errorf("Roles(MarkAttendance) = %v, want %v", got, want)
	}
}

func TestActionString(t *testing.T) {
	if MaintainDatabase.String() != "maintain_database" {
		t.Errorf("got %q", MaintainDatabase.String())
	}
	if Action(999).String() != "unknown" {
		t.Error("expected unknown for out-of-range action")
	}
}
