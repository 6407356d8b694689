// Package policy decides whether a principal may perform an action. It is
// a pure lookup: callers resolve the ownership relation (is this user the
// event's coordinator, a trainer of one of its sessions, the subject of
// the record) and Allowed combines it with the role table.
package policy

import "github.com/campushub/eventhub/internal/models"

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   models.UserRole
}

// Ownership describes how the principal relates to the target resource.
type Ownership struct {
	Coordinator bool
	Trainer     bool
	Self        bool
}

type Action int

const (
	CreateEvent Action = iota
	UpdateEvent
	DeleteEvent
	ApproveEvent
	ChangeEventStatus
	ToggleRegistration
	ViewEventAnalytics
	ManageSession
	StartEndSession
	MarkAttendance
	ViewAttendance
	RegisterForEvent
	CancelRegistration
	ViewRegistrations
	ExportRegistrations
	GenerateCertificate
	SubmitFeedback
	ViewFeedback
	ViewUser
	UpdateUser
	ManageUsers
	ExportUsers
	ViewDashboard
	MaintainDatabase
)

var actionNames = [...]string{
	"create_event", "update_event", "delete_event", "approve_event",
	"change_event_status", "toggle_registration", "view_event_analytics",
	"manage_session", "start_end_session", "mark_attendance", "view_attendance",
	"register_for_event", "cancel_registration", "view_registrations",
	"export_registrations", "generate_certificate", "submit_feedback",
	"view_feedback", "view_user", "update_user", "manage_users", "export_users",
	"view_dashboard", "maintain_database",
}

func (a Action) String() string {
	if a >= 0 && int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}

// grant is the condition under which a role may act. Bits are OR-ed: a
// grant of coordinator|trainer passes when either relation holds.
type grant uint8

const (
	anyone grant = 1 << iota
	coordinator
	trainer
	self
)

const (
	admin   = models.RoleAdmin
	faculty = models.RoleFaculty
	trnr    = models.RoleTrainer
	student = models.RoleStudent
)

// Roles absent from an action's row are denied.
var table = map[Action]map[models.UserRole]grant{
	CreateEvent:         {admin: anyone, faculty: anyone},
	UpdateEvent:         {admin: anyone, faculty: coordinator},
	DeleteEvent:         {admin: anyone, faculty: coordinator},
	ApproveEvent:        {admin: anyone},
	ChangeEventStatus:   {admin: anyone, faculty: coordinator},
	ToggleRegistration:  {admin: anyone, faculty: coordinator},
	ViewEventAnalytics:  {admin: anyone, faculty: coordinator, trnr: trainer},
	ManageSession:       {admin: anyone, faculty: coordinator},
	StartEndSession:     {admin: anyone, faculty: coordinator, trnr: trainer},
	MarkAttendance:      {admin: anyone, faculty: coordinator, trnr: trainer},
	ViewAttendance:      {admin: anyone, faculty: anyone, trnr: trainer, student: self},
	RegisterForEvent:    {student: anyone},
	CancelRegistration:  {admin: anyone, faculty: coordinator, student: self},
	ViewRegistrations:   {admin: anyone, faculty: coordinator, trnr: trainer},
	ExportRegistrations: {admin: anyone, faculty: coordinator},
	GenerateCertificate: {admin: anyone, faculty: coordinator, student: self},
	SubmitFeedback:      {student: self},
	ViewFeedback:        {admin: anyone, faculty: coordinator, trnr: trainer},
	ViewUser:            {admin: anyone, faculty: anyone | self, trnr: self, student: self},
	UpdateUser:          {admin: anyone, faculty: self, trnr: self, student: self},
	ManageUsers:         {admin: anyone},
	ExportUsers:         {admin: anyone, faculty: anyone},
	ViewDashboard:       {admin: anyone, faculty: anyone, trnr: anyone, student: anyone},
	MaintainDatabase:    {admin: anyone},
}

// Allowed reports whether p may perform a given the ownership relation.
func Allowed(p Principal, a Action, own Ownership) bool {
	g := table[a][p.Role]
	switch {
	case g&anyone != 0:
		return true
	case g&coordinator != 0 && own.Coordinator:
		return true
	case g&trainer != 0 && own.Trainer:
		return true
	case g&self != 0 && own.Self:
		return true
	}
	return false
}

// Roles returns the roles that can ever perform a, for route-level
// RequireRole gates.
func Roles(a Action) []models.UserRole {
	var out []models.UserRole
	for _, r := range []models.UserRole{admin, faculty, trnr, student} {
		if table[a][r] != 0 {
			out = append(out, r)
		}
	}
	return out
}
