package models

import "time"

// EventStatus represents the lifecycle state of an event.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPending   EventStatus = "pending"
	EventApproved  EventStatus = "approved"
	EventRejected  EventStatus = "rejected"
	EventOngoing   EventStatus = "ongoing"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// EventType is the format of an event.
type EventType string

const (
	TypeWorkshop    EventType = "workshop"
	TypeSeminar     EventType = "seminar"
	TypeTraining    EventType = "training"
	TypeCompetition EventType = "competition"
	TypeCultural    EventType = "cultural"
	TypeOther       EventType = "other"
)

// Eligibility restricts which students may register. An empty list on an
// axis means every value passes.
type Eligibility struct {
	Departments []string `json:"departments,omitempty"`
	Programs    []string `json:"programs,omitempty"`
	Years       []string `json:"years,omitempty"`
	Sections    []string `json:"sections,omitempty"`
}

// RegistrationPolicy is the registration window and capacity of an event.
type RegistrationPolicy struct {
	Required  bool       `json:"required"`
	IsOpen    bool       `json:"isOpen"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	// MaxParticipants nil means unlimited.
	MaxParticipants *int `json:"maxParticipants,omitempty"`
	// CurrentCount is the number of confirmed registrations.
	CurrentCount int `json:"currentCount"`
}

// CertificatePolicy controls certificate eligibility.
type CertificatePolicy struct {
	Enabled bool `json:"enabled"`
	// MinAttendance is a percentage in [0,100]; eligibility is inclusive.
	MinAttendance float64 `json:"minAttendance"`
	Template      string  `json:"template,omitempty"`
}

// FeedbackPolicy controls whether and how feedback is collected.
type FeedbackPolicy struct {
	Enabled   bool     `json:"enabled"`
	Questions []string `json:"questions,omitempty"`
}

// Approval records the admin decision on an event.
type Approval struct {
	ApprovedBy      string     `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
}

// DepartmentStats is one row of an event's department breakdown.
type DepartmentStats struct {
	Department        string  `json:"department"`
	Registered        int     `json:"registered"`
	Attended          int     `json:"attended"`
	AverageAttendance float64 `json:"averageAttendance"`
}

// SessionRate is the attendance rate of one session of an event.
type SessionRate struct {
	SessionID string  `json:"sessionId"`
	Sequence  int     `json:"sequence"`
	Title     string  `json:"title"`
	Rate      float64 `json:"rate"`
}

// EventStats is the derived statistics block. It is always rewritten as a
// whole by the aggregation engine and carries no timestamps.
type EventStats struct {
	TotalRegistrations     int               `json:"totalRegistrations"`
	ConfirmedRegistrations int               `json:"confirmedRegistrations"`
	Waitlisted             int               `json:"waitlisted"`
	Cancelled              int               `json:"cancelled"`
	TotalAttended          int               `json:"totalAttended"`
	AverageAttendance      float64           `json:"averageAttendance"`
	CompletionRate         float64           `json:"completionRate"`
	DepartmentBreakdown    []DepartmentStats `json:"departmentBreakdown"`
	SessionAttendance      []SessionRate     `json:"sessionAttendance"`
}

// EventPerformance is the derived performance block.
type EventPerformance struct {
	RegistrationRate float64 `json:"registrationRate"`
	DropoutRate      float64 `json:"dropoutRate"`
	EngagementScore  float64 `json:"engagementScore"`
	AverageRating    float64 `json:"averageRating"`
	FeedbackCount    int     `json:"feedbackCount"`
}

// Event is a campus event coordinated by a faculty member or admin.
type Event struct {
	ID              string             `json:"id"`
	EventCode       string             `json:"eventCode"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	Category        string             `json:"category"`
	Type            EventType          `json:"type"`
	Status          EventStatus        `json:"status"`
	CoordinatorID   string             `json:"coordinatorId"`
	CoordinatorName string             `json:"coordinatorName"`
	Venue           string             `json:"venue,omitempty"`
	StartDate       time.Time          `json:"startDate"`
	EndDate         time.Time          `json:"endDate"`
	Eligibility     Eligibility        `json:"eligibility"`
	Registration    RegistrationPolicy `json:"registration"`
	Certificate     CertificatePolicy  `json:"certificate"`
	Feedback        FeedbackPolicy     `json:"feedback"`
	Approval        Approval           `json:"approval"`
	Stats           EventStats         `json:"stats"`
	Performance     EventPerformance   `json:"performance"`
	StatsUpdatedAt  *time.Time         `json:"statsUpdatedAt,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionOngoing   SessionStatus = "ongoing"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
	SessionPostponed SessionStatus = "postponed"
)

// Material is a resource attached to a session.
type Material struct {
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Type       string    `json:"type,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// SessionAttendance is the attendance summary stored on a session.
type SessionAttendance struct {
	Total      int     `json:"total"`
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Percentage float64 `json:"percentage"`
}

// Session is one sitting of an event.
type Session struct {
	ID             string            `json:"id"`
	SessionCode    string            `json:"sessionCode"`
	EventID        string            `json:"eventId"`
	EventTitle     string            `json:"eventTitle"`
	Sequence       int               `json:"sequence"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	TrainerID      string            `json:"trainerId,omitempty"`
	TrainerName    string            `json:"trainerName,omitempty"`
	ScheduledStart time.Time         `json:"scheduledStart"`
	ScheduledEnd   time.Time         `json:"scheduledEnd"`
	ActualStart    *time.Time        `json:"actualStart,omitempty"`
	ActualEnd      *time.Time        `json:"actualEnd,omitempty"`
	Venue          string            `json:"venue,omitempty"`
	Materials      []Material        `json:"materials"`
	Attendance     SessionAttendance `json:"attendance"`
	Status         SessionStatus     `json:"status"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}
