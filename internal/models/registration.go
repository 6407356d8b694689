package models

import "time"

// RegistrationStatus is the state of a user's place at an event.
type RegistrationStatus string

const (
	RegConfirmed  RegistrationStatus = "confirmed"
	RegWaitlisted RegistrationStatus = "waitlisted"
	RegCancelled  RegistrationStatus = "cancelled"
)

// SessionMark is one entry of a registration's embedded attendance list.
type SessionMark struct {
	SessionID string    `json:"sessionId"`
	Present   bool      `json:"present"`
	MarkedAt  time.Time `json:"markedAt"`
}

// RegistrationCertificate tracks eligibility and issuance for one registrant.
type RegistrationCertificate struct {
	Eligible      bool       `json:"eligible"`
	Issued        bool       `json:"issued"`
	CertificateID string     `json:"certificateId,omitempty"`
	IssuedAt      *time.Time `json:"issuedAt,omitempty"`
}

// Registration links a user to an event. The event and user fields are
// display snapshots refreshed by the aggregation engine, never authoritative.
type Registration struct {
	ID         string `json:"id"`
	EventID    string `json:"eventId"`
	UserID     string `json:"userId"`
	EventTitle string `json:"eventTitle"`
	UserName   string `json:"userName"`
	UserEmail  string `json:"userEmail"`
	Department string `json:"department,omitempty"`
	Year       string `json:"year,omitempty"`
	Section    string `json:"section,omitempty"`

	Status       RegistrationStatus `json:"status"`
	RegisteredAt time.Time          `json:"registeredAt"`
	CancelledAt  *time.Time         `json:"cancelledAt,omitempty"`
	PromotedAt   *time.Time         `json:"promotedAt,omitempty"`

	Attendance           []SessionMark `json:"attendance"`
	AttendedSessions     int           `json:"attendedSessions"`
	TotalSessions        int           `json:"totalSessions"`
	AttendancePercentage float64       `json:"attendancePercentage"`

	Certificate       RegistrationCertificate `json:"certificate"`
	FeedbackSubmitted bool                    `json:"feedbackSubmitted"`
}

// Attendance is the per-(session,user) record. Identifiers and names other
// than SessionID/UserID are denormalized for analytics queries.
type Attendance struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	EventID      string    `json:"eventId"`
	UserID       string    `json:"userId"`
	Present      bool      `json:"present"`
	MarkedBy     string    `json:"markedBy"`
	MarkedAt     time.Time `json:"markedAt"`
	UserName     string    `json:"userName,omitempty"`
	Department   string    `json:"department,omitempty"`
	SessionTitle string    `json:"sessionTitle,omitempty"`
	EventTitle   string    `json:"eventTitle,omitempty"`
	Remarks      string    `json:"remarks,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Certificate is issued once per (event,user) and never changes afterwards
// except for the download counter.
type Certificate struct {
	ID                   string     `json:"id"`
	CertificateNumber    string     `json:"certificateNumber"`
	VerificationCode     string     `json:"verificationCode"`
	EventID              string     `json:"eventId"`
	UserID               string     `json:"userId"`
	RegistrationID       string     `json:"registrationId"`
	EventTitle           string     `json:"eventTitle"`
	UserName             string     `json:"userName"`
	Department           string     `json:"department,omitempty"`
	EventStartDate       time.Time  `json:"eventStartDate"`
	EventEndDate         time.Time  `json:"eventEndDate"`
	AttendancePercentage float64    `json:"attendancePercentage"`
	AttendedSessions     int        `json:"attendedSessions"`
	TotalSessions        int        `json:"totalSessions"`
	IssuedBy             string     `json:"issuedBy"`
	IssuedAt             time.Time  `json:"issuedAt"`
	DownloadCount        int        `json:"downloadCount"`
	LastDownloadedAt     *time.Time `json:"lastDownloadedAt,omitempty"`
}

// FeedbackResponse is one answered question.
type FeedbackResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Rating   *int   `json:"rating,omitempty"`
}

// Feedback is submitted once per (event,user).
type Feedback struct {
	ID            string             `json:"id"`
	EventID       string             `json:"eventId"`
	UserID        string             `json:"userId"`
	EventTitle    string             `json:"eventTitle"`
	UserName      string             `json:"userName"`
	TrainerNames  []string           `json:"trainerNames,omitempty"`
	Responses     []FeedbackResponse `json:"responses"`
	OverallRating int                `json:"overallRating"`
	Comments      string             `json:"comments,omitempty"`
	SubmittedAt   time.Time          `json:"submittedAt"`
}
