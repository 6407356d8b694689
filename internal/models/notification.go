package models

import "time"

// NotificationType is the closed set of notification tags.
type NotificationType string

const (
	NotifyEventCreated          NotificationType = "event_created"
	NotifyEventApproved         NotificationType = "event_approved"
	NotifyEventRejected         NotificationType = "event_rejected"
	NotifySessionStarted        NotificationType = "session_started"
	NotifySessionEnded          NotificationType = "session_ended"
	NotifyAttendanceMarked      NotificationType = "attendance_marked"
	NotifyRegistrationCreated   NotificationType = "registration_created"
	NotifyRegistrationCancelled NotificationType = "registration_cancelled"
	NotifyWaitlistPromoted      NotificationType = "waitlist_promoted"
	NotifyCertificateReady      NotificationType = "certificate_ready"
	NotifyFeedbackRequest       NotificationType = "feedback_request"
	NotifyGeneral               NotificationType = "general"
)

// Notification is addressed to one user, to every user of a role, or to
// everyone (Broadcast). Exactly one addressing mode is set.
type Notification struct {
	ID            string           `json:"id"`
	RecipientID   string           `json:"recipientId,omitempty"`
	RecipientRole UserRole         `json:"recipientRole,omitempty"`
	Broadcast     bool             `json:"broadcast"`
	Type          NotificationType `json:"type"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	Data          map[string]any   `json:"data,omitempty"`
	IsRead        bool             `json:"isRead"`
	ReadAt        *time.Time       `json:"readAt,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	ExpiresAt     time.Time        `json:"expiresAt"`
}

// Period is the granularity of a platform summary.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodCustom  Period = "custom"
)

// PlatformSummary holds the counts of one analytics window.
type PlatformSummary struct {
	NewUsers           int     `json:"newUsers"`
	TotalUsers         int     `json:"totalUsers"`
	NewEvents          int     `json:"newEvents"`
	TotalEvents        int     `json:"totalEvents"`
	ActiveEvents       int     `json:"activeEvents"`
	NewRegistrations   int     `json:"newRegistrations"`
	TotalRegistrations int     `json:"totalRegistrations"`
	AttendanceMarked   int     `json:"attendanceMarked"`
	PresentCount       int     `json:"presentCount"`
	AttendanceRate     float64 `json:"attendanceRate"`
	CertificatesIssued int     `json:"certificatesIssued"`
	FeedbackCount      int     `json:"feedbackCount"`
}

// Analytics is an immutable platform-wide snapshot for [WindowStart, WindowEnd).
type Analytics struct {
	ID          string          `json:"id"`
	Period      Period          `json:"period"`
	WindowStart time.Time       `json:"windowStart"`
	WindowEnd   time.Time       `json:"windowEnd"`
	Summary     PlatformSummary `json:"summary"`
	GeneratedAt time.Time       `json:"generatedAt"`
	ExpiresAt   time.Time       `json:"expiresAt"`
}

// PerformanceMetrics is the per-entity metric set of a Performance snapshot.
type PerformanceMetrics struct {
	RegistrationRate  float64 `json:"registrationRate"`
	DropoutRate       float64 `json:"dropoutRate"`
	EngagementScore   float64 `json:"engagementScore"`
	AverageAttendance float64 `json:"averageAttendance"`
	CompletionRate    float64 `json:"completionRate"`
}

// Performance is a daily snapshot of one entity's metrics.
type Performance struct {
	ID         string             `json:"id"`
	EntityType string             `json:"entityType"`
	EntityID   string             `json:"entityId"`
	Date       string             `json:"date"`
	Metrics    PerformanceMetrics `json:"metrics"`
	CreatedAt  time.Time          `json:"createdAt"`
	ExpiresAt  time.Time          `json:"expiresAt"`
}
