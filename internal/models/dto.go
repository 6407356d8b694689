package models

import "time"

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=8"`
	Name     string          `json:"name" validate:"required,max=120"`
	Role     UserRole        `json:"role" validate:"required,oneof=student faculty trainer"`
	Phone    string          `json:"phone" validate:"omitempty,max=20"`
	Student  *StudentProfile `json:"student,omitempty"`
	Faculty  *FacultyProfile `json:"faculty,omitempty"`
	Trainer  *TrainerProfile `json:"trainer,omitempty"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned by register and login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// UpdateProfileRequest is the body of PUT /api/auth/profile. Nil fields
// are left unchanged.
type UpdateProfileRequest struct {
	Name    *string         `json:"name" validate:"omitempty,min=1,max=120"`
	Phone   *string         `json:"phone" validate:"omitempty,max=20"`
	Student *StudentProfile `json:"student,omitempty"`
	Faculty *FacultyProfile `json:"faculty,omitempty"`
	Trainer *TrainerProfile `json:"trainer,omitempty"`
}

// ChangePasswordRequest is the body of PUT /api/auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,nefield=CurrentPassword"`
}

// ForgotPasswordRequest is the body of POST /api/auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// RegistrationPolicyInput is the client-editable part of RegistrationPolicy.
type RegistrationPolicyInput struct {
	Required        bool       `json:"required"`
	StartDate       *time.Time `json:"startDate"`
	EndDate         *time.Time `json:"endDate"`
	MaxParticipants *int       `json:"maxParticipants" validate:"omitempty,min=1"`
}

// EventRequest is the body of POST /api/events and PUT /api/events/{id}.
type EventRequest struct {
	Title        string                  `json:"title" validate:"required,max=200"`
	Description  string                  `json:"description" validate:"max=5000"`
	Category     string                  `json:"category" validate:"required"`
	Type         EventType               `json:"type" validate:"required,oneof=workshop seminar training competition cultural other"`
	Venue        string                  `json:"venue"`
	StartDate    time.Time               `json:"startDate" validate:"required"`
	EndDate      time.Time               `json:"endDate" validate:"required,gtefield=StartDate"`
	Eligibility  Eligibility             `json:"eligibility"`
	Registration RegistrationPolicyInput `json:"registration"`
	Certificate  CertificatePolicy       `json:"certificate"`
	Feedback     FeedbackPolicy          `json:"feedback"`
}

// RejectEventRequest is the body of PATCH /api/events/{id}/reject.
type RejectEventRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// EventStatusRequest is the body of PATCH /api/events/{id}/status.
type EventStatusRequest struct {
	Status EventStatus `json:"status" validate:"required,oneof=draft pending approved rejected ongoing completed cancelled"`
}

// ToggleRegistrationRequest is the body of PATCH
// /api/events/{id}/toggle-registration. A nil IsOpen flips the flag.
type ToggleRegistrationRequest struct {
	IsOpen *bool `json:"isOpen"`
}

// EventAnalytics is returned by GET /api/events/{id}/analytics.
type EventAnalytics struct {
	Event       *Event           `json:"event"`
	Stats       EventStats       `json:"stats"`
	Performance EventPerformance `json:"performance"`
	Feedback    FeedbackSummary  `json:"feedback"`
	History     []Performance    `json:"history"`
}

// FeedbackSummary aggregates the feedback of one event.
type FeedbackSummary struct {
	Count              int         `json:"count"`
	AverageRating      float64     `json:"averageRating"`
	RatingDistribution map[int]int `json:"ratingDistribution"`
}

// SessionRequest is the body of POST /api/events/{id}/sessions and PUT
// /api/sessions/{id}. A zero Sequence on create takes the next free one.
type SessionRequest struct {
	Title          string        `json:"title" validate:"required,max=200"`
	Description    string        `json:"description"`
	Sequence       int           `json:"sequence" validate:"min=0"`
	TrainerID      string        `json:"trainerId"`
	ScheduledStart time.Time     `json:"scheduledStart" validate:"required"`
	ScheduledEnd   time.Time     `json:"scheduledEnd" validate:"required,gtfield=ScheduledStart"`
	Venue          string        `json:"venue"`
	Status         SessionStatus `json:"status" validate:"omitempty,oneof=scheduled ongoing completed cancelled postponed"`
}

// MaterialRequest is the body of POST /api/sessions/{id}/materials.
type MaterialRequest struct {
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"required,url"`
	Type string `json:"type"`
}

// SessionAnalytics is returned by GET /api/sessions/{id}/analytics.
type SessionAnalytics struct {
	Session     *Session          `json:"session"`
	Attendance  SessionAttendance `json:"attendance"`
	Departments []DepartmentStats `json:"departments"`
	Records     []Attendance      `json:"records"`
}

// AttendanceEntry is one user of a batch attendance mark.
type AttendanceEntry struct {
	UserID  string `json:"userId" validate:"required"`
	Present bool   `json:"present"`
	Remarks string `json:"remarks" validate:"max=500"`
}

// MarkAttendanceRequest is the body of POST /api/sessions/{id}/attendance.
type MarkAttendanceRequest struct {
	Records []AttendanceEntry `json:"records" validate:"required,min=1,dive"`
}

// Skipped reports an item of a batch that was not applied.
type Skipped struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

// MarkAttendanceResponse reports a batch attendance mark.
type MarkAttendanceResponse struct {
	Session *Session     `json:"session"`
	Marked  []Attendance `json:"marked"`
	Skipped []Skipped    `json:"skipped"`
}

// AttendanceAnalytics is returned by GET /api/attendance/analytics.
type AttendanceAnalytics struct {
	EventID     string            `json:"eventId,omitempty"`
	Total       int               `json:"total"`
	Present     int               `json:"present"`
	Rate        float64           `json:"rate"`
	Sessions    []SessionRate     `json:"sessions"`
	Departments []DepartmentStats `json:"departments"`
}

// GenerateCertificateRequest is the body of POST /api/certificates/generate.
type GenerateCertificateRequest struct {
	EventID string `json:"eventId" validate:"required"`
	UserID  string `json:"userId"`
}

// BulkCertificateResponse reports POST /api/events/{id}/certificates/bulk.
type BulkCertificateResponse struct {
	Issued  []Certificate `json:"issued"`
	Skipped []Skipped     `json:"skipped"`
}

// FeedbackRequest is the body of POST /api/events/{id}/feedback.
type FeedbackRequest struct {
	Responses     []FeedbackResponse `json:"responses" validate:"dive"`
	OverallRating int                `json:"overallRating" validate:"required,min=1,max=5"`
	Comments      string             `json:"comments" validate:"max=2000"`
}

// CreateUserRequest is the body of POST /api/users (admin).
type CreateUserRequest struct {
	Email      string          `json:"email" validate:"required,email"`
	Password   string          `json:"password" validate:"required,min=8"`
	Name       string          `json:"name" validate:"required,max=120"`
	Role       UserRole        `json:"role" validate:"required,oneof=admin faculty trainer student"`
	Phone      string          `json:"phone" validate:"omitempty,max=20"`
	IsVerified bool            `json:"isVerified"`
	Student    *StudentProfile `json:"student,omitempty"`
	Faculty    *FacultyProfile `json:"faculty,omitempty"`
	Trainer    *TrainerProfile `json:"trainer,omitempty"`
}

// UpdateUserRequest is the body of PUT /api/users/{id}. Role, IsActive and
// IsVerified are honoured for admins only.
type UpdateUserRequest struct {
	Name       *string         `json:"name" validate:"omitempty,min=1,max=120"`
	Phone      *string         `json:"phone" validate:"omitempty,max=20"`
	Role       *UserRole       `json:"role" validate:"omitempty,oneof=admin faculty trainer student"`
	IsActive   *bool           `json:"isActive"`
	IsVerified *bool           `json:"isVerified"`
	Student    *StudentProfile `json:"student,omitempty"`
	Faculty    *FacultyProfile `json:"faculty,omitempty"`
	Trainer    *TrainerProfile `json:"trainer,omitempty"`
}

// BulkUpdateUsersRequest is the body of PATCH /api/users/bulk.
type BulkUpdateUsersRequest struct {
	UserIDs    []string `json:"userIds" validate:"required,min=1,dive,required"`
	IsActive   *bool    `json:"isActive"`
	IsVerified *bool    `json:"isVerified"`
}

// BulkUpdateResponse reports PATCH /api/users/bulk.
type BulkUpdateResponse struct {
	Updated int       `json:"updated"`
	Skipped []Skipped `json:"skipped"`
}

// GenerateAnalyticsRequest is the body of POST /api/admin/db/analytics.
// Daily, weekly and monthly default to the last complete window.
type GenerateAnalyticsRequest struct {
	Period    Period     `json:"period" validate:"required,oneof=daily weekly monthly custom"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

// Paged wraps one page of a list response.
type Paged[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}
