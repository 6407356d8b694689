// Package models holds the documents persisted in each collection and the
// request/response DTOs exchanged with clients.
//
// Documents are plain structs serialised with encoding/json. Optional
// fields are pointers or omitempty so an absent field stays absent, the
// way a document database treats it.
package models

import "time"

// UserRole defines the type of user account.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleFaculty UserRole = "faculty"
	RoleTrainer UserRole = "trainer"
	RoleStudent UserRole = "student"
)

// Valid reports whether r is one of the four known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleFaculty, RoleTrainer, RoleStudent:
		return true
	}
	return false
}

// StudentProfile is the role-specific block for students.
type StudentProfile struct {
	Department string `json:"department,omitempty"`
	Program    string `json:"program,omitempty"`
	Year       string `json:"year,omitempty"`
	Section    string `json:"section,omitempty"`
	RollNumber string `json:"rollNumber,omitempty"`
}

// FacultyProfile is the role-specific block for faculty members.
type FacultyProfile struct {
	Department    string `json:"department,omitempty"`
	Designation   string `json:"designation,omitempty"`
	CanCoordinate bool   `json:"canCoordinate"`
}

// TrainerProfile is the role-specific block for external trainers.
type TrainerProfile struct {
	Organization string   `json:"organization,omitempty"`
	Expertise    []string `json:"expertise,omitempty"`
}

// UserAnalytics is the cached summary maintained by the aggregation engine.
type UserAnalytics struct {
	TotalRegistered     int     `json:"totalRegistered"`
	TotalAttended       int     `json:"totalAttended"`
	AverageAttendance   float64 `json:"averageAttendance"`
	CertificatesEarned  int     `json:"certificatesEarned"`
	ProfileCompleteness float64 `json:"profileCompleteness"`
}

// User represents every account regardless of role.
type User struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Name         string          `json:"name"`
	Role         UserRole        `json:"role"`
	Phone        string          `json:"phone,omitempty"`
	IsActive     bool            `json:"isActive"`
	IsVerified   bool            `json:"isVerified"`
	LastLogin    *time.Time      `json:"lastLogin,omitempty"`
	Student      *StudentProfile `json:"student,omitempty"`
	Faculty      *FacultyProfile `json:"faculty,omitempty"`
	Trainer      *TrainerProfile `json:"trainer,omitempty"`
	Analytics    UserAnalytics   `json:"analytics"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Department returns the department from whichever profile block applies.
func (u *User) Department() string {
	switch {
	case u.Student != nil:
		return u.Student.Department
	case u.Faculty != nil:
		return u.Faculty.Department
	}
	return ""
}

// userDoc is the stored shape of a User. PasswordHash is hidden from API
// responses by its json:"-" tag, so the store persists it through this
// wrapper instead.
type userDoc struct {
	User
	PasswordHash string `json:"passwordHash"`
}

// StoredUser wraps u for persistence, keeping the password hash.
func StoredUser(u *User) any {
	return userDoc{User: *u, PasswordHash: u.PasswordHash}
}

// LoadStoredUser restores a user document, including its password hash.
func LoadStoredUser(decode func(any) error) (*User, error) {
	var d userDoc
	if err := decode(&d); err != nil {
		return nil, err
	}
	u := d.User
	u.PasswordHash = d.PasswordHash
	return &u, nil
}
