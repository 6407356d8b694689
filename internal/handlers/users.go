package handlers

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/campushub/eventhub/internal/aggregate"
	"github.com/campushub/eventhub/internal/apperr"
	"github.com/campushub/eventhub/internal/auth"
	"github.com/campushub/eventhub/internal/models"
	"github.com/campushub/eventhub/internal/policy"
	"github.com/campushub/eventhub/internal/store"
	"github.com/google/uuid"
)

// userFilter reads the list filters shared by ListUsers and ExportUsers.
func userFilter(r *http.Request) (store.UserFilter, error) {
	q := r.URL.Query()
	f := store.UserFilter{
		Role:       models.UserRole(q.Get("role")),
		Department: q.Get("department"),
		Year:       q.Get("year"),
		Section:    q.Get("section"),
		Search:     strings.TrimSpace(q.Get("search")),
	}
	if f.Role != "" && !f.Role.Valid() {
		return f, apperr.Validation("invalid query parameter",
			apperr.FieldError{Field: "role", Message: "must be one of: admin, faculty, trainer, student"})
	}
	active, err := queryBool(r, "isActive")
	if err != nil {
		return f, err
	}
	f.IsActive = active
	return f, nil
}

// ListUsers handles GET /api/users
//
// Query: role, department, year, section, search, isActive, page, limit.
func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	if err := authorize(caller(r), policy.ViewUser, policy.Ownership{}); err != nil {
		s.fail(w, r, err)
		return
	}
	f, err := userFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var page, limit int
	f.Page, page, limit = pageFrom(r)
	users, total, err := s.Store.ListUsers(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "users", paged(users, total, page, limit))
}

// GetUser handles GET /api/users/{id}
func (s *Server) GetUser(w http.ResponseWriter, r *http.Request) {
	p := caller(r)
	id := r.PathValue("id")
	if err := authorize(p, policy.ViewUser, policy.Ownership{Self: id == p.UserID}); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.Store.GetUser(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "user", u)
}

// CreateUser handles POST /api/users (admin). Unlike self-registration it
// can create admins and pre-verified accounts.
func (s *Server) CreateUser(w http.ResponseWriter, r *http.Request) {
	if err := authorize(caller(r), policy.ManageUsers, policy.Ownership{}); err != nil {
		s.fail(w, r, err)
		return
	}
	var req models.CreateUserRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.fail(w, r, apperr.Internal("could not hash password", err))
		return
	}
	now := s.Now()
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Role:         req.Role,
		Phone:        req.Phone,
		IsActive:     true,
		IsVerified:   req.IsVerified,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	setProfiles(u, req.Student, req.Faculty, req.Trainer)
	u.Analytics.ProfileCompleteness = aggregate.ProfileCompleteness(u)
	if err := s.Store.InsertUser(r.Context(), u); err != nil {
		s.fail(w, r, err)
		return
	}
	s.Log.Info("user created", "user_id", u.ID, "role", u.Role, "by", caller(r).UserID)
	created(w, "user created", u)
}

// UpdateUser handles PUT /api/users/{id}. Users may edit their own profile;
// role and account flags are admin only.
func (s *Server) UpdateUser(w http.ResponseWriter, r *http.Request) {
	p := caller(r)
	id := r.PathValue("id")
	if err := authorize(p, policy.UpdateUser, policy.Ownership{Self: id == p.UserID}); err != nil {
		s.fail(w, r, err)
		return
	}
	var req models.UpdateUserRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	isAdmin := policy.Allowed(p, policy.ManageUsers, policy.Ownership{})
	if !isAdmin && (req.Role != nil || req.IsActive != nil || req.IsVerified != nil) {
		s.fail(w, r, apperr.Forbidden("only administrators can change role or account status"))
		return
	}
	if id == p.UserID && req.IsActive != nil && !*req.IsActive {
		s.fail(w, r, apperr.Validation("you cannot deactivate your own account"))
		return
	}

	u, err := s.Store.GetUser(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		u.Phone = *req.Phone
	}
	if req.Role != nil {
		u.Role = *req.Role
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
	if req.IsVerified != nil {
		u.IsVerified = *req.IsVerified
	}
	setProfiles(u, req.Student, req.Faculty, req.Trainer)
	u.Analytics.ProfileCompleteness = aggregate.ProfileCompleteness(u)
	u.UpdatedAt = s.Now()
	if err := s.Store.UpdateUser(r.Context(), u); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "user updated", u)
}

// DeleteUser handles DELETE /api/users/{id} (admin). Registrations and
// attendance records keep their name snapshots.
func (s *Server) DeleteUser(w http.ResponseWriter, r *http.Request) {
	p := caller(r)
	if err := authorize(p, policy.ManageUsers, policy.Ownership{}); err != nil {
		s.fail(w, r, err)
		return
	}
	id := r.PathValue("id")
	if id == p.UserID {
		s.fail(w, r, apperr.Validation("you cannot delete your own account"))
		return
	}
	if err := s.Store.DeleteUser(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.Log.Info("user deleted", "user_id", id, "by", p.UserID)
	ok(w, "user deleted", nil)
}

// ExportUsers handles GET /api/users/export and streams the filtered users
// as CSV.
func (s *Server) ExportUsers(w http.ResponseWriter, r *http.Request) {
	if err := authorize(caller(r), policy.ExportUsers, policy.Ownership{}); err != nil {
		s.fail(w, r, err)
		return
	}
	f, err := userFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	users, _, err := s.Store.ListUsers(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="users.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"id", "name", "email", "role", "department", "program", "year", "section", "rollNumber",
		"phone", "isActive", "isVerified", "totalRegistered", "totalAttended", "certificatesEarned", "createdAt",
	})
	for _, u := range users {
		var st models.StudentProfile
		if u.Student != nil {
			st = *u.Student
		}
		_ = cw.Write([]string{
			u.ID, u.Name, u.Email, string(u.Role), u.Department(), st.Program, st.Year, st.Section, st.RollNumber,
			u.Phone, strconv.FormatBool(u.IsActive), strconv.FormatBool(u.IsVerified),
			strconv.Itoa(u.Analytics.TotalRegistered), strconv.Itoa(u.Analytics.TotalAttended),
			strconv.Itoa(u.Analytics.CertificatesEarned), u.CreatedAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.Log.Warn("user export interrupted", "err", err)
	}
}

// BulkUpdateUsers handles PATCH /api/users/bulk (admin). Unknown ids and
// the caller's own account are skipped.
func (s *Server) BulkUpdateUsers(w http.ResponseWriter, r *http.Request) {
	p := caller(r)
	if err := authorize(p, policy.ManageUsers, policy.Ownership{}); err != nil {
		s.fail(w, r, err)
		return
	}
	var req models.BulkUpdateUsersRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.IsActive == nil && req.IsVerified == nil {
		s.fail(w, r, apperr.Validation("nothing to update",
			apperr.FieldError{Field: "isActive", Message: "isActive or isVerified is required"}))
		return
	}

	resp := models.BulkUpdateResponse{Skipped: []models.Skipped{}}
	now := s.Now()
	for _, id := range req.UserIDs {
		if id == p.UserID {
			resp.Skipped = append(resp.Skipped, models.Skipped{UserID: id, Reason: "cannot bulk-update your own account"})
			continue
		}
		u, err := s.Store.GetUser(r.Context(), id)
		if err != nil {
			resp.Skipped = append(resp.Skipped, models.Skipped{UserID: id, Reason: apperr.PublicMessage(err)})
			continue
		}
		if req.IsActive != nil {
			u.IsActive = *req.IsActive
		}
		if req.IsVerified != nil {
			u.IsVerified = *req.IsVerified
		}
		u.UpdatedAt = now
		if err := s.Store.UpdateUser(r.Context(), u); err != nil {
			resp.Skipped = append(resp.Skipped, models.Skipped{UserID: id, Reason: apperr.PublicMessage(err)})
			continue
		}
		resp.Updated++
	}
	ok(w, "users updated", resp)
}
