package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/campushub/eventhub/internal/aggregate"
	"github.com/campushub/eventhub/internal/apperr"
	"github.com/campushub/eventhub/internal/auth"
	"github.com/campushub/eventhub/internal/middleware"
	"github.com/campushub/eventhub/internal/models"
	"github.com/google/uuid"
)

var errBadCredentials = apperr.Unauthorized("invalid email or password")

// setProfiles keeps only the profile block that matches the user's role.
func setProfiles(u *models.User, st *models.StudentProfile, fa *models.FacultyProfile, tr *models.TrainerProfile) {
	switch u.Role {
	case models.RoleStudent:
		if st != nil {
			u.Student = st
		}
		if u.Student == nil {
			u.Student = &models.StudentProfile{}
		}
		u.Student.RollNumber = strings.TrimSpace(u.Student.RollNumber)
		u.Faculty, u.Trainer = nil, nil
	case models.RoleFaculty:
		if fa != nil {
			u.Faculty = fa
		}
		if u.Faculty == nil {
			u.Faculty = &models.FacultyProfile{}
		}
		u.Student, u.Trainer = nil, nil
	case models.RoleTrainer:
		if tr != nil {
			u.Trainer = tr
		}
		if u.Trainer == nil {
			u.Trainer = &models.TrainerProfile{}
		}
		u.Student, u.Faculty = nil, nil
	default:
		u.Student, u.Faculty, u.Trainer = nil, nil, nil
	}
}

func normalizeEmail(e string) string { return strings.TrimSpace(strings.ToLower(e)) }

// setTokenCookie mirrors the bearer token into an HttpOnly cookie so the
// browser client and the WebSocket handshake can authenticate without
// script access to the token.
func (s *Server) setTokenCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.Config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) issue(w http.ResponseWriter, u *models.User) (string, error) {
	token, err := s.Issuer.Generate(u.ID, u.Role)
	if err != nil {
		return "", apperr.Internal("could not generate token", err)
	}
	s.setTokenCookie(w, token, int(s.Issuer.TTL()/time.Second))
	return token, nil
}

// Register handles POST /api/auth/register
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
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
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	setProfiles(u, req.Student, req.Faculty, req.Trainer)
	u.Analytics.ProfileCompleteness = aggregate.ProfileCompleteness(u)

	if err := s.Store.InsertUser(r.Context(), u); err != nil {
		s.fail(w, r, err)
		return
	}
	token, err := s.issue(w, u)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.Log.Info("user registered", "user_id", u.ID, "role", u.Role)
	created(w, "registration successful", models.LoginResponse{Token: token, User: *u})
}

// Login handles POST /api/auth/login
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	u, err := s.Store.GetUserByEmail(r.Context(), normalizeEmail(req.Email))
	if apperr.Is(err, apperr.KindNotFound) {
		s.fail(w, r, errBadCredentials)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		s.fail(w, r, errBadCredentials)
		return
	}
	if !u.IsActive {
		s.fail(w, r, apperr.Forbidden("account is deactivated"))
		return
	}

	now := s.Now()
	if err := s.Store.TouchLogin(r.Context(), u.ID, now); err != nil {
		s.Log.Warn("could not record login", "user_id", u.ID, "err", err)
	}
	u.LastLogin = &now

	token, err := s.issue(w, u)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "login successful", models.LoginResponse{Token: token, User: *u})
}

// Me handles GET /api/auth/me
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	u, err := s.Store.GetUser(r.Context(), caller(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "profile", u)
}

// UpdateProfile handles PUT /api/auth/profile
func (s *Server) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.Store.GetUser(r.Context(), caller(r).UserID)
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
	setProfiles(u, req.Student, req.Faculty, req.Trainer)
	u.Analytics.ProfileCompleteness = aggregate.ProfileCompleteness(u)
	u.UpdatedAt = s.Now()

	if err := s.Store.UpdateUser(r.Context(), u); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "profile updated", u)
}

// ChangePassword handles PUT /api/auth/change-password
func (s *Server) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req models.ChangePasswordRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.Store.GetUser(r.Context(), caller(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.CurrentPassword) {
		s.fail(w, r, apperr.Validation("current password is incorrect",
			apperr.FieldError{Field: "currentPassword", Message: "is incorrect"}))
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		s.fail(w, r, apperr.Internal("could not hash password", err))
		return
	}
	u.PasswordHash = hash
	u.UpdatedAt = s.Now()
	if err := s.Store.UpdateUser(r.Context(), u); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "password changed", nil)
}

// Logout handles POST /api/auth/logout. Tokens are stateless, so this only
// clears the cookie.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	s.setTokenCookie(w, "", -1)
	ok(w, "logged out", nil)
}

// ForgotPassword handles POST /api/auth/forgot-password. Password reset
// needs an outbound mail channel, which the platform does not have yet.
func (s *Server) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	s.fail(w, r, apperr.NotImplemented("password reset is not available yet; contact an administrator"))
}
