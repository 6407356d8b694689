package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/campushub/eventhub/internal/apperr"
	"github.com/campushub/eventhub/internal/models"
	"github.com/campushub/eventhub/internal/policy"
	"github.com/campushub/eventhub/internal/store"
	"github.com/google/uuid"
)

var errAlreadyIssued = apperr.Conflict("certificate", "certificate already issued")

// issueCertificate issues the certificate of userID for ev. The
// certificate insert and the registration's issued flag are written in one
// transaction; the UNIQUE (event, user) key makes a concurrent second
// issue fail with 409.
func (s *Server) issueCertificate(ctx context.Context, ev *models.Event, userID, issuedBy string) (*models.Certificate, error) {
	if !ev.Certificate.Enabled {
		return nil, apperr.Validation("certificates are not enabled for this event")
	}
	now := s.Now()
	var cert *models.Certificate
	err := s.Store.WithTx(ctx, func(tx *store.Store) error {
		reg, err := tx.GetRegistrationFor(ctx, ev.ID, userID)
		if apperr.Is(err, apperr.KindNotFound) || (err == nil && reg.Status == models.RegCancelled) {
			return apperr.Validation("user is not registered for this event")
		}
		if err != nil {
			return err
		}
		if reg.Certificate.Issued {
			return errAlreadyIssued
		}
		if !reg.Certificate.Eligible {
			return apperr.Validation(fmt.Sprintf("attendance %.2f%% is below the required %.2f%%",
				reg.AttendancePercentage, ev.Certificate.MinAttendance))
		}
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}

		cert = &models.Certificate{
			ID:                   uuid.NewString(),
			CertificateNumber:    fmt.Sprintf("CERT-%d-%s", now.Year(), randomCode(8)),
			VerificationCode:     randomCode(12),
			EventID:              ev.ID,
			UserID:               u.ID,
			RegistrationID:       reg.ID,
			EventTitle:           ev.Title,
			UserName:             u.Name,
			Department:           u.Department(),
			EventStartDate:       ev.StartDate,
			EventEndDate:         ev.EndDate,
			AttendancePercentage: reg.AttendancePercentage,
			AttendedSessions:     reg.AttendedSessions,
			TotalSessions:        reg.TotalSessions,
			IssuedBy:             issuedBy,
			IssuedAt:             now,
		}
		if err := tx.InsertCertificate(ctx, cert); err != nil {
			return err
		}
		reg.Certificate.Issued = true
		reg.Certificate.CertificateID = cert.ID
		reg.Certificate.IssuedAt = &now
		return tx.UpdateRegistration(ctx, reg)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.Engine.RecomputeUserAnalytics(ctx, userID); err != nil {
		s.Log.Warn("user analytics refresh failed", "user_id", userID, "err", err)
	}
	s.logDispatch("certificate ready", s.Notify.CertificateReady(ctx, cert))
	return cert, nil
}

// GenerateCertificate handles POST /api/certificates/generate
//
// Students generate their own certificate; admins and the event's
// coordinator may generate one for any eligible registrant.
func (s *Server) GenerateCertificate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateCertificateRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	p := caller(r)
	if req.UserID == "" {
		req.UserID = p.UserID
	}
	ev, err := s.Store.GetEvent(r.Context(), req.EventID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	own, err := s.ownership(r.Context(), p, ev)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	own.Self = req.UserID == p.UserID
	if err := authorize(p, policy.GenerateCertificate, own); err != nil {
		s.fail(w, r, err)
		return
	}

	cert, err := s.issueCertificate(r.Context(), ev, req.UserID, p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	created(w, "certificate generated", cert)
}

// BulkGenerateCertificates handles POST /api/events/{id}/certificates/bulk
// and issues a certificate to every eligible confirmed registrant who does
// not have one yet.
func (s *Server) BulkGenerateCertificates(w http.ResponseWriter, r *http.Request) {
	ev, err := s.loadEvent(r, "id", policy.GenerateCertificate)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ev.Certificate.Enabled {
		s.fail(w, r, apperr.Validation("certificates are not enabled for this event"))
		return
	}
	regs, err := s.Store.ListRegistrationsByEvent(r.Context(), ev.ID, models.RegConfirmed)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := models.BulkCertificateResponse{Issued: []models.Certificate{}, Skipped: []models.Skipped{}}
	for _, reg := range regs {
		switch {
		case reg.Certificate.Issued:
			resp.Skipped = append(resp.Skipped, models.Skipped{UserID: reg.UserID, Reason: "certificate already issued"})
			continue
		case !reg.Certificate.Eligible:
			resp.Skipped = append(resp.Skipped, models.Skipped{UserID: reg.UserID, Reason: "attendance below the required minimum"})
			continue
		}
		cert, err := s.issueCertificate(r.Context(), ev, reg.UserID, caller(r).UserID)
		if err != nil {
			if apperr.StatusOf(err) >= http.StatusInternalServerError {
				s.Log.Error("bulk certificate failed", "event_id", ev.ID, "user_id", reg.UserID, "err", err)
			}
			resp.Skipped = append(resp.Skipped, models.Skipped{UserID: reg.UserID, Reason: apperr.PublicMessage(err)})
			continue
		}
		resp.Issued = append(resp.Issued, *cert)
	}
	s.Log.Info("bulk certificates", "event_id", ev.ID, "issued", len(resp.Issued), "skipped", len(resp.Skipped))
	ok(w, fmt.Sprintf("%d certificate(s) issued", len(resp.Issued)), resp)
}

// VerifyCertificate handles GET /api/certificates/verify/{code}
// Public endpoint. The code may be the verification code or the
// certificate number.
func (s *Server) VerifyCertificate(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(r.PathValue("code")))
	cert, err := s.Store.GetCertificateByCode(r.Context(), code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "certificate is valid", map[string]any{
		"valid":             true,
		"certificateNumber": cert.CertificateNumber,
		"userName":          cert.UserName,
		"eventTitle":        cert.EventTitle,
		"department":        cert.Department,
		"eventStartDate":    cert.EventStartDate,
		"eventEndDate":      cert.EventEndDate,
		"issuedAt":          cert.IssuedAt,
	})
}

// DownloadCertificate handles POST /api/certificates/{id}/download. It
// counts the download and returns the certificate for rendering.
func (s *Server) DownloadCertificate(w http.ResponseWriter, r *http.Request) {
	cert, err := s.Store.GetCertificate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p := caller(r)
	own := policy.Ownership{Self: cert.UserID == p.UserID}
	if ev, err := s.Store.GetEvent(r.Context(), cert.EventID); err == nil {
		own.Coordinator = ev.CoordinatorID == p.UserID
	}
	if err := authorize(p, policy.GenerateCertificate, own); err != nil {
		s.fail(w, r, err)
		return
	}
	cert, err = s.Store.TrackDownload(r.Context(), cert.ID, s.Now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "certificate", cert)
}

// MyCertificates handles GET /api/certificates/my
func (s *Server) MyCertificates(w http.ResponseWriter, r *http.Request) {
	certs, err := s.Store.ListCertificatesByUser(r.Context(), caller(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "certificates", certs)
}
