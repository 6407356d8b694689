package handlers

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"testing"

	"github.com/campushub/eventhub/internal/models"
)

var (
	certNumberRe = regexp.MustCompile(`^CERT-2026-[A-Z2-9]{8}$`)
	verifyCodeRe = regexp.MustCompile(`^[A-Z2-9]{12}$`)
)

func certificateFixture(t *testing.T) *attendanceFixture {
	t.Helper()
	f := newAttendanceFixture(t, 2, func(e *models.Event) {
		e.Certificate = models.CertificatePolicy{Enabled: true, MinAttendance: 75}
	})
	f.mark(t, f.trainer, []models.AttendanceEntry{
		{UserID: f.students[0].ID, Present: true},
		{UserID: f.students[1].ID, Present: false},
	})
	return f
}

// ---- Certificate handler tests ----

func TestGenerateCertificate(t *testing.T) {
	f := certificateFixture(t)
	student := f.students[0]
	req := models.GenerateCertificateRequest{EventID: f.event.ID}

	var cert models.Certificate
	expect(t, call(t, f.srv.GenerateCertificate, http.MethodPost, "/api/certificates/generate", req, student),
		http.StatusCreated, &cert)
	if !certNumberRe.MatchString(cert.CertificateNumber) {
		t.Errorf("certificate number: %q", cert.CertificateNumber)
	}
	if !verifyCodeRe.MatchString(cert.VerificationCode) {
		t.Errorf("verification code: %q", cert.VerificationCode)
	}
	if cert.AttendancePercentage != 100 || cert.UserID != student.ID {
		t.Errorf("certificate: %+v", cert)
	}

	expect(t, call(t, f.srv.GenerateCertificate, http.MethodPost, "/api/certificates/generate", req, student),
		http.StatusConflict, nil)

	ctx := context.Background()
	reg, err := f.srv.Store.GetRegistrationFor(ctx, f.event.ID, student.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reg.Certificate.Issued || reg.Certificate.CertificateID != cert.ID {
		t.Errorf("registration certificate block: %+v", reg.Certificate)
	}
	u, err := f.srv.Store.GetUser(ctx, student.ID)
	if err != nil {
		t.Fatal(err)
	}
	if u.Analytics.CertificatesEarned != 1 {
		t.Errorf("certificates earned: %d", u.Analytics.CertificatesEarned)
	}
}

func TestGenerateCertificate_Rejections(t *testing.T) {
	f := certificateFixture(t)
	absent := f.students[1]
	req := models.GenerateCertificateRequest{EventID: f.event.ID}

	env := expect(t, call(t, f.srv.GenerateCertificate, http.MethodPost, "/api/certificates/generate", req, absent),
		http.StatusBadRequest, nil)
	if !strings.Contains(env.Message, "below the required") {
		t.Errorf("message: %q", env.Message)
	}

	other := models.GenerateCertificateRequest{EventID: f.event.ID, UserID: f.students[0].ID}
	expect(t, call(t, f.srv.GenerateCertificate, http.MethodPost, "/api/certificates/generate", other, absent),
		http.StatusForbidden, nil)

	outsider := seedUser(t, f.srv, models.RoleStudent, "outsider@campus.test")
	expect(t, call(t, f.srv.GenerateCertificate, http.MethodPost, "/api/certificates/generate", req, outsider),
		http.StatusBadRequest, nil)
}

func TestBulkGenerateCertificates(t *testing.T) {
	f := certificateFixture(t)

	var resp models.BulkCertificateResponse
	expect(t, call(t, f.srv.BulkGenerateCertificates, http.MethodPost, "/api/events/x/certificates/bulk",
		nil, f.faculty, "id", f.event.ID), http.StatusOK, &resp)
	if len(resp.Issued) != 1 || len(resp.Skipped) != 1 {
		t.Fatalf("issued=%d skipped=%+v", len(resp.Issued), resp.Skipped)
	}
	if resp.Skipped[0].UserID != f.students[1].ID {
		t.Errorf("skipped: %+v", resp.Skipped)
	}

	expect(t, call(t, f.srv.BulkGenerateCertificates, http.MethodPost, "/api/events/x/certificates/bulk",
		nil, f.faculty, "id", f.event.ID), http.StatusOK, &resp)
	if len(resp.Issued) != 0 || len(resp.Skipped) != 2 {
		t.Errorf("second run: issued=%d skipped=%d", len(resp.Issued), len(resp.Skipped))
	}
}

func TestVerifyAndDownloadCertificate(t *testing.T) {
	f := certificateFixture(t)
	student := f.students[0]
	var cert models.Certificate
	expect(t, call(t, f.srv.GenerateCertificate, http.MethodPost, "/api/certificates/generate",
		models.GenerateCertificateRequest{EventID: f.event.ID}, student), http.StatusCreated, &cert)

	for _, code := range []string{cert.VerificationCode, strings.ToLower(cert.VerificationCode), cert.CertificateNumber} {
		var got map[string]any
		expect(t, call(t, f.srv.VerifyCertificate, http.MethodGet, "/api/certificates/verify/x", nil, nil, "code", code),
			http.StatusOK, &got)
		if got["valid"] != true || got["certificateNumber"] != cert.CertificateNumber {
			t.Errorf("verify %q: %+v", code, got)
		}
	}
	expect(t, call(t, f.srv.VerifyCertificate, http.MethodGet, "/api/certificates/verify/x", nil, nil, "code", "NOPE"),
		http.StatusNotFound, nil)

	expect(t, call(t, f.srv.DownloadCertificate, http.MethodPost, "/api/certificates/x/download", nil,
		f.students[1], "id", cert.ID), http.StatusForbidden, nil)
	var downloaded models.Certificate
	for range 2 {
		expect(t, call(t, f.srv.DownloadCertificate, http.MethodPost, "/api/certificates/x/download", nil,
			student, "id", cert.ID), http.StatusOK, &downloaded)
	}
	if downloaded.DownloadCount != 2 || downloaded.LastDownloadedAt == nil {
		t.Errorf("downloads: count=%d last=%v", downloaded.DownloadCount, downloaded.LastDownloadedAt)
	}

	var mine []models.Certificate
	expect(t, call(t, f.srv.MyCertificates, http.MethodGet, "/api/certificates/my", nil, student), http.StatusOK, &mine)
	if len(mine) != 1 || mine[0].ID != cert.ID {
		t.Errorf("my certificates: %+v", mine)
	}
}
