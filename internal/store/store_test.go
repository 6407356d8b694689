package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/campushub/eventhub/internal/apperr"
	"github.com/campushub/eventhub/internal/db"
	"github.com/campushub/eventhub/internal/models"
	"github.com/google/uuid"
)

var testDBCounter uint64

// newTestStore returns a Store backed by a unique in-memory database.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	id := atomic.AddUint64(&testDBCounter, 1)
	d, err := db.Open(fmt.Sprintf("file:storetest%d?mode=memory&cache=shared", id))
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return New(d)
}

func seedUser(t *testing.T, s *Store, role models.UserRole) *models.User {
	t.Helper()
	id := uuid.NewString()
	u := &models.User{
		ID:           id,
		Email:        "user-" + id + "@campus.test",
		PasswordHash: "hash",
		Name:         "User " + id[:4],
		Role:         role,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if role == models.RoleStudent {
		u.Student = &models.StudentProfile{Department: "CSE", Year: "2", Section: "A"}
	}
	if err := s.InsertUser(context.Background(), u); err != nil {
		t.Fatalf("seedUser: %v", err)
	}
	return u
}

func seedEvent(t *testing.T, s *Store, coordinatorID string) *models.Event {
	t.Helper()
	now := time.Now().UTC()
	e := &models.Event{
		ID:            uuid.NewString(),
		EventCode:     "EVT-" + uuid.NewString()[:8],
		Title:         "Go Workshop",
		Category:      "technical",
		Type:          models.TypeWorkshop,
		Status:        models.EventApproved,
		CoordinatorID: coordinatorID,
		StartDate:     now.Add(24 * time.Hour),
		EndDate:       now.Add(48 * time.Hour),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.InsertEvent(context.Background(), e); err != nil {
		t.Fatalf("seedEvent: %v", err)
	}
	return e
}

func TestUser_RoundTripKeepsPasswordHash(t *testing.T) {
	s := newTestStore(t)
	u := seedUser(t, s, models.RoleStudent)

	got, err := s.GetUserByEmail(context.Background(), "  "+u.Email+" ")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.PasswordHash != "hash" {
		t.Errorf("expected password hash to survive storage, got %q", got.PasswordHash)
	}
	if got.Student == nil || got.Student.Department != "CSE" {
		t.Errorf("student profile lost: %+v", got.Student)
	}
}

func TestInsertUser_DuplicateEmailConflict(t *testing.T) {
	s := newTestStore(t)
	u := seedUser(t, s, models.RoleStudent)

	dup := *u
	dup.ID = uuid.NewString()
	dup.Email = "USER-" + u.ID + "@campus.test"
	err := s.InsertUser(context.Background(), &dup)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var ae *apperr.Error
	if e, ok := err.(*apperr.Error); ok {
		ae = e
	}
	if ae == nil || ae.Field != "email" {
		t.Errorf("expected conflict on email, got %+v", err)
	}
}

func TestInsertUser_EmptyRollNumbersDoNotCollide(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, models.RoleStudent)
	seedUser(t, s, models.RoleStudent)
	seedUser(t, s, models.RoleTrainer)

	users, total, err := s.ListUsers(context.Background(), UserFilter{Role: models.RoleStudent})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if total != 2 || len(users) != 2 {
		t.Errorf("expected 2 students, got total=%d len=%d", total, len(users))
	}
}

func TestGetEvent_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetEvent(context.Background(), "missing")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListEvents_DepartmentFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	coord := seedUser(t, s, models.RoleFaculty)

	open := seedEvent(t, s, coord.ID)
	restricted := seedEvent(t, s, coord.ID)
	restricted.Eligibility.Departments = []string{"ECE"}
	if err := s.UpdateEvent(ctx, restricted); err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}

	events, total, err := s.ListEvents(ctx, EventFilter{Department: "CSE"})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if total != 1 || events[0].ID != open.ID {
		t.Errorf("expected only the unrestricted event, got %d events", total)
	}
}

func TestInsertRegistration_ConcurrentDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	coord := seedUser(t, s, models.RoleFaculty)
	student := seedUser(t, s, models.RoleStudent)
	ev := seedEvent(t, s, coord.ID)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.InsertRegistration(ctx, &models.Registration{
				ID:           uuid.NewString(),
				EventID:      ev.ID,
				UserID:       student.ID,
				Status:       models.RegConfirmed,
				RegisteredAt: time.Now().UTC(),
			})
		}(i)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.Is(err, apperr.KindConflict):
			conflict++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflict != 1 {
		t.Errorf("expected one success and one conflict, got %d/%d", ok, conflict)
	}
}

func TestCancel_StaleCopyKeepsLaterWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	coord := seedUser(t, s, models.RoleFaculty)
	student := seedUser(t, s, models.RoleStudent)
	ev := seedEvent(t, s, coord.ID)
	reg := &models.Registration{
		ID:           uuid.NewString(),
		EventID:      ev.ID,
		UserID:       student.ID,
		Status:       models.RegConfirmed,
		RegisteredAt: time.Now().UTC(),
	}
	if err := s.InsertRegistration(ctx, reg); err != nil {
		t.Fatalf("InsertRegistration: %v", err)
	}
	stale := *reg

	// An attendance mark lands after the copy was read.
	reg.Attendance = []models.SessionMark{{SessionID: "s1", Present: true, MarkedAt: time.Now().UTC()}}
	reg.AttendedSessions, reg.TotalSessions, reg.AttendancePercentage = 1, 1, 100
	if err := s.UpdateRegistration(ctx, reg); err != nil {
		t.Fatalf("UpdateRegistration: %v", err)
	}

	at := time.Now().UTC()
	second := stale
	if ok, err := s.Cancel(ctx, &stale, at); err != nil || !ok {
		t.Fatalf("Cancel: ok=%v err=%v", ok, err)
	}
	if stale.Status != models.RegCancelled || stale.CancelledAt == nil || !stale.CancelledAt.Equal(at) {
		t.Errorf("expected the cancelled document back, got %+v", stale)
	}
	if len(stale.Attendance) != 1 || stale.AttendancePercentage != 100 {
		t.Errorf("cancel dropped the attendance mark: %+v", stale)
	}
	if ok, err := s.Cancel(ctx, &second, at); err != nil || ok {
		t.Errorf("expected a second cancel to lose, got ok=%v err=%v", ok, err)
	}
}

func TestCancel_ConcurrentSingleWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	coord := seedUser(t, s, models.RoleFaculty)
	student := seedUser(t, s, models.RoleStudent)
	ev := seedEvent(t, s, coord.ID)
	reg := &models.Registration{
		ID:           uuid.NewString(),
		EventID:      ev.ID,
		UserID:       student.ID,
		Status:       models.RegConfirmed,
		RegisteredAt: time.Now().UTC(),
	}
	if err := s.InsertRegistration(ctx, reg); err != nil {
		t.Fatalf("InsertRegistration: %v", err)
	}

	var wg sync.WaitGroup
	wins := make([]bool, 4)
	errs := make([]error, len(wins))
	for i := range wins {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := *reg
			wins[i], errs[i] = s.Cancel(ctx, &r, time.Now().UTC())
		}(i)
	}
	wg.Wait()

	won := 0
	for i, ok := range wins {
		if errs[i] != nil {
			t.Errorf("unexpected error: %v", errs[i])
		}
		if ok {
			won++
		}
	}
	if won != 1 {
		t.Errorf("expected exactly one winner, got %d", won)
	}
}

func TestOldestWaitlistedAndPromote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	coord := seedUser(t, s, models.RoleFaculty)
	ev := seedEvent(t, s, coord.ID)

	base := time.Now().UTC()
	var ids []string
	for i := 0; i < 3; i++ {
		u := seedUser(t, s, models.RoleStudent)
		r := &models.Registration{
			ID:           uuid.NewString(),
			EventID:      ev.ID,
			UserID:       u.ID,
			Status:       models.RegWaitlisted,
			RegisteredAt: base.Add(time.Duration(3-i) * time.Minute),
		}
		if err := s.InsertRegistration(ctx, r); err != nil {
			t.Fatalf("InsertRegistration: %v", err)
		}
		ids = append(ids, r.ID)
	}

	oldest, err := s.OldestWaitlisted(ctx, ev.ID)
	if err != nil {
		t.Fatalf("OldestWaitlisted: %v", err)
	}
	if oldest.ID != ids[2] {
		t.Fatalf("expected the registration made first, got %s", oldest.ID)
	}
	stale := *oldest
	if ok, err := s.Promote(ctx, oldest, base); err != nil || !ok {
		t.Fatalf("Promote: ok=%v err=%v", ok, err)
	}
	if oldest.Status != models.RegConfirmed || oldest.PromotedAt == nil {
		t.Errorf("expected the promoted document back, got %+v", oldest)
	}
	if ok, err := s.Promote(ctx, &stale, base); err != nil || ok {
		t.Errorf("expected a second promote to lose, got ok=%v err=%v", ok, err)
	}
	n, _ := s.CountRegistrations(ctx, ev.ID, models.RegConfirmed)
	if n != 1 {
		t.Errorf("expected 1 confirmed, got %d", n)
	}
}

func TestOldestWaitlisted_Empty(t *testing.T) {
	s := newTestStore(t)
	r, err := s.OldestWaitlisted(context.Background(), "none")
	if err != nil || r != nil {
		t.Fatalf("expected nil, nil; got %v, %v", r, err)
	}
}

func TestUpsertAttendance_KeepsOriginalIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := &models.Attendance{
		ID: uuid.NewString(), SessionID: "s1", EventID: "e1", UserID: "u1",
		Present: false, MarkedAt: created, CreatedAt: created,
	}
	if err := s.UpsertAttendance(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := &models.Attendance{
		ID: uuid.NewString(), SessionID: "s1", EventID: "e1", UserID: "u1",
		Present: true, MarkedAt: created.Add(time.Hour), CreatedAt: created.Add(time.Hour),
	}
	if err := s.UpsertAttendance(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected id %s to be kept, got %s", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(created) {
		t.Errorf("expected createdAt %v, got %v", created, second.CreatedAt)
	}
	if !second.Present {
		t.Error("expected the latest mark to win")
	}

	recs, err := s.ListAttendanceBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("ListAttendanceBySession: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("expected a single record, got %d", len(recs))
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	boom := fmt.Errorf("boom")
	err := s.WithTx(ctx, func(tx *Store) error {
		if err := tx.UpsertAttendance(ctx, &models.Attendance{
			ID: uuid.NewString(), SessionID: "s1", EventID: "e1", UserID: "u1",
			MarkedAt: time.Now(), CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Fatalf("expected boom, got %v", err)
	}
	recs, _ := s.ListAttendanceBySession(ctx, "s1")
	if len(recs) != 0 {
		t.Errorf("expected rollback, found %d records", len(recs))
	}
}

func TestInsertCertificate_SecondIssueConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mk := func() *models.Certificate {
		return &models.Certificate{
			ID: uuid.NewString(), CertificateNumber: "CERT-" + uuid.NewString()[:8],
			VerificationCode: uuid.NewString()[:12], EventID: "e1", UserID: "u1",
			IssuedAt: time.Now().UTC(),
		}
	}
	c := mk()
	if err := s.InsertCertificate(ctx, c); err != nil {
		t.Fatalf("InsertCertificate: %v", err)
	}
	if err := s.InsertCertificate(ctx, mk()); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	got, err := s.TrackDownload(ctx, c.ID, time.Now())
	if err != nil {
		t.Fatalf("TrackDownload: %v", err)
	}
	got, err = s.TrackDownload(ctx, c.ID, time.Now())
	if err != nil {
		t.Fatalf("TrackDownload: %v", err)
	}
	if got.DownloadCount != 2 || got.LastDownloadedAt == nil {
		t.Errorf("expected 2 downloads with a timestamp, got %d %v", got.DownloadCount, got.LastDownloadedAt)
	}

	byCode, err := s.GetCertificateByCode(ctx, c.VerificationCode)
	if err != nil || byCode.ID != c.ID {
		t.Errorf("verify by code: %v", err)
	}
}

func TestInsertAnalyticsIfAbsent_ReturnsExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	first := &models.Analytics{
		ID: uuid.NewString(), Period: models.PeriodDaily, WindowStart: start, WindowEnd: end,
		Summary: models.PlatformSummary{NewUsers: 3}, GeneratedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour),
	}
	stored, created, err := s.InsertAnalyticsIfAbsent(ctx, first)
	if err != nil || !created {
		t.Fatalf("first insert: created=%v err=%v", created, err)
	}

	second := *first
	second.ID = uuid.NewString()
	second.Summary.NewUsers = 99
	again, created, err := s.InsertAnalyticsIfAbsent(ctx, &second)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if created {
		t.Error("expected no second record")
	}
	if again.ID != stored.ID || again.Summary.NewUsers != 3 {
		t.Errorf("expected the original snapshot back, got %+v", again)
	}
}

func TestNotifications_VisibilityAndExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	add := func(n models.Notification) {
		n.ID = uuid.NewString()
		n.Type = models.NotifyGeneral
		n.CreatedAt = now
		if n.ExpiresAt.IsZero() {
			n.ExpiresAt = now.Add(time.Hour)
		}
		if err := s.InsertNotification(ctx, &n); err != nil {
			t.Fatalf("InsertNotification: %v", err)
		}
	}
	add(models.Notification{RecipientID: "u1"})
	add(models.Notification{RecipientID: "u2"})
	add(models.Notification{RecipientRole: models.RoleStudent})
	add(models.Notification{RecipientRole: models.RoleAdmin})
	add(models.Notification{Broadcast: true})
	add(models.Notification{RecipientID: "u1", ExpiresAt: now.Add(-time.Minute)})

	list, total, unread, err := s.ListNotifications(ctx, "u1", models.RoleStudent, false, Page{})
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if total != 3 || len(list) != 3 || unread != 3 {
		t.Errorf("expected 3 visible unread, got total=%d len=%d unread=%d", total, len(list), unread)
	}

	if n, _ := s.MarkAllNotificationsRead(ctx, "u1", now); n != 2 {
		t.Errorf("expected 2 direct notifications marked (one expired), got %d", n)
	}
	_, _, unread, _ = s.ListNotifications(ctx, "u1", models.RoleStudent, false, Page{})
	if unread != 2 {
		t.Errorf("expected shared notifications to stay unread, got %d", unread)
	}

	removed, err := s.DeleteExpiredNotifications(ctx, now)
	if err != nil || removed != 1 {
		t.Errorf("expected 1 expired removal, got %d %v", removed, err)
	}
}

func TestDeleteEvent_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	coord := seedUser(t, s, models.RoleFaculty)
	student := seedUser(t, s, models.RoleStudent)
	ev := seedEvent(t, s, coord.ID)

	if err := s.InsertRegistration(ctx, &models.Registration{
		ID: uuid.NewString(), EventID: ev.ID, UserID: student.ID,
		Status: models.RegConfirmed, RegisteredAt: time.Now(),
	}); err != nil {
		t.Fatalf("InsertRegistration: %v", err)
	}
	if err := s.DeleteEvent(ctx, ev.ID); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	regs, _ := s.ListRegistrationsByUser(ctx, student.ID)
	if len(regs) != 0 {
		t.Errorf("expected registrations removed, got %d", len(regs))
	}
	if err := s.DeleteEvent(ctx, ev.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestCountWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, models.RoleStudent)
	seedUser(t, s, models.RoleStudent)

	all, err := s.CountWindow(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("CountWindow: %v", err)
	}
	if all.Users != 2 {
		t.Errorf("expected 2 users, got %d", all.Users)
	}
	past, err := s.CountWindow(ctx, time.Now().Add(-48*time.Hour), time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("CountWindow: %v", err)
	}
	if past.Users != 0 {
		t.Errorf("expected no users in a past window, got %d", past.Users)
	}
}
