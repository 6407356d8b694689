package aggregate

import (
	"testing"
	"time"

	"github.com/campushub/eventhub/internal/models"
)

func intPtr(n int) *int { return &n }

func marks(present ...bool) []models.SessionMark {
	out := make([]models.SessionMark, len(present))
	for i, p := range present {
		out[i] = models.SessionMark{SessionID: string(rune('a' + i)), Present: p}
	}
	return out
}

func TestApplyAttendance_ZeroSessions(t *testing.T) {
	reg := &models.Registration{}
	ApplyAttendance(reg, nil)
	if reg.AttendancePercentage != 0 || reg.TotalSessions != 0 {
		t.Errorf("expected 0%% of 0, got %v of %d", reg.AttendancePercentage, reg.TotalSessions)
	}
	if reg.Attendance == nil {
		t.Error("expected an empty attendance list, not nil")
	}
}

func TestApplyAttendance_EligibilityBoundaryInclusive(t *testing.T) {
	ev := &models.Event{Certificate: models.CertificatePolicy{Enabled: true, MinAttendance: 80}}
	reg := &models.Registration{Attendance: marks(true, true, true, true, false)}

	ApplyAttendance(reg, ev)

	if reg.AttendedSessions != 4 || reg.TotalSessions != 5 {
		t.Fatalf("expected 4/5, got %d/%d", reg.AttendedSessions, reg.TotalSessions)
	}
	if reg.AttendancePercentage != 80 {
		t.Errorf("expected 80, got %v", reg.AttendancePercentage)
	}
	if !reg.Certificate.Eligible {
		t.Error("expected eligible at exactly the threshold")
	}

	MarkSession(reg, "a", false, time.Now())
	ApplyAttendance(reg, ev)
	if reg.AttendancePercentage != 60 || reg.Certificate.Eligible {
		t.Errorf("expected 60 and not eligible after a mark flips, got %v %v",
			reg.AttendancePercentage, reg.Certificate.Eligible)
	}
}

func TestApplyAttendance_CertificatesDisabledLeavesEligibility(t *testing.T) {
	reg := &models.Registration{Attendance: marks(false), Certificate: models.RegistrationCertificate{Eligible: true}}
	ApplyAttendance(reg, &models.Event{})
	if !reg.Certificate.Eligible {
		t.Error("eligibility should only be managed when certificates are enabled")
	}
}

func TestApplyAttendance_Rounds(t *testing.T) {
	reg := &models.Registration{Attendance: marks(true, true, false)}
	ApplyAttendance(reg, nil)
	if reg.AttendancePercentage != 66.67 {
		t.Errorf("expected 66.67, got %v", reg.AttendancePercentage)
	}
}

func TestMarkSession_ReplacesEarlierMark(t *testing.T) {
	reg := &models.Registration{}
	MarkSession(reg, "s1", false, time.Now())
	MarkSession(reg, "s2", true, time.Now())
	MarkSession(reg, "s1", true, time.Now())
	if len(reg.Attendance) != 2 {
		t.Fatalf("expected 2 marks, got %d", len(reg.Attendance))
	}
	if !reg.Attendance[0].Present {
		t.Error("expected s1 to be updated in place")
	}
}

func TestSummarizeSession_SevenOfTen(t *testing.T) {
	recs := make([]models.Attendance, 10)
	for i := range recs {
		recs[i].Present = i < 7
	}
	got := SummarizeSession(recs)
	want := models.SessionAttendance{Total: 10, Present: 7, Absent: 3, Percentage: 70}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestComputeEventStats(t *testing.T) {
	ev := &models.Event{Registration: models.RegistrationPolicy{MaxParticipants: intPtr(4)}}
	regs := []models.Registration{
		{Status: models.RegConfirmed, Department: "CSE", AttendedSessions: 5, TotalSessions: 5, AttendancePercentage: 100},
		{Status: models.RegConfirmed, Department: "CSE", AttendedSessions: 2, TotalSessions: 5, AttendancePercentage: 40},
		{Status: models.RegConfirmed, Department: "ECE", AttendedSessions: 1, TotalSessions: 5, AttendancePercentage: 20},
		{Status: models.RegWaitlisted, Department: ""},
		{Status: models.RegCancelled, Department: "CSE", AttendancePercentage: 100},
	}
	sessions := []models.Session{
		{ID: "s2", Sequence: 2, Attendance: models.SessionAttendance{Percentage: 50}},
		{ID: "s1", Sequence: 1, Attendance: models.SessionAttendance{Percentage: 75}},
	}
	feedback := []models.Feedback{{OverallRating: 4}, {OverallRating: 5}}

	stats, perf := ComputeEventStats(ev, regs, sessions, feedback)

	if stats.TotalRegistrations != 4 || stats.ConfirmedRegistrations != 3 || stats.Waitlisted != 1 || stats.Cancelled != 1 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.TotalAttended != 3 {
		t.Errorf("expected 3 attended, got %d", stats.TotalAttended)
	}
	if stats.AverageAttendance != 40 {
		t.Errorf("expected average 40, got %v", stats.AverageAttendance)
	}
	if stats.CompletionRate != 25 {
		t.Errorf("expected completion 25, got %v", stats.CompletionRate)
	}
	if len(stats.DepartmentBreakdown) != 3 || stats.DepartmentBreakdown[0].Department != "CSE" ||
		stats.DepartmentBreakdown[2].Department != unspecifiedDepartment {
		t.Fatalf("unexpected breakdown: %+v", stats.DepartmentBreakdown)
	}
	if cse := stats.DepartmentBreakdown[0]; cse.Registered != 2 || cse.AverageAttendance != 70 {
		t.Errorf("unexpected CSE row: %+v", cse)
	}
	if stats.SessionAttendance[0].SessionID != "s1" || stats.SessionAttendance[0].Rate != 75 {
		t.Errorf("sessions should be ordered by sequence: %+v", stats.SessionAttendance)
	}

	if perf.RegistrationRate != 75 {
		t.Errorf("expected registration rate 75, got %v", perf.RegistrationRate)
	}
	if perf.DropoutRate != 50 {
		t.Errorf("expected dropout 50, got %v", perf.DropoutRate)
	}
	if perf.AverageRating != 4.5 {
		t.Errorf("expected rating 4.5, got %v", perf.AverageRating)
	}
	// 0.7*40 + 0.3*90
	if perf.EngagementScore != 55 {
		t.Errorf("expected engagement 55, got %v", perf.EngagementScore)
	}
}

func TestComputeEventStats_NoFeedbackOrCapacity(t *testing.T) {
	regs := []models.Registration{{Status: models.RegConfirmed, AttendedSessions: 1, TotalSessions: 2, AttendancePercentage: 50}}
	stats, perf := ComputeEventStats(&models.Event{}, regs, nil, nil)
	if perf.EngagementScore != stats.AverageAttendance {
		t.Errorf("without feedback engagement should equal average attendance, got %v", perf.EngagementScore)
	}
	if perf.RegistrationRate != 0 {
		t.Errorf("unlimited capacity should give 0 registration rate, got %v", perf.RegistrationRate)
	}
	if stats.SessionAttendance == nil || stats.DepartmentBreakdown == nil {
		t.Error("lists should be empty, not nil")
	}
}

func TestComputeUserAnalytics(t *testing.T) {
	u := &models.User{Name: "A", Email: "a@x", Role: models.RoleStudent,
		Student: &models.StudentProfile{Department: "CSE", Year: "1"}}
	regs := []models.Registration{
		{Status: models.RegConfirmed, AttendedSessions: 2, AttendancePercentage: 100},
		{Status: models.RegConfirmed, AttendancePercentage: 0},
		{Status: models.RegCancelled, AttendedSessions: 1, AttendancePercentage: 50},
	}
	got := ComputeUserAnalytics(u, regs, 1)
	if got.TotalRegistered != 2 || got.TotalAttended != 1 || got.AverageAttendance != 50 || got.CertificatesEarned != 1 {
		t.Errorf("unexpected analytics: %+v", got)
	}
	// name, email, department, year filled of 8 fields
	if got.ProfileCompleteness != 50 {
		t.Errorf("expected completeness 50, got %v", got.ProfileCompleteness)
	}
}

func TestPeriodWindow(t *testing.T) {
	// Wednesday.
	ref := time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)

	start, end, _ := PeriodWindow(models.PeriodDaily, ref)
	if !start.Equal(time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("daily: %v - %v", start, end)
	}
	start, end, _ = PeriodWindow(models.PeriodWeekly, ref)
	if !start.Equal(time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("weekly: %v - %v", start, end)
	}
	start, end, _ = PeriodWindow(models.PeriodMonthly, ref)
	if !start.Equal(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("monthly: %v - %v", start, end)
	}
	if _, _, ok := PeriodWindow(models.PeriodCustom, ref); ok {
		t.Error("custom has no implicit window")
	}
}
