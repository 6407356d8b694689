package aggregate

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/campushub/eventhub/internal/models"
)

const (
	// completionThreshold is the attendance percentage at which a
	// registration counts as completed.
	completionThreshold = 80
	// dropoutThreshold is the attendance percentage below which a
	// registration counts as dropped out.
	dropoutThreshold = 30

	unspecifiedDepartment = "unspecified"
)

// Round2 rounds to two decimals.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Percent returns part/whole*100 rounded to two decimals, or 0 when whole
// is zero.
func Percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return Round2(float64(part) / float64(whole) * 100)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return Round2(sum / float64(len(xs)))
}

// MarkSession records present for sessionID in the registration's embedded
// attendance list, replacing an earlier mark for the same session.
func MarkSession(reg *models.Registration, sessionID string, present bool, at time.Time) {
	for i := range reg.Attendance {
		if reg.Attendance[i].SessionID == sessionID {
			reg.Attendance[i].Present = present
			reg.Attendance[i].MarkedAt = at
			return
		}
	}
	reg.Attendance = append(reg.Attendance, models.SessionMark{SessionID: sessionID, Present: present, MarkedAt: at})
}

// ApplyAttendance recomputes the derived attendance fields of reg from its
// embedded list. When ev has certificates enabled, eligibility follows the
// new percentage; the threshold is inclusive.
func ApplyAttendance(reg *models.Registration, ev *models.Event) {
	if reg.Attendance == nil {
		reg.Attendance = []models.SessionMark{}
	}
	attended := 0
	for _, m := range reg.Attendance {
		if m.Present {
			attended++
		}
	}
	reg.AttendedSessions = attended
	reg.TotalSessions = len(reg.Attendance)
	reg.AttendancePercentage = Percent(attended, reg.TotalSessions)

	if ev != nil && ev.Certificate.Enabled {
		reg.Certificate.Eligible = reg.AttendancePercentage >= ev.Certificate.MinAttendance
	}
}

// SummarizeSession computes a session's attendance block from all of its
// attendance records.
func SummarizeSession(records []models.Attendance) models.SessionAttendance {
	present := 0
	for _, r := range records {
		if r.Present {
			present++
		}
	}
	return models.SessionAttendance{
		Total:      len(records),
		Present:    present,
		Absent:     len(records) - present,
		Percentage: Percent(present, len(records)),
	}
}

// ComputeEventStats derives an event's stats and performance blocks. Only
// non-cancelled registrations contribute to attendance figures. The result
// depends only on its inputs, so recomputing unchanged data yields an
// identical block.
func ComputeEventStats(ev *models.Event, regs []models.Registration, sessions []models.Session, feedback []models.Feedback) (models.EventStats, models.EventPerformance) {
	stats := models.EventStats{
		DepartmentBreakdown: []models.DepartmentStats{},
		SessionAttendance:   []models.SessionRate{},
	}

	type deptAcc struct {
		registered, attended int
		pcts                 []float64
	}
	depts := map[string]*deptAcc{}

	var pcts []float64
	completed, dropped := 0, 0
	for _, r := range regs {
		switch r.Status {
		case models.RegCancelled:
			stats.Cancelled++
			continue
		case models.RegConfirmed:
			stats.ConfirmedRegistrations++
		case models.RegWaitlisted:
			stats.Waitlisted++
		}
		stats.TotalRegistrations++
		pcts = append(pcts, r.AttendancePercentage)
		if r.AttendedSessions > 0 {
			stats.TotalAttended++
		}
		if r.AttendancePercentage >= completionThreshold {
			completed++
		}
		if r.AttendancePercentage < dropoutThreshold {
			dropped++
		}

		name := strings.TrimSpace(r.Department)
		if name == "" {
			name = unspecifiedDepartment
		}
		d := depts[name]
		if d == nil {
			d = &deptAcc{}
			depts[name] = d
		}
		d.registered++
		if r.AttendedSessions > 0 {
			d.attended++
		}
		d.pcts = append(d.pcts, r.AttendancePercentage)
	}

	stats.AverageAttendance = mean(pcts)
	stats.CompletionRate = Percent(completed, stats.TotalRegistrations)

	names := make([]string, 0, len(depts))
	for name := range depts {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		d := depts[name]
		stats.DepartmentBreakdown = append(stats.DepartmentBreakdown, models.DepartmentStats{
			Department:        name,
			Registered:        d.registered,
			Attended:          d.attended,
			AverageAttendance: mean(d.pcts),
		})
	}

	ordered := slices.Clone(sessions)
	slices.SortStableFunc(ordered, func(a, b models.Session) int { return a.Sequence - b.Sequence })
	for _, s := range ordered {
		stats.SessionAttendance = append(stats.SessionAttendance, models.SessionRate{
			SessionID: s.ID,
			Sequence:  s.Sequence,
			Title:     s.Title,
			Rate:      s.Attendance.Percentage,
		})
	}

	perf := models.EventPerformance{
		DropoutRate:   Percent(dropped, stats.TotalRegistrations),
		FeedbackCount: len(feedback),
	}
	if capacity := ev.Registration.MaxParticipants; capacity != nil && *capacity > 0 {
		perf.RegistrationRate = Percent(stats.ConfirmedRegistrations, *capacity)
	}
	if len(feedback) > 0 {
		ratings := make([]float64, len(feedback))
		for i, f := range feedback {
			ratings[i] = float64(f.OverallRating)
		}
		perf.AverageRating = mean(ratings)
		perf.EngagementScore = Round2(0.7*stats.AverageAttendance + 0.3*(perf.AverageRating/5*100))
	} else {
		perf.EngagementScore = stats.AverageAttendance
	}
	return stats, perf
}

// ComputeUserAnalytics derives a user's cached analytics from their
// registrations and the number of certificates issued to them.
func ComputeUserAnalytics(u *models.User, regs []models.Registration, certificates int) models.UserAnalytics {
	out := models.UserAnalytics{
		CertificatesEarned:  certificates,
		ProfileCompleteness: ProfileCompleteness(u),
	}
	var pcts []float64
	for _, r := range regs {
		if r.Status == models.RegCancelled {
			continue
		}
		out.TotalRegistered++
		if r.AttendedSessions > 0 {
			out.TotalAttended++
		}
		pcts = append(pcts, r.AttendancePercentage)
	}
	out.AverageAttendance = mean(pcts)
	return out
}

// ProfileCompleteness is the percentage of profile fields that are filled
// in, counting the common fields and those of the user's role block.
func ProfileCompleteness(u *models.User) float64 {
	fields := []bool{u.Name != "", u.Email != "", u.Phone != ""}
	switch u.Role {
	case models.RoleStudent:
		p := models.StudentProfile{}
		if u.Student != nil {
			p = *u.Student
		}
		fields = append(fields, p.Department != "", p.Program != "", p.Year != "", p.Section != "", p.RollNumber != "")
	case models.RoleFaculty:
		p := models.FacultyProfile{}
		if u.Faculty != nil {
			p = *u.Faculty
		}
		fields = append(fields, p.Department != "", p.Designation != "")
	case models.RoleTrainer:
		p := models.TrainerProfile{}
		if u.Trainer != nil {
			p = *u.Trainer
		}
		fields = append(fields, p.Organization != "", len(p.Expertise) > 0)
	}
	filled := 0
	for _, f := range fields {
		if f {
			filled++
		}
	}
	return Percent(filled, len(fields))
}

// PeriodWindow returns the last complete window of the period before ref:
// yesterday for daily, the previous Monday-to-Monday week for weekly and
// the previous calendar month for monthly. Windows are in UTC.
func PeriodWindow(period models.Period, ref time.Time) (start, end time.Time, ok bool) {
	ref = ref.UTC()
	today := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	switch period {
	case models.PeriodDaily:
		return today.AddDate(0, 0, -1), today, true
	case models.PeriodWeekly:
		// Days since Monday.
		offset := (int(today.Weekday()) + 6) % 7
		end = today.AddDate(0, 0, -offset)
		return end.AddDate(0, 0, -7), end, true
	case models.PeriodMonthly:
		end = time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
		return end.AddDate(0, -1, 0), end, true
	}
	return time.Time{}, time.Time{}, false
}
