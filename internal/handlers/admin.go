package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/campushub/eventhub/internal/aggregate"
	"github.com/campushub/eventhub/internal/apperr"
	"github.com/campushub/eventhub/internal/db"
	"github.com/campushub/eventhub/internal/models"
	"github.com/campushub/eventhub/internal/policy"
)

// requireMaintainer gates every /api/admin handler on top of the
// route-level role check.
func (s *Server) requireMaintainer(w http.ResponseWriter, r *http.Request) bool {
	if err := authorize(caller(r), policy.MaintainDatabase, policy.Ownership{}); err != nil {
		s.fail(w, r, err)
		return false
	}
	return true
}

// DBHealth handles GET /api/admin/db/health
func (s *Server) DBHealth(w http.ResponseWriter, r *http.Request) {
	if !s.requireMaintainer(w, r) {
		return
	}
	h, err := db.Status(r.Context(), s.Store.DB())
	if err != nil {
		s.fail(w, r, apperr.Internal("database health check failed", err))
		return
	}
	ok(w, "database health", map[string]any{
		"database":  h,
		"scheduler": s.Scheduler.Running(),
		"wsClients": s.Hub.Clients(),
	})
}

// EnsureIndexes handles POST /api/admin/db/indexes. Indexes live in the
// migrations, so this applies whatever is pending.
func (s *Server) EnsureIndexes(w http.ResponseWriter, r *http.Request) {
	if !s.requireMaintainer(w, r) {
		return
	}
	if err := db.Migrate(r.Context(), s.Store.DB()); err != nil {
		s.fail(w, r, apperr.Internal("migration failed", err))
		return
	}
	h, err := db.Status(r.Context(), s.Store.DB())
	if err != nil {
		s.fail(w, r, apperr.Internal("database health check failed", err))
		return
	}
	ok(w, "indexes are up to date", h)
}

// GenerateAnalytics handles POST /api/admin/db/analytics
//
// Daily, weekly and monthly default to the last complete window; custom
// needs both dates. An existing snapshot for the same window is returned
// unchanged with 200, a new one with 201.
func (s *Server) GenerateAnalytics(w http.ResponseWriter, r *http.Request) {
	if !s.requireMaintainer(w, r) {
		return
	}
	var req models.GenerateAnalyticsRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	var (
		snap  *models.Analytics
		isNew bool
		err   error
	)
	switch {
	case req.StartDate != nil && req.EndDate != nil:
		snap, isNew, err = s.Engine.GeneratePeriodSummary(r.Context(), req.Period, req.StartDate.UTC(), req.EndDate.UTC())
	case req.Period == models.PeriodCustom:
		err = apperr.Validation("custom period needs startDate and endDate",
			apperr.FieldError{Field: "startDate", Message: "is required for a custom period"})
	default:
		snap, isNew, err = s.Engine.GenerateLastPeriod(r.Context(), req.Period)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if isNew {
		created(w, "analytics generated", snap)
		return
	}
	ok(w, "analytics already generated for this window", snap)
}

// ListAnalytics handles GET /api/admin/db/analytics?period=&limit=
func (s *Server) ListAnalytics(w http.ResponseWriter, r *http.Request) {
	if !s.requireMaintainer(w, r) {
		return
	}
	period := models.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = models.PeriodDaily
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}
	list, err := s.Store.ListAnalytics(r.Context(), period, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "analytics", list)
}

// Cleanup handles POST /api/admin/db/cleanup
func (s *Server) Cleanup(w http.ResponseWriter, r *http.Request) {
	if !s.requireMaintainer(w, r) {
		return
	}
	res, err := s.Engine.Cleanup(r.Context(), s.Now())
	if err != nil {
		s.fail(w, r, apperr.Internal("cleanup failed", err))
		return
	}
	ok(w, "cleanup finished", res)
}

// optimizeResult reports POST /api/admin/db/optimize.
type optimizeResult struct {
	Denormalized  aggregate.BatchResult `json:"denormalized"`
	EventStats    aggregate.BatchResult `json:"eventStats"`
	UserAnalytics aggregate.BatchResult `json:"userAnalytics"`
	Took          string                `json:"took"`
}

// Optimize handles POST /api/admin/db/optimize. It refreshes every
// denormalized snapshot, recomputes all derived statistics and lets
// SQLite refresh its query planner statistics.
func (s *Server) Optimize(w http.ResponseWriter, r *http.Request) {
	if !s.requireMaintainer(w, r) {
		return
	}
	start := time.Now()
	ctx := r.Context()
	var res optimizeResult
	var err error
	if res.Denormalized, err = s.Engine.RefreshDenormalized(ctx); err != nil {
		s.fail(w, r, err)
		return
	}
	if res.EventStats, err = s.Engine.RecomputeAllEventStats(ctx); err != nil {
		s.fail(w, r, err)
		return
	}
	if res.UserAnalytics, err = s.Engine.RecomputeAllUserAnalytics(ctx); err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.Store.DB().ExecContext(ctx, `PRAGMA optimize`); err != nil {
		s.Log.Warn("pragma optimize failed", "err", err)
	}
	res.Took = time.Since(start).Round(time.Millisecond).String()
	s.Log.Info("optimize finished", "took", res.Took,
		"denormalized_failed", res.Denormalized.Failed, "stats_failed", res.EventStats.Failed)
	ok(w, "optimization finished", res)
}

// TaskStatus handles GET /api/admin/tasks
func (s *Server) TaskStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireMaintainer(w, r) {
		return
	}
	ok(w, "scheduled tasks", s.Scheduler.Status())
}

// StartTasks handles POST /api/admin/tasks/start
func (s *Server) StartTasks(w http.ResponseWriter, r *http.Request) {
	if !s.requireMaintainer(w, r) {
		return
	}
	s.Scheduler.Start()
	ok(w, "scheduler started", s.Scheduler.Status())
}

// StopTasks handles POST /api/admin/tasks/stop. Running tasks are allowed
// to finish for a short while before the call returns.
func (s *Server) StopTasks(w http.ResponseWriter, r *http.Request) {
	if !s.requireMaintainer(w, r) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := s.Scheduler.Stop(ctx); err != nil {
		s.Log.Warn("scheduler stop did not finish in time", "err", err)
	}
	ok(w, "scheduler stopped", s.Scheduler.Status())
}

// RunTask handles POST /api/admin/tasks/{name}/run and runs the task
// synchronously.
func (s *Server) RunTask(w http.ResponseWriter, r *http.Request) {
	if !s.requireMaintainer(w, r) {
		return
	}
	name := r.PathValue("name")
	res, err := s.Scheduler.RunNow(r.Context(), name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "task "+name+" finished", res)
}
