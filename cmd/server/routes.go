package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/campushub/eventhub/internal/config"
	"github.com/campushub/eventhub/internal/handlers"
	"github.com/campushub/eventhub/internal/middleware"
	"github.com/campushub/eventhub/internal/models"
)

// routes builds the HTTP router. Role checks beyond "logged in" happen in
// the handlers, except for /api/admin which is gated here as well.
func routes(srv *handlers.Server, cfg config.Config, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(log))
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(cfg.ClientOrigin))

	// Public routes, no token required.
	r.Get("/health", srv.Health)
	r.Get("/ws", srv.Hub.ServeWS)
	r.Post("/api/auth/register", srv.Register)
	r.Post("/api/auth/login", srv.Login)
	r.Post("/api/auth/forgot-password", srv.ForgotPassword)
	r.Get("/api/certificates/verify/{code}", srv.VerifyCertificate)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(srv.Issuer))

		r.Route("/api/auth", func(r chi.Router) {
			r.Get("/me", srv.Me)
			r.Put("/profile", srv.UpdateProfile)
			r.Put("/change-password", srv.ChangePassword)
			r.Post("/logout", srv.Logout)
		})

		r.Get("/api/dashboard", srv.Dashboard)

		r.Route("/api/events", func(r chi.Router) {
			r.Get("/", srv.ListEvents)
			r.Post("/", srv.CreateEvent)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", srv.GetEvent)
				r.Put("/", srv.UpdateEvent)
				r.Delete("/", srv.DeleteEvent)
				r.Patch("/approve", srv.ApproveEvent)
				r.Patch("/reject", srv.RejectEvent)
				r.Patch("/status", srv.ChangeEventStatus)
				r.Patch("/toggle-registration", srv.ToggleRegistration)
				r.Get("/analytics", srv.EventAnalytics)

				r.Get("/sessions", srv.ListSessions)
				r.Post("/sessions", srv.CreateSession)

				r.Post("/register", srv.RegisterForEvent)
				r.Get("/registrations", srv.EventRegistrations)
				r.Get("/registrations/export", srv.ExportRegistrations)

				r.Get("/attendance", srv.EventAttendance)
				r.Post("/certificates/bulk", srv.BulkGenerateCertificates)

				r.Post("/feedback", srv.SubmitFeedback)
				r.Get("/feedback", srv.EventFeedback)
				r.Get("/feedback/check", srv.CheckFeedback)
			})
		})

		r.Route("/api/sessions/{id}", func(r chi.Router) {
			r.Get("/", srv.GetSession)
			r.Put("/", srv.UpdateSession)
			r.Delete("/", srv.DeleteSession)
			r.Patch("/start", srv.StartSession)
			r.Patch("/end", srv.EndSession)
			r.Post("/materials", srv.AddMaterial)
			r.Get("/analytics", srv.SessionAnalytics)
			r.Post("/attendance", srv.MarkAttendance)
			r.Get("/attendance", srv.SessionAttendance)
		})

		r.Get("/api/registrations/my", srv.MyRegistrations)
		r.Patch("/api/registrations/{id}/cancel", srv.CancelRegistration)

		r.Get("/api/attendance/analytics", srv.AttendanceAnalytics)
		r.Get("/api/attendance/search", srv.SearchAttendance)

		r.Post("/api/certificates/generate", srv.GenerateCertificate)
		r.Get("/api/certificates/my", srv.MyCertificates)
		r.Post("/api/certificates/{id}/download", srv.DownloadCertificate)

		r.Route("/api/notifications", func(r chi.Router) {
			r.Get("/", srv.ListNotifications)
			r.Patch("/read-all", srv.MarkAllNotificationsRead)
			r.Patch("/{id}/read", srv.MarkNotificationRead)
			r.Delete("/{id}", srv.DeleteNotification)
		})

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/", srv.ListUsers)
			r.Post("/", srv.CreateUser)
			// Static segments before {id}.
			r.Get("/export", srv.ExportUsers)
			r.Patch("/bulk", srv.BulkUpdateUsers)
			r.Get("/{id}", srv.GetUser)
			r.Put("/{id}", srv.UpdateUser)
			r.Delete("/{id}", srv.DeleteUser)
			r.Get("/{id}/attendance", srv.UserAttendance)
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleAdmin))
			r.Get("/db/health", srv.DBHealth)
			r.Post("/db/indexes", srv.EnsureIndexes)
			r.Get("/db/analytics", srv.ListAnalytics)
			r.Post("/db/analytics", srv.GenerateAnalytics)
			r.Post("/db/cleanup", srv.Cleanup)
			r.Post("/db/optimize", srv.Optimize)
			r.Get("/tasks", srv.TaskStatus)
			r.Post("/tasks/start", srv.StartTasks)
			r.Post("/tasks/stop", srv.StopTasks)
			r.Post("/tasks/{name}/run", srv.RunTask)
			r.Post("/seed", srv.SeedDemo)
		})
	})
	return r
}
