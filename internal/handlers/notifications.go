package handlers

import (
	"net/http"
)

// notificationPage is a page of notifications plus the caller's unread
// count, which the client shows as a badge.
type notificationPage struct {
	Items  any `json:"items"`
	Total  int `json:"total"`
	Unread int `json:"unread"`
	Page   int `json:"page"`
	Limit  int `json:"limit"`
	Pages  int `json:"pages"`
}

// ListNotifications handles GET /api/notifications?unread=true
func (s *Server) ListNotifications(w http.ResponseWriter, r *http.Request) {
	unreadOnly, err := queryBool(r, "unread")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pg, page, limit := pageFrom(r)
	p := caller(r)
	list, total, unread, err := s.Store.ListNotifications(r.Context(), p.UserID, p.Role,
		unreadOnly != nil && *unreadOnly, pg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pp := paged(list, total, page, limit)
	ok(w, "notifications", notificationPage{
		Items: pp.Items, Total: pp.Total, Unread: unread, Page: pp.Page, Limit: pp.Limit, Pages: pp.Pages,
	})
}

// MarkNotificationRead handles PATCH /api/notifications/{id}/read. Only
// notifications addressed to the caller directly carry read state; role
// and broadcast notifications answer 404.
func (s *Server) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.MarkNotificationRead(r.Context(), r.PathValue("id"), caller(r).UserID, s.Now()); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "notification marked as read", nil)
}

// MarkAllNotificationsRead handles PATCH /api/notifications/read-all
func (s *Server) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.Store.MarkAllNotificationsRead(r.Context(), caller(r).UserID, s.Now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "notifications marked as read", map[string]int64{"updated": n})
}

// DeleteNotification handles DELETE /api/notifications/{id}
func (s *Server) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.DeleteNotification(r.Context(), r.PathValue("id"), caller(r).UserID); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "notification deleted", nil)
}
