package handlers

import (
	"net/http"
	"testing"

	"github.com/campushub/eventhub/internal/models"
)

type testNotificationPage struct {
	Items  []models.Notification `json:"items"`
	Total  int                   `json:"total"`
	Unread int                   `json:"unread"`
}

// ---- Notification handler tests ----

func TestNotifications_ReadAndDelete(t *testing.T) {
	srv := newTestServer(t)
	faculty := seedUser(t, srv, models.RoleFaculty, "fac@campus.test")
	student := seedUser(t, srv, models.RoleStudent, "stu@campus.test")
	other := seedUser(t, srv, models.RoleStudent, "other@campus.test")
	for range 2 {
		register(t, srv, seedEvent(t, srv, faculty, nil), student, http.StatusCreated)
	}

	var page testNotificationPage
	expect(t, call(t, srv.ListNotifications, http.MethodGet, "/api/notifications", nil, student), http.StatusOK, &page)
	if page.Total != 2 || page.Unread != 2 {
		t.Fatalf("total=%d unread=%d", page.Total, page.Unread)
	}
	first := page.Items[0]
	if first.RecipientID != student.ID || first.Type != models.NotifyRegistrationCreated {
		t.Errorf("notification: %+v", first)
	}

	expect(t, call(t, srv.MarkNotificationRead, http.MethodPatch, "/api/notifications/x/read", nil, other, "id", first.ID),
		http.StatusNotFound, nil)
	expect(t, call(t, srv.MarkNotificationRead, http.MethodPatch, "/api/notifications/x/read", nil, student, "id", first.ID),
		http.StatusOK, nil)

	expect(t, call(t, srv.ListNotifications, http.MethodGet, "/api/notifications?unread=true", nil, student), http.StatusOK, &page)
	if page.Total != 1 || page.Unread != 1 {
		t.Errorf("after read: total=%d unread=%d", page.Total, page.Unread)
	}

	var updated map[string]int64
	expect(t, call(t, srv.MarkAllNotificationsRead, http.MethodPatch, "/api/notifications/read-all", nil, student),
		http.StatusOK, &updated)
	if updated["updated"] != 1 {
		t.Errorf("read-all updated %d", updated["updated"])
	}

	expect(t, call(t, srv.DeleteNotification, http.MethodDelete, "/api/notifications/x", nil, student, "id", first.ID),
		http.StatusOK, nil)
	expect(t, call(t, srv.ListNotifications, http.MethodGet, "/api/notifications", nil, student), http.StatusOK, &page)
	if page.Total != 1 || page.Unread != 0 {
		t.Errorf("after delete: total=%d unread=%d", page.Total, page.Unread)
	}

	expect(t, call(t, srv.ListNotifications, http.MethodGet, "/api/notifications?unread=maybe", nil, student),
		http.StatusBadRequest, nil)
}
