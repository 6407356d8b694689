package handlers

import (
	"encoding/csv"
	"net/http"
	"testing"

	"github.com/campushub/eventhub/internal/models"
)

// ---- User handler tests ----

func TestListUsers_Filters(t *testing.T) {
	srv := newTestServer(t)
	admin := seedUser(t, srv, models.RoleAdmin, "admin@campus.test")
	faculty := seedUser(t, srv, models.RoleFaculty, "fac@campus.test")
	student := seedUser(t, srv, models.RoleStudent, "stu@campus.test")
	seedUser(t, srv, models.RoleStudent, "stu2@campus.test")

	var page models.Paged[models.User]
	expect(t, call(t, srv.ListUsers, http.MethodGet, "/api/users?role=student", nil, admin), http.StatusOK, &page)
	if page.Total != 2 {
		t.Errorf("students: got %d, want 2", page.Total)
	}
	expect(t, call(t, srv.ListUsers, http.MethodGet, "/api/users?limit=1&page=2", nil, faculty), http.StatusOK, &page)
	if page.Total != 4 || len(page.Items) != 1 || page.Pages != 4 {
		t.Errorf("paging: total=%d items=%d pages=%d", page.Total, len(page.Items), page.Pages)
	}

	expect(t, call(t, srv.ListUsers, http.MethodGet, "/api/users?role=wizard", nil, admin), http.StatusBadRequest, nil)
	expect(t, call(t, srv.ListUsers, http.MethodGet, "/api/users", nil, student), http.StatusForbidden, nil)
}

func TestGetUser_Visibility(t *testing.T) {
	srv := newTestServer(t)
	faculty := seedUser(t, srv, models.RoleFaculty, "fac@campus.test")
	student := seedUser(t, srv, models.RoleStudent, "stu@campus.test")
	other := seedUser(t, srv, models.RoleStudent, "other@campus.test")

	expect(t, call(t, srv.GetUser, http.MethodGet, "/api/users/x", nil, student, "id", student.ID), http.StatusOK, nil)
	expect(t, call(t, srv.GetUser, http.MethodGet, "/api/users/x", nil, student, "id", other.ID), http.StatusForbidden, nil)
	expect(t, call(t, srv.GetUser, http.MethodGet, "/api/users/x", nil, faculty, "id", other.ID), http.StatusOK, nil)
}

func TestCreateAndUpdateUser(t *testing.T) {
	srv := newTestServer(t)
	admin := seedUser(t, srv, models.RoleAdmin, "admin@campus.test")
	student := seedUser(t, srv, models.RoleStudent, "stu@campus.test")

	var created models.User
	expect(t, call(t, srv.CreateUser, http.MethodPost, "/api/users", models.CreateUserRequest{
		Email: "new.admin@campus.test", Password: "password123", Name: "New Admin",
		Role: models.RoleAdmin, IsVerified: true,
	}, admin), http.StatusCreated, &created)
	if created.Role != models.RoleAdmin || !created.IsVerified || !created.IsActive {
		t.Errorf("created: %+v", created)
	}
	expect(t, call(t, srv.CreateUser, http.MethodPost, "/api/users", models.CreateUserRequest{
		Email: "x@campus.test", Password: "password123", Name: "X", Role: models.RoleStudent,
	}, student), http.StatusForbidden, nil)

	role := models.RoleAdmin
	expect(t, call(t, srv.UpdateUser, http.MethodPut, "/api/users/x",
		models.UpdateUserRequest{Role: &role}, student, "id", student.ID), http.StatusForbidden, nil)

	name := "Renamed"
	var updated models.User
	expect(t, call(t, srv.UpdateUser, http.MethodPut, "/api/users/x",
		models.UpdateUserRequest{Name: &name}, student, "id", student.ID), http.StatusOK, &updated)
	if updated.Name != name || updated.Role != models.RoleStudent {
		t.Errorf("updated: %+v", updated)
	}

	inactive := false
	expect(t, call(t, srv.UpdateUser, http.MethodPut, "/api/users/x",
		models.UpdateUserRequest{IsActive: &inactive}, admin, "id", admin.ID), http.StatusBadRequest, nil)
	expect(t, call(t, srv.UpdateUser, http.MethodPut, "/api/users/x",
		models.UpdateUserRequest{IsActive: &inactive}, admin, "id", student.ID), http.StatusOK, &updated)
	if updated.IsActive {
		t.Error("expected the student to be deactivated")
	}
}

func TestDeleteUser(t *testing.T) {
	srv := newTestServer(t)
	admin := seedUser(t, srv, models.RoleAdmin, "admin@campus.test")
	student := seedUser(t, srv, models.RoleStudent, "stu@campus.test")

	expect(t, call(t, srv.DeleteUser, http.MethodDelete, "/api/users/x", nil, admin, "id", admin.ID), http.StatusBadRequest, nil)
	expect(t, call(t, srv.DeleteUser, http.MethodDelete, "/api/users/x", nil, admin, "id", student.ID), http.StatusOK, nil)
	expect(t, call(t, srv.GetUser, http.MethodGet, "/api/users/x", nil, admin, "id", student.ID), http.StatusNotFound, nil)
}

func TestBulkUpdateUsers(t *testing.T) {
	srv := newTestServer(t)
	admin := seedUser(t, srv, models.RoleAdmin, "admin@campus.test")
	s1 := seedUser(t, srv, models.RoleStudent, "s1@campus.test")
	s2 := seedUser(t, srv, models.RoleStudent, "s2@campus.test")

	verified := true
	var resp models.BulkUpdateResponse
	expect(t, call(t, srv.BulkUpdateUsers, http.MethodPatch, "/api/users/bulk", models.BulkUpdateUsersRequest{
		UserIDs:    []string{s1.ID, s2.ID, admin.ID, "missing"},
		IsVerified: &verified,
	}, admin), http.StatusOK, &resp)
	if resp.Updated != 2 || len(resp.Skipped) != 2 {
		t.Errorf("updated=%d skipped=%+v", resp.Updated, resp.Skipped)
	}

	expect(t, call(t, srv.BulkUpdateUsers, http.MethodPatch, "/api/users/bulk", models.BulkUpdateUsersRequest{
		UserIDs: []string{s1.ID},
	}, admin), http.StatusBadRequest, nil)
}

func TestExportUsers_CSV(t *testing.T) {
	srv := newTestServer(t)
	faculty := seedUser(t, srv, models.RoleFaculty, "fac@campus.test")
	student := seedUser(t, srv, models.RoleStudent, "stu@campus.test")
	seedUser(t, srv, models.RoleStudent, "stu2@campus.test")

	rec := call(t, srv.ExportUsers, http.MethodGet, "/api/users/export?role=student", nil, faculty)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 || rows[0][0] != "id" || rows[1][4] != "CSE" {
		t.Errorf("rows: %v", rows)
	}

	expect(t, call(t, srv.ExportUsers, http.MethodGet, "/api/users/export", nil, student), http.StatusForbidden, nil)
}
