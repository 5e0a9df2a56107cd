package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showtime/portal/core/announcement"
	"github.com/showtime/portal/core/employee"
)

func Test_announcementApi(t *testing.T) {
	env := setup(t)
	admin := env.createEmployee(t, "Ada Admin", "ada@showtime.io", employee.RoleAdmin, true)
	bob := env.createEmployee(t, "Bob", "bob@showtime.io", employee.RoleMember, true)
	adminToken, bobToken := env.token(t, admin), env.token(t, bob)

	na := announcement.NewAnnouncement{Title: "Office closed", Content: "Friday is a holiday."}
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})

	env.run(t, []httpTest{
		{name: "Admin required", method: http.MethodPost, path: "/api/announcements", token: bobToken, body: marchallObj(t, na), wantCode: http.StatusForbidden, wantData: forbidden},
		{
			name: "Missing fields", method: http.MethodPost, path: "/api/announcements", token: adminToken, body: []byte(`{"title":" "}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"title": "title is required", "content": "content is required"}),
		},
		{name: "Empty list", path: "/api/announcements", token: bobToken, wantData: []byte(`[]`)},
	})

	req, rec := newAuthRequest(http.MethodPost, "/api/announcements", adminToken, marchallObj(t, na))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var a announcement.Announcement
	unmarshal(t, rec, &a)
	assert.Equal(t, admin.ID, a.AuthorID)
	assert.Equal(t, "Ada Admin", a.AuthorName)

	env.run(t, []httpTest{
		{name: "Listed", path: "/api/announcements", token: bobToken, wantData: marchallList(t, a)},
		{name: "Member deletes", method: http.MethodDelete, path: "/api/announcements/" + a.ID, token: bobToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "Admin deletes", method: http.MethodDelete, path: "/api/announcements/" + a.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "Unknown", method: http.MethodDelete, path: "/api/announcements/" + a.ID, token: adminToken, wantCode: http.StatusNotFound},
	})
	assert.Equal(t, []string{announcement.EventCreated, announcement.EventDeleted}, env.events.Keys())
}
