package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showtime/portal/core/employee"
	"github.com/showtime/portal/core/meeting"
)

func Test_meetingApi(t *testing.T) {
	env := setup(t)
	alice := env.createEmployee(t, "Alice", "alice@showtime.io", employee.RoleMember, true)
	bob := env.createEmployee(t, "Bob", "bob@showtime.io", employee.RoleMember, true)
	carol := env.createEmployee(t, "Carol", "carol@showtime.io", employee.RoleMember, true)
	aliceToken, bobToken, carolToken := env.token(t, alice), env.token(t, bob), env.token(t, carol)

	start := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	nm := meeting.NewMeeting{
		Title:     " Sprint review ",
		Start:     start,
		End:       start.Add(30 * time.Minute),
		Attendees: []string{"BOB@showtime.io", "bob@showtime.io"},
	}
	backwards := nm
	backwards.End = start.Add(-time.Minute)
	badEmail := nm
	badEmail.Attendees = []string{"lol"}

	env.run(t, []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/api/meetings", body: marchallObj(t, nm), wantCode: http.StatusUnauthorized},
		{
			name: "Missing fields", method: http.MethodPost, path: "/api/meetings", token: aliceToken, body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"title": "title is required", "start": "start is required", "end": "end is required"}),
		},
		{
			name: "End before start", method: http.MethodPost, path: "/api/meetings", token: aliceToken, body: marchallObj(t, backwards),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"end": meeting.ErrInvalidTimeRange.Error()}),
		},
		{
			name: "Invalid attendee", method: http.MethodPost, path: "/api/meetings", token: aliceToken, body: marchallObj(t, badEmail),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"attendees[0]": "attendees[0] must be a valid email address"}),
		},
	})

	req, rec := newAuthRequest(http.MethodPost, "/api/meetings", aliceToken, marchallObj(t, nm))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var m meeting.Meeting
	unmarshal(t, rec, &m)
	assert.Equal(t, "Sprint review", m.Title)
	assert.Equal(t, alice.ID, m.CreatorID)
	assert.Equal(t, "Alice", m.CreatorName)
	assert.Equal(t, []string{"bob@showtime.io", "bob@showtime.io"}, m.Attendees)
	assert.Equal(t, "https://meet.example.com/evt-1", m.Link)
	assert.Equal(t, meeting.StatusUpcoming, m.Status)

	// one invitation, deduped
	msgs := env.mail.Messages()
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].To, 1)
	assert.Equal(t, "bob@showtime.io", msgs[0].To[0].Address)

	forbidden := marchallObj(t, httpErr{Error: "permission denied"})
	env.run(t, []httpTest{
		{name: "Creator lists", path: "/api/meetings", token: aliceToken, wantData: marchallList(t, m)},
		{name: "Attendee lists", path: "/api/meetings", token: bobToken, wantData: marchallList(t, m)},
		{name: "Outsider lists", path: "/api/meetings", token: carolToken, wantData: []byte(`[]`)},
		{name: "Attendee retrieves", path: "/api/meetings/" + m.ID, token: bobToken, wantData: marchallObj(t, m)},
		{name: "Outsider retrieves", path: "/api/meetings/" + m.ID, token: carolToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "Unknown", path: "/api/meetings/lol", token: aliceToken, wantCode: http.StatusNotFound},
		{name: "Attendee deletes", method: http.MethodDelete, path: "/api/meetings/" + m.ID, token: bobToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "Creator deletes", method: http.MethodDelete, path: "/api/meetings/" + m.ID, token: aliceToken, wantCode: http.StatusNoContent},
		{name: "Gone", path: "/api/meetings/" + m.ID, token: aliceToken, wantCode: http.StatusNotFound},
	})
	assert.Equal(t, []string{"evt-1"}, env.calendar.Deleted)
}

func Test_meetingApi_calendarDown(t *testing.T) {
	env := setup(t)
	env.calendar.Fail = true
	alice := env.createEmployee(t, "Alice", "alice@showtime.io", employee.RoleMember, true)

	start := time.Now().Add(-time.Minute).UTC()
	nm := meeting.NewMeeting{Title: "Standup", Start: start, End: start.Add(15 * time.Minute)}

	req, rec := newAuthRequest(http.MethodPost, "/api/meetings", env.token(t, alice), marchallObj(t, nm))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var m meeting.Meeting
	unmarshal(t, rec, &m)
	assert.Empty(t, m.Link)
	assert.Equal(t, []string{}, m.Attendees)
	assert.Equal(t, meeting.StatusOngoing, m.Status)
}
