package calendarsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showtime/portal/core/meeting"
	"github.com/showtime/portal/tests"
)

func newTestCalendar(t *testing.T, handler http.HandlerFunc) *GoogleCalendar {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGoogleCalendarWithClient(srv.Client(), srv.URL, "team@showtime.io", testutil.NopLogger{})
}

func TestGoogleCalendar_CreateEvent(t *testing.T) {
	var got googleEvent
	cal := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendars/team@showtime.io/events", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("conferenceDataVersion"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt-42","hangoutLink":"https://meet.google.com/abc-defg-hij","htmlLink":"https://calendar.google.com/e/42"}`))
	})

	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	ev, err := cal.CreateEvent(context.Background(), meeting.EventRequest{
		Title:     "Sync",
		Start:     start,
		End:       start.Add(time.Hour),
		Attendees: []string{"bob@showtime.io", "bob@showtime.io", "carol@showtime.io"},
	})
	require.NoError(t, err)
	assert.Equal(t, meeting.CalendarEvent{ID: "evt-42", Link: "https://meet.google.com/abc-defg-hij"}, ev)

	assert.Equal(t, "Sync", got.Summary)
	assert.Equal(t, "2025-03-01T09:00:00Z", got.Start.DateTime)
	assert.Equal(t, "2025-03-01T10:00:00Z", got.End.DateTime)
	assert.Equal(t, []attendee{{Email: "bob@showtime.io"}, {Email: "carol@showtime.io"}}, got.Attendees)
	require.NotNil(t, got.ConferenceData)
	require.NotNil(t, got.ConferenceData.CreateRequest)
	assert.Equal(t, "hangoutsMeet", got.ConferenceData.CreateRequest.ConferenceSolutionKey.Type)
	assert.NotEmpty(t, got.ConferenceData.CreateRequest.RequestID)
}

func TestGoogleEvent_joinLink(t *testing.T) {
	tests := []struct {
		name string
		ev   googleEvent
		want string
	}{
		{name: "hangout", ev: googleEvent{HangoutLink: "meet", HTMLLink: "html"}, want: "meet"},
		{
			name: "entry point",
			ev: googleEvent{HTMLLink: "html", ConferenceData: &conferenceData{EntryPoints: []entryPoint{
				{EntryPointType: "phone", URI: "tel:+1"},
				{EntryPointType: "video", URI: "video"},
			}}},
			want: "video",
		},
		{name: "html", ev: googleEvent{HTMLLink: "html"}, want: "html"},
		{name: "none", ev: googleEvent{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ev.joinLink())
		})
	}
}

func TestGoogleCalendar_DeleteEvent(t *testing.T) {
	statuses := map[string]int{"evt-1": http.StatusNoContent, "evt-gone": http.StatusGone, "evt-err": http.StatusForbidden}
	cal := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		id := r.URL.Path[len("/calendars/team@showtime.io/events/"):]
		w.WriteHeader(statuses[id])
	})

	ctx := context.Background()
	assert.NoError(t, cal.DeleteEvent(ctx, "evt-1"))
	assert.NoError(t, cal.DeleteEvent(ctx, "evt-gone"))
	assert.Error(t, cal.DeleteEvent(ctx, "evt-err"))
}

func TestGoogleCalendar_circuitBreaker(t *testing.T) {
	var calls int32
	cal := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ctx := context.Background()
	for i := 0; i < breakerFailures; i++ {
		_, err := cal.CreateEvent(ctx, meeting.EventRequest{Title: "x"})
		require.Error(t, err)
	}
	_, err := cal.CreateEvent(ctx, meeting.EventRequest{Title: "x"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(breakerFailures), atomic.LoadInt32(&calls))
}

func TestNoop(t *testing.T) {
	ev, err := Noop{}.CreateEvent(context.Background(), meeting.EventRequest{})
	assert.NoError(t, err)
	assert.Empty(t, ev.Link)
	assert.NoError(t, Noop{}.DeleteEvent(context.Background(), "x"))
}
