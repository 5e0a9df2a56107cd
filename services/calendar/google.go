// Package calendarsvc implements the meeting calendar collaborator on top of the
// Google Calendar REST API.
package calendarsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/meeting"
)

const (
	defaultBaseURL = "https://www.googleapis.com/calendar/v3"
	calendarScope  = "https://www.googleapis.com/auth/calendar"
	requestTimeout = 15 * time.Second

	breakerFailures = 5
	breakerTimeout  = 30 * time.Second
)

// GoogleCalendar schedules meetings as Google Calendar events with a Meet conference.
// Calls go through a circuit breaker so an unavailable API fails fast.
type GoogleCalendar struct {
	client     *http.Client
	baseURL    string
	calendarID string
	breaker    *gobreaker.CircuitBreaker[any]
	logger     core.Logger
}

var _ meeting.Calendar = (*GoogleCalendar)(nil)

// NewGoogleCalendar authenticates with the service account credentials file set in the config.
func NewGoogleCalendar(ctx context.Context, conf *core.Config, logger core.Logger) (*GoogleCalendar, error) {
	data, err := os.ReadFile(conf.Google.CalendarCredentialsFile)
	if err != nil {
		return nil, errors.Wrap(err, "reading calendar credentials")
	}
	creds, err := google.CredentialsFromJSON(ctx, data, calendarScope)
	if err != nil {
		return nil, errors.Wrap(err, "parsing calendar credentials")
	}
	client := oauth2.NewClient(ctx, creds.TokenSource)
	client.Timeout = requestTimeout
	return NewGoogleCalendarWithClient(client, defaultBaseURL, conf.Google.CalendarID, logger), nil
}

// NewGoogleCalendarWithClient uses an already authenticated client against baseURL.
func NewGoogleCalendarWithClient(client *http.Client, baseURL, calendarID string, logger core.Logger) *GoogleCalendar {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleCalendar{
		client:     client,
		baseURL:    baseURL,
		calendarID: calendarID,
		logger:     logger,
		breaker: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:    "google-calendar",
			Timeout: breakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn(fmt.Sprintf("circuit breaker %s: %s -> %s", name, from, to))
			},
		}),
	}
}

type (
	eventTime struct {
		DateTime string `json:"dateTime"`
		TimeZone string `json:"timeZone,omitempty"`
	}

	attendee struct {
		Email string `json:"email"`
	}

	entryPoint struct {
		EntryPointType string `json:"entryPointType"`
		URI            string `json:"uri"`
	}

	solutionKey struct {
		Type string `json:"type"`
	}

	createRequest struct {
		RequestID             string      `json:"requestId"`
		ConferenceSolutionKey solutionKey `json:"conferenceSolutionKey"`
	}

	conferenceData struct {
		CreateRequest *createRequest `json:"createRequest,omitempty"`
		EntryPoints   []entryPoint   `json:"entryPoints,omitempty"`
	}

	googleEvent struct {
		ID             string          `json:"id,omitempty"`
		Summary        string          `json:"summary"`
		Description    string          `json:"description,omitempty"`
		Start          eventTime       `json:"start"`
		End            eventTime       `json:"end"`
		Attendees      []attendee      `json:"attendees,omitempty"`
		ConferenceData *conferenceData `json:"conferenceData,omitempty"`
		HangoutLink    string          `json:"hangoutLink,omitempty"`
		HTMLLink       string          `json:"htmlLink,omitempty"`
	}
)

func toGoogleEvent(req meeting.EventRequest) googleEvent {
	ev := googleEvent{
		Summary:     req.Title,
		Description: req.Description,
		Start:       eventTime{DateTime: req.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:         eventTime{DateTime: req.End.UTC().Format(time.RFC3339), TimeZone: "UTC"},
	}
	seen := make(map[string]bool, len(req.Attendees))
	for _, email := range req.Attendees {
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		ev.Attendees = append(ev.Attendees, attendee{Email: email})
	}

	ev.ConferenceData = &conferenceData{
		CreateRequest: &createRequest{
			RequestID:             uuid.NewString(),
			ConferenceSolutionKey: solutionKey{Type: "hangoutsMeet"},
		},
	}
	return ev
}

// joinLink prefers the Meet link, then any video entry point, then the event page.
func (ev googleEvent) joinLink() string {
	if ev.HangoutLink != "" {
		return ev.HangoutLink
	}
	if ev.ConferenceData != nil {
		for _, ep := range ev.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" && ep.URI != "" {
				return ep.URI
			}
		}
	}
	return ev.HTMLLink
}

func (c *GoogleCalendar) eventsURL() string {
	return fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(c.calendarID))
}

func (c *GoogleCalendar) CreateEvent(ctx context.Context, req meeting.EventRequest) (meeting.CalendarEvent, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		return c.createEvent(ctx, req)
	})
	if err != nil {
		return meeting.CalendarEvent{}, errors.Wrap(err, "creating calendar event")
	}
	return res.(meeting.CalendarEvent), nil
}

func (c *GoogleCalendar) createEvent(ctx context.Context, req meeting.EventRequest) (meeting.CalendarEvent, error) {
	body, err := json.Marshal(toGoogleEvent(req))
	if err != nil {
		return meeting.CalendarEvent{}, err
	}

	q := make(url.Values)
	q.Set("conferenceDataVersion", "1")
	q.Set("sendUpdates", "all")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.eventsURL()+"?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return meeting.CalendarEvent{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return meeting.CalendarEvent{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return meeting.CalendarEvent{}, responseError(resp)
	}

	var created googleEvent
	if err = json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return meeting.CalendarEvent{}, errors.Wrap(err, "decoding event")
	}
	return meeting.CalendarEvent{ID: created.ID, Link: created.joinLink()}, nil
}

// DeleteEvent cancels the event. An event already gone is not an error.
func (c *GoogleCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.deleteEvent(ctx, eventID)
	})
	return errors.Wrap(err, "deleting calendar event")
}

func (c *GoogleCalendar) deleteEvent(ctx context.Context, eventID string) error {
	q := make(url.Values)
	q.Set("sendUpdates", "all")
	deleteURL := fmt.Sprintf("%s/%s?%s", c.eventsURL(), url.PathEscape(eventID), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, deleteURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil
	}
	return responseError(resp)
}

func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return fmt.Errorf("calendar api: status=%d body=%s", resp.StatusCode, string(body))
}

// Noop is used when no calendar is configured: meetings get no join link.
type Noop struct{}

var _ meeting.Calendar = Noop{}

func (Noop) CreateEvent(context.Context, meeting.EventRequest) (meeting.CalendarEvent, error) {
	return meeting.CalendarEvent{}, nil
}

func (Noop) DeleteEvent(context.Context, string) error { return nil }
