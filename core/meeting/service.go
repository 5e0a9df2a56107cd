// Package meeting manages the meeting lifecycle: scheduling with an external calendar,
// listing per participant and deletion by the creator.
package meeting

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/showtime/portal/core"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200

	EventCreated = "meeting.created"
	EventDeleted = "meeting.deleted"
)

var (
	// errors
	ErrNotFound         = fmt.Errorf("meeting %w", core.ErrNotFound)
	ErrInvalidTimeRange = errors.New("start must be before end")
)

type (
	Repository interface {
		CreateMeeting(ctx context.Context, m Meeting) (Meeting, error)
		GetMeetingByID(ctx context.Context, id string) (Meeting, error)
		// QueryMeetings returns up to limit meetings p takes part in, ordered by start ascending.
		QueryMeetings(ctx context.Context, p Participant, limit int) ([]Meeting, error)
		DeleteMeeting(ctx context.Context, id string) error
	}

	// Calendar is the external calendar collaborator.
	Calendar interface {
		CreateEvent(ctx context.Context, req EventRequest) (CalendarEvent, error)
		DeleteEvent(ctx context.Context, eventID string) error
	}

	Service struct {
		repo     Repository
		calendar Calendar
		mailSvc  core.EmailService
		events   core.EventPublisher
		logger   core.Logger
	}
)

func NewService(
	repo Repository,
	calendar Calendar,
	mailSvc core.EmailService,
	events core.EventPublisher,
	logger core.Logger,
) *Service {
	return &Service{
		repo:     repo,
		calendar: calendar,
		mailSvc:  mailSvc,
		events:   events,
		logger:   logger,
	}
}

// Create schedules a new Meeting. A failing calendar collaborator does not fail the
// operation: the Meeting is stored without a join link.
func (svc *Service) Create(ctx context.Context, creatorID, creatorName string, nm NewMeeting) (Meeting, error) {
	nm.Clean()
	if err := validate(nm); err != nil {
		return Meeting{}, err
	}

	m := Meeting{
		ID:          uuid.NewString(),
		Title:       nm.Title,
		Description: nm.Description,
		Start:       nm.Start,
		End:         nm.End,
		CreatorID:   creatorID,
		CreatorName: creatorName,
		Attendees:   nm.Attendees,
		CreatedAt:   core.NowFunc(),
	}
	if m.Attendees == nil {
		m.Attendees = []string{}
	}

	if svc.calendar != nil {
		ev, err := svc.calendar.CreateEvent(ctx, EventRequest{
			Title:       m.Title,
			Description: m.Description,
			Start:       m.Start,
			End:         m.End,
			Attendees:   m.Attendees,
		})
		if err != nil {
			svc.logger.Error(fmt.Sprintf("creating calendar event for meeting %q", m.Title), errors.Wrap(err, "calendar"))
		} else {
			m.CalendarEventID = ev.ID
			m.Link = ev.Link
		}
	}

	m, err := svc.repo.CreateMeeting(ctx, m)
	if err != nil {
		return Meeting{}, errors.Wrap(err, "creating meeting")
	}

	svc.invite(m)
	svc.publish(EventCreated, m)
	return withStatus(m), nil
}

// List returns the meetings p created or is invited to, ordered by start ascending.
func (svc *Service) List(ctx context.Context, p Participant, limit int) ([]Meeting, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	p.Email = core.CleanString(p.Email, true /* lower */)

	meetings, err := svc.repo.QueryMeetings(ctx, p, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying meetings")
	}
	for i := range meetings {
		meetings[i] = withStatus(meetings[i])
	}
	return meetings, nil
}

// Get returns the Meeting with the given id, as long as viewer takes part in it.
func (svc *Service) Get(ctx context.Context, id string, viewer Participant) (Meeting, error) {
	m, err := svc.repo.GetMeetingByID(ctx, id)
	if err != nil {
		return Meeting{}, err
	}
	if !m.IsParticipant(viewer) {
		return Meeting{}, core.ErrForbidden
	}
	return withStatus(m), nil
}

// Delete removes the Meeting. Only its creator may delete it.
// Cancelling the calendar event is best-effort.
func (svc *Service) Delete(ctx context.Context, id, requesterID string) error {
	m, err := svc.repo.GetMeetingByID(ctx, id)
	if err != nil {
		return err
	}
	if m.CreatorID != requesterID {
		return core.ErrForbidden
	}

	if err = svc.repo.DeleteMeeting(ctx, id); err != nil {
		return errors.Wrap(err, "deleting meeting")
	}

	if svc.calendar != nil && m.CalendarEventID != "" {
		if err = svc.calendar.DeleteEvent(ctx, m.CalendarEventID); err != nil {
			svc.logger.Error(fmt.Sprintf("deleting calendar event of meeting %s", m.ID), errors.Wrap(err, "calendar"))
		}
	}
	svc.publish(EventDeleted, m)
	return nil
}

func (svc *Service) invite(m Meeting) {
	if svc.mailSvc == nil || len(m.Attendees) == 0 {
		return
	}

	seen := make(map[string]bool, len(m.Attendees))
	to := make([]mail.Address, 0, len(m.Attendees))
	for _, email := range m.Attendees {
		if !seen[email] {
			seen[email] = true
			to = append(to, mail.Address{Address: email})
		}
	}

	msg := &core.EmailMessage{
		To:           to,
		Subject:      "Meeting Invitation: " + m.Title,
		TemplateName: "meeting_invitation",
		TemplateData: map[string]string{
			"CreatorName": m.CreatorName,
			"Title":       m.Title,
			"Description": m.Description,
			"Start":       m.Start.Format(time.RFC1123),
			"End":         m.End.Format(time.RFC1123),
			"Link":        m.Link,
		},
	}
	if ics, err := ICalendar(m); err != nil {
		svc.logger.Error(fmt.Sprintf("building invitation for meeting %q", m.Title), err)
	} else if err = msg.Attach(bytes.NewReader(ics), "invite.ics", "text/calendar; method=REQUEST"); err != nil {
		svc.logger.Error(fmt.Sprintf("attaching invitation for meeting %q", m.Title), errors.Wrap(err, "attaching ics"))
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *Service) publish(key string, m Meeting) {
	if svc.events == nil {
		return
	}
	if err := svc.events.Publish(key, m); err != nil {
		svc.logger.Error(fmt.Sprintf("publishing %s", key), err)
	}
}

func validate(nm NewMeeting) error {
	var missing []core.FieldError
	if nm.Title == "" {
		missing = append(missing, core.FieldError{Field: "title", Error: "title is required"})
	}
	if nm.Start.IsZero() {
		missing = append(missing, core.FieldError{Field: "start", Error: "start is required"})
	}
	if nm.End.IsZero() {
		missing = append(missing, core.FieldError{Field: "end", Error: "end is required"})
	}
	if len(missing) > 0 {
		return core.NewValidationError(core.ErrMissingRequiredField, missing...)
	}

	if !nm.Start.Before(nm.End) {
		return core.NewValidationError(ErrInvalidTimeRange, core.FieldError{Field: "end", Error: ErrInvalidTimeRange.Error()})
	}
	return nil
}

func withStatus(m Meeting) Meeting {
	m.Status = m.StatusAt(core.NowFunc())
	return m
}
