package meeting

import (
	"time"

	"github.com/showtime/portal/core"
)

// Status is derived from the meeting time range on every read, it is never stored.
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusOngoing  Status = "ongoing"
	StatusPast     Status = "past"
)

type Meeting struct {
	ID              string    `json:"id" bson:"_id"`
	Title           string    `json:"title" bson:"title"`
	Description     string    `json:"description" bson:"description"`
	Start           time.Time `json:"start" bson:"start"` // UTC
	End             time.Time `json:"end" bson:"end"`     // UTC
	CreatorID       string    `json:"creator_id" bson:"creator_id"`
	CreatorName     string    `json:"creator_name" bson:"creator_name"`
	Attendees       []string  `json:"attendees" bson:"attendees"` // emails; duplicates tolerated
	Link            string    `json:"link,omitempty" bson:"link,omitempty"`
	CalendarEventID string    `json:"-" bson:"calendar_event_id,omitempty"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"` // UTC
	Status          Status    `json:"status" bson:"-"`
}

// StatusAt returns the Status of the meeting at the given time: ongoing within [Start, End],
// upcoming before Start and past after End.
func (m Meeting) StatusAt(now time.Time) Status {
	switch {
	case now.Before(m.Start):
		return StatusUpcoming
	case now.After(m.End):
		return StatusPast
	default:
		return StatusOngoing
	}
}

// IsParticipant reports whether p created the meeting or is invited to it.
func (m Meeting) IsParticipant(p Participant) bool {
	if p.ID != "" && m.CreatorID == p.ID {
		return true
	}
	email := core.CleanString(p.Email, true /* lower */)
	for _, att := range m.Attendees {
		if email != "" && att == email {
			return true
		}
	}
	return false
}

// Participant identifies an employee by ID (as creator) and email (as attendee).
type Participant struct {
	ID    string
	Email string
}

// NewMeeting contains information needed to schedule a Meeting.
type NewMeeting struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendees   []string  `json:"attendees" validate:"dive,email"`
}

func (nm *NewMeeting) Clean() {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	nm.Start = nm.Start.UTC()
	nm.End = nm.End.UTC()
	nm.Attendees = core.CleanStrings(nm.Attendees, true /* lower */)
}

// EventRequest asks the calendar collaborator to schedule a Meeting.
type EventRequest struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

// CalendarEvent is the calendar collaborator's view of a scheduled Meeting.
type CalendarEvent struct {
	ID   string
	Link string // conference join link
}
