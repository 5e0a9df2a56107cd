package meeting

import (
	"bytes"

	"github.com/emersion/go-ical"
	"github.com/pkg/errors"

	"github.com/showtime/portal/core"
)

const icsProductID = "-//ShowTime//Meetings//EN"

// ICalendar encodes m as a single-event iCalendar (RFC 5545) request, suitable as an e-mail attachment.
func ICalendar(m Meeting) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icsProductID)
	cal.Props.SetText(ical.PropMethod, "REQUEST")

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, m.ID)
	event.Props.SetDateTime(ical.PropDateTimeStamp, core.NowFunc().UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, m.Start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, m.End.UTC())
	event.Props.SetText(ical.PropSummary, m.Title)
	if m.Description != "" {
		event.Props.SetText(ical.PropDescription, m.Description)
	}
	if m.Link != "" {
		event.Props.SetText(ical.PropLocation, m.Link)
	}
	cal.Children = append(cal.Children, event.Component)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, errors.Wrap(err, "encoding icalendar")
	}
	return buf.Bytes(), nil
}
