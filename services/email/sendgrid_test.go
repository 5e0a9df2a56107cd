package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/tests"
)

func TestSendgridService_prepare(t *testing.T) {
	svc := NewSendgridService(testutil.NewConfig(), testutil.NopLogger{})
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: "Bob", Address: "bob@showtime.io"}},
		Cc:           []mail.Address{{Address: "carol@showtime.io"}},
		Subject:      "Meeting Invitation: Sync",
		TemplateName: "meeting_invitation",
		TemplateData: map[string]string{
			"CreatorName": "Ada", "Title": "Sync", "Description": "", "Start": "Sat, 01 Mar 2025 09:00:00 UTC",
			"End": "Sat, 01 Mar 2025 10:00:00 UTC", "Link": "",
		},
	}
	require.NoError(t, msg.Attach(strings.NewReader("BEGIN:VCALENDAR"), "invite.ics", "text/calendar"))
	require.NoError(t, msg.Render(svc.frontendBaseURL))

	m := svc.prepare(*msg)
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, svc.subjPrefix+"Meeting Invitation: Sync", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "bob@showtime.io", p.To[0].Address)
	require.Len(t, p.CC, 1)

	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Contains(t, m.Content[0].Value, `Ada invited you to "Sync"`)
	assert.Equal(t, "text/html", m.Content[1].Type)

	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "invite.ics", m.Attachments[0].Filename)
	assert.Equal(t, "text/calendar", m.Attachments[0].Type)
	assert.Equal(t, "attachment", m.Attachments[0].Disposition)
	assert.Equal(t, msg.Attachments[0].Content.String(), m.Attachments[0].Content)
}
