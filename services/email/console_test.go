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

func TestConsoleService_SendMessages(t *testing.T) {
	svc := NewConsoleServiceMock(testutil.NewConfig(), testutil.NopLogger{})

	reset := &core.EmailMessage{
		To:           []mail.Address{{Name: "Ada", Address: "ada@showtime.io"}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{"Name": "Ada", "UID": "dWlk", "Token": "tok-en"},
	}
	invite := &core.EmailMessage{
		To:           []mail.Address{{Address: "bob@showtime.io"}},
		Subject:      "Meeting Invitation: Sync",
		TemplateName: "meeting_invitation",
		TemplateData: map[string]string{
			"CreatorName": "Ada", "Title": "Sync", "Description": "", "Start": "Sat, 01 Mar 2025 09:00:00 UTC",
			"End": "Sat, 01 Mar 2025 10:00:00 UTC", "Link": "https://meet.example.com/abc",
		},
	}
	noRecipient := &core.EmailMessage{Subject: "nobody", BodyStr: "hello"}
	svc.SendMessages(reset, invite, noRecipient)

	sent := svc.SentMessages()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].TextContent, "http://localhost:3000/password-reset/dWlk/tok-en")
	assert.Contains(t, sent[0].HTMLContent, "http://localhost:3000/password-reset/dWlk/tok-en")
	assert.True(t, strings.Contains(sent[1].TextContent, "https://meet.example.com/abc"))
	assert.Contains(t, sent[1].HTMLContent, "Sync")
}

func TestConsoleService_MissingTemplateData(t *testing.T) {
	svc := NewConsoleServiceMock(testutil.NewConfig(), testutil.NopLogger{})
	svc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: "ada@showtime.io"}},
		TemplateName: "password_reset",
		TemplateData: map[string]string{"Name": "Ada"},
	})
	assert.Empty(t, svc.SentMessages())
}

func TestConsoleService_Attachments(t *testing.T) {
	svc := NewConsoleServiceMock(testutil.NewConfig(), testutil.NopLogger{})
	msg := &core.EmailMessage{
		To:      []mail.Address{{Address: "bob@showtime.io"}},
		Subject: "Invite",
		BodyStr: "see attached",
	}
	require.NoError(t, msg.Attach(strings.NewReader("BEGIN:VCALENDAR"), "invite.ics", "text/calendar"))
	svc.SendMessages(msg)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "see attached", sent[0].TextContent)
	require.Len(t, sent[0].Attachments, 1)
	assert.Equal(t, "invite.ics", sent[0].Attachments[0].Filename)
}
