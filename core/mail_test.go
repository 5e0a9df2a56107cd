package core

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailMessage_Render(t *testing.T) {
	tests := []struct {
		name     string
		msg      EmailMessage
		wantText []string
		wantHTML []string
	}{
		{
			name: "password reset",
			msg: EmailMessage{
				TemplateName: "password_reset",
				TemplateData: map[string]string{"Name": "Ada", "UID": "dWlk", "Token": "tok-en"},
			},
			wantText: []string{"Hi Ada", "http://front.test/password-reset/dWlk/tok-en", "ShowTime Employee Portal"},
			wantHTML: []string{"Ada", "http://front.test/password-reset/dWlk/tok-en"},
		},
		{
			name: "meeting invitation",
			msg: EmailMessage{
				TemplateName: "meeting_invitation",
				TemplateData: map[string]string{
					"CreatorName": "Ada", "Title": "Sync", "Description": "weekly",
					"Start": "Sat, 01 Mar 2025 09:00:00 UTC", "End": "Sat, 01 Mar 2025 10:00:00 UTC",
					"Link": "https://meet.example.com/abc",
				},
			},
			wantText: []string{`Ada invited you to "Sync"`, "Join: https://meet.example.com/abc", "weekly"},
			wantHTML: []string{"Sync", "https://meet.example.com/abc"},
		},
		{
			name:     "plain body",
			msg:      EmailMessage{BodyStr: "hello"},
			wantText: []string{"hello"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.msg
			require.NoError(t, msg.Render("http://front.test"))
			for _, s := range tt.wantText {
				assert.Contains(t, msg.TextContent, s)
			}
			for _, s := range tt.wantHTML {
				assert.Contains(t, msg.HTMLContent, s)
			}
		})
	}
}

func TestEmailMessage_RenderUnknownTemplate(t *testing.T) {
	msg := EmailMessage{TemplateName: "nope", TemplateData: map[string]string{}}
	require.NoError(t, msg.Render("http://front.test"))
	assert.False(t, msg.HasContent())
}

func TestEmailMessage_Attach(t *testing.T) {
	msg := EmailMessage{To: []mail.Address{{Address: "ada@showtime.io"}}}
	assert.False(t, msg.HasAttachments())

	require.NoError(t, msg.Attach(strings.NewReader("BEGIN:VCALENDAR"), "invite.ics", "text/calendar"))
	require.NoError(t, msg.Attach(strings.NewReader("plain words"), "notes.txt"))
	require.Len(t, msg.Attachments, 2)

	assert.Equal(t, "text/calendar", msg.Attachments[0].ContentType)
	raw, err := base64.StdEncoding.DecodeString(msg.Attachments[0].Content.String())
	require.NoError(t, err)
	assert.Equal(t, "BEGIN:VCALENDAR", string(raw))

	assert.Equal(t, "notes.txt", msg.Attachments[1].Filename)
	assert.True(t, strings.HasPrefix(msg.Attachments[1].ContentType, "text/plain"))
}
