package announcement_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/announcement"
	inmemdb "github.com/showtime/portal/storage/database/inmem"
	"github.com/showtime/portal/tests"
)

type broadcasts [][]byte

func (b *broadcasts) Broadcast(payload []byte, _ string) { *b = append(*b, payload) }

func TestService(t *testing.T) {
	var pushed broadcasts
	events := new(testutil.EventRecorder)
	repo := inmemdb.NewAnnouncementRepository(inmemdb.Open())
	svc := announcement.NewService(repo, &pushed, events, testutil.NopLogger{})
	ctx := context.Background()

	_, err := svc.Create(ctx, "admin", "Admin", announcement.NewAnnouncement{Title: " "})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Fields, 2)

	origNow := core.NowFunc
	defer func() { core.NowFunc = origNow }()
	tstamp := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	core.NowFunc = func() time.Time { return tstamp }

	first, err := svc.Create(ctx, "admin", "Admin", announcement.NewAnnouncement{Title: "Welcome", Content: "Hello team"})
	require.NoError(t, err)
	tstamp = tstamp.Add(time.Hour)
	second, err := svc.Create(ctx, "admin", "Admin", announcement.NewAnnouncement{Title: "Party", Content: "Friday"})
	require.NoError(t, err)

	require.Len(t, pushed, 2)
	var wire struct {
		Type         string                    `json:"type"`
		Announcement announcement.Announcement `json:"announcement"`
	}
	require.NoError(t, json.Unmarshal(pushed[0], &wire))
	assert.Equal(t, announcement.TypeAnnouncement, wire.Type)
	assert.Equal(t, first.ID, wire.Announcement.ID)

	list, err := svc.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	require.NoError(t, svc.Delete(ctx, first.ID))
	assert.ErrorIs(t, svc.Delete(ctx, first.ID), core.ErrNotFound)

	list, err = svc.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, []string{announcement.EventCreated, announcement.EventCreated, announcement.EventDeleted}, events.Keys())
}
