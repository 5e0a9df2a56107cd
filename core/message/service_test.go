package message_test

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/message"
	inmemdb "github.com/showtime/portal/storage/database/inmem"
	"github.com/showtime/portal/tests"
)

type delivery struct {
	to      string // "*" for broadcasts
	payload []byte
}

type recordingDeliverer struct {
	mu         sync.Mutex
	deliveries []delivery
}

func (d *recordingDeliverer) SendTo(id string, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = append(d.deliveries, delivery{to: id, payload: payload})
	return nil
}

func (d *recordingDeliverer) Broadcast(payload []byte, _ string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = append(d.deliveries, delivery{to: "*", payload: payload})
}

func (d *recordingDeliverer) targets() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.deliveries))
	for i, dl := range d.deliveries {
		out[i] = dl.to
	}
	return out
}

var (
	alice = message.Sender{ID: "alice", Name: "Alice"}
	bob   = message.Sender{ID: "bob", Name: "Bob"}
)

func setup(t *testing.T) (*message.Service, *recordingDeliverer, *testutil.FakeFileStorage) {
	t.Helper()
	deliverer := new(recordingDeliverer)
	files := new(testutil.FakeFileStorage)
	repo := inmemdb.NewMessageRepository(inmemdb.Open())
	svc := message.NewService(repo, files, deliverer, new(testutil.EventRecorder), testutil.NopLogger{})
	return svc, deliverer, files
}

func TestService_Send(t *testing.T) {
	svc, deliverer, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, alice, message.NewMessage{Content: "  "})
	assert.ErrorIs(t, err, message.ErrEmptyMessage)

	general, err := svc.Send(ctx, alice, message.NewMessage{Content: "hello all"})
	require.NoError(t, err)
	assert.Equal(t, message.GeneralChannel, general.ChannelID)
	assert.Equal(t, message.KindText, general.Kind)

	direct, err := svc.Send(ctx, alice, message.NewMessage{Content: "hi bob", RecipientID: "bob", ChannelID: "ignored"})
	require.NoError(t, err)
	assert.Empty(t, direct.ChannelID)

	assert.Equal(t, []string{"*", "bob", "alice"}, deliverer.targets())

	var wire message.ChatMessage
	require.NoError(t, json.Unmarshal(deliverer.deliveries[1].payload, &wire))
	assert.Equal(t, message.TypeChatMessage, wire.Type)
	assert.Equal(t, direct.ID, wire.Message.ID)
}

func TestService_History(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	send := func(from message.Sender, nm message.NewMessage) message.Message {
		msg, err := svc.Send(ctx, from, nm)
		require.NoError(t, err)
		return msg
	}
	g1 := send(alice, message.NewMessage{Content: "g1"})
	d1 := send(alice, message.NewMessage{Content: "d1", RecipientID: "bob"})
	d2 := send(bob, message.NewMessage{Content: "d2", RecipientID: "alice"})
	send(bob, message.NewMessage{Content: "other", RecipientID: "carol"})
	g2 := send(bob, message.NewMessage{Content: "g2"})
	r1 := send(bob, message.NewMessage{Content: "r1", ChannelID: "random"})

	ids := func(msgs []message.Message) []string {
		out := make([]string, len(msgs))
		for i, m := range msgs {
			out[i] = m.ID
		}
		return out
	}

	tests := []struct {
		name string
		q    message.Query
		want []string
	}{
		{name: "general", q: message.Query{EmployeeID: "alice"}, want: []string{g1.ID, g2.ID}},
		{name: "channel", q: message.Query{EmployeeID: "alice", ChannelID: "random"}, want: []string{r1.ID}},
		{name: "direct", q: message.Query{EmployeeID: "alice", RecipientID: "bob"}, want: []string{d1.ID, d2.ID}},
		{name: "direct (other side)", q: message.Query{EmployeeID: "bob", RecipientID: "alice"}, want: []string{d1.ID, d2.ID}},
		{name: "limit keeps the last", q: message.Query{EmployeeID: "alice", RecipientID: "bob", Limit: 1}, want: []string{d2.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.History(ctx, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestService_ShareFile(t *testing.T) {
	svc, deliverer, files := setup(t)
	ctx := context.Background()

	msg, err := svc.ShareFile(ctx, alice, message.NewMessage{RecipientID: "bob"}, strings.NewReader("report"), message.FileMeta{
		Name: "../../etc/report.txt", Size: 6, ContentType: "text/plain",
	})
	require.NoError(t, err)
	require.NotNil(t, msg.File)
	assert.Equal(t, message.KindFile, msg.Kind)
	assert.Equal(t, "report.txt", msg.File.Name)
	assert.Equal(t, "report.txt", msg.Content)
	assert.Equal(t, int64(6), msg.File.Size)
	assert.NotEmpty(t, msg.File.URL)
	assert.Equal(t, []string{"bob", "alice"}, deliverer.targets())

	file, rc, err := svc.OpenFile(ctx, msg.File.ID, "bob")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "report", string(data))
	assert.Equal(t, *msg.File, file)

	_, _, err = svc.OpenFile(ctx, msg.File.ID, "carol")
	assert.ErrorIs(t, err, core.ErrForbidden)
	_, _, err = svc.OpenFile(ctx, "unknown", "bob")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.ShareFile(ctx, alice, message.NewMessage{}, strings.NewReader(""), message.FileMeta{})
	assert.ErrorIs(t, err, core.ErrMissingRequiredField)

	files.Fail = true
	_, err = svc.ShareFile(ctx, alice, message.NewMessage{}, strings.NewReader("x"), message.FileMeta{Name: "x.bin", Size: 1})
	assert.ErrorIs(t, err, core.ErrUpstream)
}
