package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/employee"
	"github.com/showtime/portal/core/message"
	"github.com/showtime/portal/core/presence"
)

type wsMessage struct {
	Type     string                     `json:"type"`
	UserID   string                     `json:"user_id"`
	Status   presence.Status            `json:"status"`
	Statuses map[string]presence.Status `json:"statuses"`
	Message  message.Message            `json:"message"`
	Error    string                     `json:"error"`
}

func dialWS(t *testing.T, srv *httptest.Server, id, token string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/" + id + "?token=" + token
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Cleanup(func() { _ = ws.Close() })
	}
	return ws, resp, err
}

func readWS(t *testing.T, ws *websocket.Conn) wsMessage {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wsMessage
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &msg), string(data))
	return msg
}

func writeWS(t *testing.T, ws *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(v))
}

func Test_presenceApi_websocket(t *testing.T) {
	env := setup(t)
	alice := env.createEmployee(t, "Alice", "alice@showtime.io", employee.RoleMember, true)
	bob := env.createEmployee(t, "Bob", "bob@showtime.io", employee.RoleMember, true)

	srv := httptest.NewServer(env.app)
	t.Cleanup(srv.Close)

	t.Run("Subject mismatch", func(t *testing.T) {
		_, resp, err := dialWS(t, srv, bob.ID, env.token(t, alice))
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("Auth required", func(t *testing.T) {
		_, resp, err := dialWS(t, srv, alice.ID, "")
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Deactivated", func(t *testing.T) {
		carol := env.createEmployee(t, "Carol", "carol@showtime.io", employee.RoleMember, false)
		_, resp, err := dialWS(t, srv, carol.ID, env.token(t, carol))
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, presence.StatusOffline, env.hub.Status(carol.ID))
	})

	wsAlice, _, err := dialWS(t, srv, alice.ID, env.token(t, alice))
	require.NoError(t, err)
	snap := readWS(t, wsAlice)
	assert.Equal(t, presence.TypeAllStatuses, snap.Type)
	assert.Equal(t, map[string]presence.Status{alice.ID: presence.StatusOnline}, snap.Statuses)

	wsBob, _, err := dialWS(t, srv, bob.ID, env.token(t, bob))
	require.NoError(t, err)
	snap = readWS(t, wsBob)
	assert.Equal(t, map[string]presence.Status{alice.ID: presence.StatusOnline, bob.ID: presence.StatusOnline}, snap.Statuses)

	// bob's arrival is announced to alice only
	upd := readWS(t, wsAlice)
	assert.Equal(t, wsMessage{Type: presence.TypeStatusUpdate, UserID: bob.ID, Status: presence.StatusOnline}, upd)

	t.Run("REST statuses", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/users/status", env.token(t, alice))
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, map[string]presence.Status{alice.ID: presence.StatusOnline, bob.ID: presence.StatusOnline}),
		}, rec)
	})

	t.Run("set_status reaches everyone", func(t *testing.T) {
		writeWS(t, wsBob, presence.SetStatusMessage{Type: presence.TypeSetStatus, Status: "busy"})
		want := wsMessage{Type: presence.TypeStatusUpdate, UserID: bob.ID, Status: presence.StatusBusy}
		assert.Equal(t, want, readWS(t, wsBob))
		assert.Equal(t, want, readWS(t, wsAlice))
	})

	t.Run("offline cannot be set", func(t *testing.T) {
		writeWS(t, wsBob, presence.SetStatusMessage{Type: presence.TypeSetStatus, Status: "offline"})
		assert.Equal(t, wsMessage{Type: "error", Error: presence.ErrInvalidStatus.Error()}, readWS(t, wsBob))
	})

	t.Run("snapshot on demand", func(t *testing.T) {
		writeWS(t, wsAlice, presence.Envelope{Type: presence.TypeGetAllStatuses})
		snap := readWS(t, wsAlice)
		assert.Equal(t, presence.TypeAllStatuses, snap.Type)
		assert.Equal(t, presence.StatusBusy, snap.Statuses[bob.ID])
	})

	t.Run("unknown type", func(t *testing.T) {
		writeWS(t, wsAlice, presence.Envelope{Type: "lol"})
		assert.Equal(t, wsMessage{Type: "error", Error: `unknown message type "lol"`}, readWS(t, wsAlice))
	})

	t.Run("malformed message", func(t *testing.T) {
		require.NoError(t, wsAlice.WriteMessage(websocket.TextMessage, []byte("{lol")))
		assert.Equal(t, wsMessage{Type: "error", Error: "malformed message"}, readWS(t, wsAlice))
	})

	t.Run("chat message", func(t *testing.T) {
		writeWS(t, wsAlice, map[string]string{"type": message.TypeChatMessage, "content": " hello "})
		for _, ws := range []*websocket.Conn{wsAlice, wsBob} {
			msg := readWS(t, ws)
			assert.Equal(t, message.TypeChatMessage, msg.Type)
			assert.Equal(t, "hello", msg.Message.Content)
			assert.Equal(t, alice.ID, msg.Message.SenderID)
			assert.Equal(t, "Alice", msg.Message.SenderName)
			assert.Equal(t, message.GeneralChannel, msg.Message.ChannelID)
		}
	})

	t.Run("direct message", func(t *testing.T) {
		writeWS(t, wsBob, map[string]string{"type": message.TypeChatMessage, "content": "psst", "recipient_id": alice.ID})
		for _, ws := range []*websocket.Conn{wsAlice, wsBob} {
			msg := readWS(t, ws)
			assert.Equal(t, "psst", msg.Message.Content)
			assert.Equal(t, alice.ID, msg.Message.RecipientID)
		}
	})

	t.Run("empty chat message", func(t *testing.T) {
		writeWS(t, wsAlice, map[string]string{"type": message.TypeChatMessage, "content": "  "})
		assert.Equal(t, wsMessage{Type: "error", Error: message.ErrEmptyMessage.Error()}, readWS(t, wsAlice))
	})

	t.Run("disconnect is announced", func(t *testing.T) {
		require.NoError(t, wsBob.Close())
		assert.Equal(t, wsMessage{Type: presence.TypeStatusUpdate, UserID: bob.ID, Status: presence.StatusOffline}, readWS(t, wsAlice))
		assert.Equal(t, presence.StatusOffline, env.hub.Status(bob.ID))
	})
}

func Test_presenceApi_setStatus(t *testing.T) {
	env := setup(t)
	admin := env.createEmployee(t, "Ada Admin", "ada@showtime.io", employee.RoleAdmin, true)
	alice := env.createEmployee(t, "Alice", "alice@showtime.io", employee.RoleMember, true)
	bob := env.createEmployee(t, "Bob", "bob@showtime.io", employee.RoleMember, true)
	path := "/api/users/" + alice.ID + "/status"

	env.run(t, []httpTest{
		{
			name: "Other employee", method: http.MethodPost, path: path, token: env.token(t, bob), body: []byte(`{"status":"busy"}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Invalid status", method: http.MethodPost, path: path, token: env.token(t, alice), body: []byte(`{"status":"offline"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"status": presence.ErrInvalidStatus.Error()}),
		},
		{
			name: "Not connected", method: http.MethodPost, path: path, token: env.token(t, alice), body: []byte(`{"status":"busy"}`),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: presence.ErrNotConnected.Error()}),
		},
	})

	srv := httptest.NewServer(env.app)
	t.Cleanup(srv.Close)
	ws, _, err := dialWS(t, srv, alice.ID, env.token(t, alice))
	require.NoError(t, err)
	readWS(t, ws) // snapshot

	env.run(t, []httpTest{
		{
			name: "Admin sets status", method: http.MethodPost, path: path, token: env.token(t, admin), body: []byte(`{"status":"busy"}`),
			wantData: marchallObj(t, presence.StatusUpdateMessage{Type: presence.TypeStatusUpdate, UserID: alice.ID, Status: presence.StatusBusy}),
		},
	})
	assert.Equal(t, wsMessage{Type: presence.TypeStatusUpdate, UserID: alice.ID, Status: presence.StatusBusy}, readWS(t, ws))

	// the employee views reflect the live status
	req, rec := newAuthRequest(http.MethodGet, "/api/employees/"+alice.ID, env.token(t, bob))
	env.app.ServeHTTP(rec, req)
	var got employee.Employee
	unmarshal(t, rec, &got)
	assert.Equal(t, presence.StatusBusy, got.Status)
}

func Test_presenceApi_heartbeat(t *testing.T) {
	env := setup(t, func(conf *core.Config) {
		conf.Presence.PongWait = 400 * time.Millisecond
		conf.Presence.PingPeriod = 150 * time.Millisecond
	})
	alice := env.createEmployee(t, "Alice", "alice@showtime.io", employee.RoleMember, true)
	bob := env.createEmployee(t, "Bob", "bob@showtime.io", employee.RoleMember, true)

	srv := httptest.NewServer(env.app)
	t.Cleanup(srv.Close)

	wsAlice, _, err := dialWS(t, srv, alice.ID, env.token(t, alice))
	require.NoError(t, err)
	assert.Equal(t, presence.TypeAllStatuses, readWS(t, wsAlice).Type)

	// bob never reads, so his client never answers a ping
	_, _, err = dialWS(t, srv, bob.ID, env.token(t, bob))
	require.NoError(t, err)
	assert.Equal(t, wsMessage{Type: presence.TypeStatusUpdate, UserID: bob.ID, Status: presence.StatusOnline}, readWS(t, wsAlice))

	// alice keeps answering pings while she waits
	assert.Equal(t, wsMessage{Type: presence.TypeStatusUpdate, UserID: bob.ID, Status: presence.StatusOffline}, readWS(t, wsAlice))
	assert.Eventually(t, func() bool {
		return env.hub.Status(bob.ID) == presence.StatusOffline
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, presence.StatusOnline, env.hub.Status(alice.ID))
}
