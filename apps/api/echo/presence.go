package echoapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/auth"
	"github.com/showtime/portal/core/employee"
	"github.com/showtime/portal/core/message"
	"github.com/showtime/portal/core/presence"
)

const (
	typeError      = "error"
	maxMessageSize = 64 << 10
)

var (
	errConnClosed     = errors.New("connection closed")
	errSendBufferFull = errors.New("send buffer full")
)

type (
	// incoming covers every client message; Type selects the fields that matter.
	incoming struct {
		Type        string `json:"type"`
		Status      string `json:"status"`
		Content     string `json:"content"`
		ChannelID   string `json:"channel_id"`
		RecipientID string `json:"recipient_id"`
	}

	errorMessage struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}

	SetStatusRequest struct {
		Status string `json:"status"`
	}
)

// wsConn adapts a websocket connection to presence.Conn. Writes go through a buffered
// channel drained by writePump, so Send never blocks on the network.
type wsConn struct {
	ws        *websocket.Conn
	conf      core.PresenceConfig
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

var _ presence.Conn = (*wsConn)(nil)

func newWSConn(ws *websocket.Conn, conf core.PresenceConfig) *wsConn {
	return &wsConn{
		ws:   ws,
		conf: conf,
		send: make(chan []byte, conf.SendBuffer),
		done: make(chan struct{}),
	}
}

func (c *wsConn) Send(payload []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		return errSendBufferFull
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// writePump writes queued messages and pings, and tears the socket down once the conn is closed.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.conf.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.conf.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.conf.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.conf.WriteWait),
			)
			return
		}
	}
}

// readPump hands every incoming message to handle until the peer goes away or stops
// answering pings for longer than PongWait.
func (c *wsConn) readPump(handle func(data []byte)) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.conf.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.conf.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		handle(data)
	}
}

type presenceApi struct {
	hub      *presence.Hub
	empSvc   *employee.Service
	msgSvc   *message.Service
	conf     core.PresenceConfig
	upgrader websocket.Upgrader
	logger   core.Logger
}

func registerPresenceAPI(g *echo.Group, authed echo.MiddlewareFunc, deps ServerDeps) {
	origins := make(map[string]bool, len(deps.Conf.AllowedOrigins))
	for _, o := range deps.Conf.AllowedOrigins {
		origins[o] = true
	}

	api := presenceApi{
		hub:    deps.Hub,
		empSvc: deps.EmployeeSvc,
		msgSvc: deps.MessageSvc,
		conf:   deps.Conf.Presence,
		logger: deps.WSLogger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
	}

	ug := g.Group("/users", authed)
	ug.GET("/status", api.statuses)
	ug.POST("/:id/status", api.setStatus, selfOrAdminMiddleware())

	g.GET("/ws/:id", api.connect, authed)
}

func (api *presenceApi) statuses(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.hub.Statuses())
}

func (api *presenceApi) setStatus(ctx echo.Context) error {
	var data SetStatusRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetStatusRequest")
	}
	status, err := presence.ParseStatus(data.Status)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "status", Error: err.Error()})
	}

	id := ctx.Param("id")
	if err = api.hub.SetStatus(id, status); err != nil {
		return errors.Wrap(err, "setting status")
	}
	return ctx.JSON(http.StatusOK, presence.StatusUpdateMessage{Type: presence.TypeStatusUpdate, UserID: id, Status: status})
}

// connect upgrades the request and serves the employee's connection until it closes.
// The path id must be the token's subject.
func (api *presenceApi) connect(ctx echo.Context) error {
	id := ctx.Param("id")
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if claims.Subject != id {
		return errHttpForbidden
	}
	emp, err := getContextEmployee(ctx, api.empSvc)
	if err != nil {
		return errors.Wrap(err, "getting context employee")
	}
	if !emp.IsActive {
		return auth.ErrAccountDeactivated
	}

	ws, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader already replied
		api.logger.Warn(fmt.Sprintf("ws: upgrading connection of %s: %v", id, err), err)
		return nil
	}

	conn := newWSConn(ws, api.conf)
	go conn.writePump()
	defer func() { _ = conn.Close() }()

	if err = api.hub.Connect(id, conn); err != nil {
		api.logger.Warn(fmt.Sprintf("ws: connecting %s: %v", id, err), err)
		return nil
	}
	defer api.hub.Disconnect(id, conn)

	from := message.Sender{ID: emp.ID, Name: emp.Name}
	conn.readPump(func(data []byte) {
		api.handle(conn, from, data)
	})
	return nil
}

func (api *presenceApi) handle(conn *wsConn, from message.Sender, data []byte) {
	var in incoming
	if err := json.Unmarshal(data, &in); err != nil {
		api.reply(conn, "malformed message")
		return
	}

	switch in.Type {
	case presence.TypeGetAllStatuses:
		if err := api.hub.SendSnapshot(from.ID); err != nil {
			api.logger.Warn(fmt.Sprintf("ws: sending snapshot to %s: %v", from.ID, err), err)
		}
	case presence.TypeSetStatus:
		status, err := presence.ParseStatus(in.Status)
		if err == nil {
			err = api.hub.SetStatus(from.ID, status)
		}
		if err != nil {
			api.reply(conn, err.Error())
		}
	case message.TypeChatMessage:
		ctx, cancel := context.WithTimeout(context.Background(), api.conf.WriteWait)
		defer cancel()
		_, err := api.msgSvc.Send(ctx, from, message.NewMessage{
			Content:     in.Content,
			ChannelID:   in.ChannelID,
			RecipientID: in.RecipientID,
		})
		if err != nil {
			var valErr *core.ValidationError
			if errors.As(err, &valErr) {
				api.reply(conn, valErr.Error())
				return
			}
			api.logger.Error(fmt.Sprintf("ws: sending chat message of %s", from.ID), err)
			api.reply(conn, "message could not be sent")
		}
	default:
		api.reply(conn, fmt.Sprintf("unknown message type %q", in.Type))
	}
}

func (api *presenceApi) reply(conn *wsConn, msg string) {
	b, _ := json.Marshal(errorMessage{Type: typeError, Error: msg})
	_ = conn.Send(b)
}
