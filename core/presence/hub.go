package presence

import (
	"fmt"
	"sync"

	"github.com/showtime/portal/core"
)

type target struct {
	id   string
	conn Conn
}

// Hub translates registry and store mutations into messages delivered to every
// registered connection.
type Hub struct {
	mu       sync.Mutex // serializes mutate-then-broadcast sequences
	closed   bool
	registry *Registry
	store    *Store
	events   core.EventPublisher
	logger   core.Logger
}

// NewHub returns a Hub. events may be nil.
func NewHub(registry *Registry, store *Store, events core.EventPublisher, logger core.Logger) *Hub {
	return &Hub{
		registry: registry,
		store:    store,
		events:   events,
		logger:   logger,
	}
}

// Connect registers conn for id, marks id online, sends the full snapshot to conn and
// then announces id to every other connection. A connection previously registered for
// id is closed; its later Disconnect is a no-op.
func (h *Hub) Connect(id string, conn Conn) error {
	var changes []StatusChange
	defer func() { h.publish(changes) }()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		_ = conn.Close()
		return ErrHubClosed
	}

	if old := h.registry.Register(id, conn); old != nil {
		h.logger.Info(fmt.Sprintf("presence: %s reconnected, previous connection closed", id))
	}
	prev := h.store.SetStatus(id, StatusOnline)
	changes = append(changes, h.change(id, StatusOnline, prev))

	if err := conn.Send(marshalAllStatuses(h.store.GetAll())); err != nil {
		h.logger.Warn(fmt.Sprintf("presence: sending snapshot to %s: %v", id, err), err)
		h.dropLocked(&changes, target{id, conn})
		return err
	}

	failed := h.broadcastLocked(marshalStatusUpdate(id, StatusOnline), id)
	h.dropLocked(&changes, failed...)

	h.logger.Info(fmt.Sprintf("presence: %s connected, %d live connections", id, h.registry.Len()))
	return nil
}

// Disconnect unregisters conn for id and announces id offline. It does nothing when conn
// is no longer the registered connection for id (superseded by a reconnect or already dropped).
func (h *Hub) Disconnect(id string, conn Conn) {
	var changes []StatusChange
	defer func() { h.publish(changes) }()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropLocked(&changes, target{id, conn})
}

// SetStatus changes the status of a connected employee and announces it to every
// connection, including the employee's own.
func (h *Hub) SetStatus(id string, status Status) error {
	if !status.IsLive() {
		return ErrInvalidStatus
	}

	var changes []StatusChange
	defer func() { h.publish(changes) }()

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.registry.Lookup(id); !ok {
		return ErrNotConnected
	}
	prev := h.store.SetStatus(id, status)
	if prev == status {
		return nil
	}
	changes = append(changes, h.change(id, status, prev))

	failed := h.broadcastLocked(marshalStatusUpdate(id, status), "")
	h.dropLocked(&changes, failed...)
	return nil
}

// SendSnapshot sends the full status snapshot to id's connection.
func (h *Hub) SendSnapshot(id string) error {
	return h.SendTo(id, marshalAllStatuses(h.store.GetAll()))
}

// SendTo delivers payload to id's connection only.
func (h *Hub) SendTo(id string, payload []byte) error {
	var changes []StatusChange
	defer func() { h.publish(changes) }()

	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.registry.Lookup(id)
	if !ok {
		return ErrNotConnected
	}
	if err := conn.Send(payload); err != nil {
		h.dropLocked(&changes, target{id, conn})
		return err
	}
	return nil
}

// Broadcast delivers payload to every connection except exceptID's (pass "" to include all).
func (h *Hub) Broadcast(payload []byte, exceptID string) {
	var changes []StatusChange
	defer func() { h.publish(changes) }()

	h.mu.Lock()
	defer h.mu.Unlock()

	failed := h.broadcastLocked(payload, exceptID)
	h.dropLocked(&changes, failed...)
}

// Status returns the current status of id.
func (h *Hub) Status(id string) Status {
	return h.store.GetStatus(id)
}

// Statuses returns the full snapshot.
func (h *Hub) Statuses() map[string]Status {
	return h.store.GetAll()
}

// Close closes every connection and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, conn := range h.registry.Connections() {
		if h.registry.Unregister(id, conn) {
			_ = conn.Close()
			h.store.SetStatus(id, StatusOffline)
		}
	}
}

// broadcastLocked sends payload to every connection but exceptID's and returns those that failed.
// A failing destination never prevents delivery to the others.
func (h *Hub) broadcastLocked(payload []byte, exceptID string) []target {
	var failed []target
	for id, conn := range h.registry.Connections() {
		if id == exceptID {
			continue
		}
		if err := conn.Send(payload); err != nil {
			h.logger.Warn(fmt.Sprintf("presence: sending to %s: %v", id, err), err)
			failed = append(failed, target{id, conn})
		}
	}
	return failed
}

// dropLocked unregisters and closes the given connections, marks their employees offline and
// announces it. Destinations failing during that announcement are dropped in turn.
func (h *Hub) dropLocked(changes *[]StatusChange, targets ...target) {
	queue := targets
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]

		if !h.registry.Unregister(t.id, t.conn) {
			continue // superseded or already dropped
		}
		_ = t.conn.Close()
		prev := h.store.SetStatus(t.id, StatusOffline)
		*changes = append(*changes, h.change(t.id, StatusOffline, prev))

		queue = append(queue, h.broadcastLocked(marshalStatusUpdate(t.id, StatusOffline), t.id)...)
		h.logger.Info(fmt.Sprintf("presence: %s disconnected, %d live connections", t.id, h.registry.Len()))
	}
}

func (h *Hub) change(id string, status, prev Status) StatusChange {
	return StatusChange{EmployeeID: id, Status: status, Previous: prev, ChangedAt: core.NowFunc()}
}

// publish runs outside the hub lock: a slow broker must not delay deliveries.
func (h *Hub) publish(changes []StatusChange) {
	if h.events == nil {
		return
	}
	for _, c := range changes {
		if err := h.events.Publish(EventStatusChanged, c); err != nil {
			h.logger.Warn(fmt.Sprintf("presence: publishing status change of %s: %v", c.EmployeeID, err), err)
		}
	}
}
