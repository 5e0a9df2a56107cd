package presence

import (
	"encoding/json"
	"time"
)

// Message types exchanged over a connection.
const (
	TypeGetAllStatuses = "get_all_statuses" // client -> server
	TypeSetStatus      = "set_status"       // client -> server
	TypeAllStatuses    = "all_statuses"     // server -> client
	TypeStatusUpdate   = "status_update"    // server -> clients
)

// EventStatusChanged is the routing key of the event published for every committed status change.
const EventStatusChanged = "presence.status_changed"

type (
	// Envelope is used to peek at the type of an incoming client message.
	Envelope struct {
		Type string `json:"type"`
	}

	SetStatusMessage struct {
		Type   string `json:"type"`
		Status string `json:"status"`
	}

	AllStatusesMessage struct {
		Type     string            `json:"type"`
		Statuses map[string]Status `json:"statuses"`
	}

	StatusUpdateMessage struct {
		Type   string `json:"type"`
		UserID string `json:"user_id"`
		Status Status `json:"status"`
	}

	// StatusChange is the event payload published for every committed status change.
	StatusChange struct {
		EmployeeID string    `json:"employee_id"`
		Status     Status    `json:"status"`
		Previous   Status    `json:"previous"`
		ChangedAt  time.Time `json:"changed_at"`
	}
)

func marshalAllStatuses(statuses map[string]Status) []byte {
	b, _ := json.Marshal(AllStatusesMessage{Type: TypeAllStatuses, Statuses: statuses})
	return b
}

func marshalStatusUpdate(id string, status Status) []byte {
	b, _ := json.Marshal(StatusUpdateMessage{Type: TypeStatusUpdate, UserID: id, Status: status})
	return b
}
