// Package presence tracks which employees are connected and broadcasts their status.
//
// A Hub owns a connection Registry (at most one live connection per employee) and a
// presence Store (employee id -> status). Every mutation of either is applied and then
// broadcast while holding the Hub lock, so no client is ever told about a status that has
// not been committed, and each client receives messages in commit order.
package presence

import (
	"strings"

	"github.com/pkg/errors"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusBusy    Status = "busy"
)

var (
	ErrInvalidStatus = errors.New("invalid status, must be one of: online, busy")
	ErrNotConnected  = errors.New("employee is not connected")
	ErrHubClosed     = errors.New("presence hub closed")
)

// ParseStatus parses a status a client may request for itself.
// Offline is never accepted: it only results from a disconnect.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusOnline, StatusBusy:
		return st, nil
	default:
		return "", ErrInvalidStatus
	}
}

// IsLive reports whether the status implies a live connection.
func (s Status) IsLive() bool {
	return s == StatusOnline || s == StatusBusy
}
