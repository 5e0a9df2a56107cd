// Package eventsvc publishes domain events (presence changes, meetings, announcements,
// shared files, attendance uploads) for other services to consume.
package eventsvc

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/showtime/portal/core"
)

type (
	Meta struct {
		ID         string    `json:"id"`
		Type       string    `json:"type"`
		Source     string    `json:"source"`
		OccurredAt time.Time `json:"occurred_at"`
	}

	// Envelope is the JSON body of every published event.
	Envelope struct {
		Meta Meta            `json:"meta"`
		Data json.RawMessage `json:"data"`
	}
)

func newEnvelope(source, routingKey string, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Meta: Meta{
			ID:         uuid.NewString(),
			Type:       routingKey,
			Source:     source,
			OccurredAt: core.NowFunc(),
		},
		Data: data,
	}, nil
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

var _ core.EventPublisher = NoopPublisher{}

func (NoopPublisher) Publish(string, interface{}) error { return nil }
