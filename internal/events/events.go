// Package events publishes table and order snapshots to an external message
// bus so other services (kitchen displays, delivery, reporting) can follow
// the floor without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Publisher delivers an encoded message on a topic. Implementations must be
// safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg []byte) error
	Close() error
}

// Envelope is the wire shape of every bus message.
type Envelope struct {
	Type       string          `json:"type"`
	TenantID   uuid.UUID       `json:"tenant_id"`
	TableID    *int32          `json:"table_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Topic returns the subject an event type is published on for a tenant,
// e.g. "mesa.<tenant>.table.updated". It doubles as the AMQP routing key.
func Topic(tenantID uuid.UUID, eventType string) string {
	return fmt.Sprintf("mesa.%s.%s", tenantID, eventType)
}

// Encode wraps data in an Envelope and marshals it.
func Encode(eventType string, tenantID uuid.UUID, tableID *int32, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return json.Marshal(Envelope{
		Type:       eventType,
		TenantID:   tenantID,
		TableID:    tableID,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
}

// Nop discards every message.
type Nop struct{}

func (Nop) Publish(context.Context, string, []byte) error { return nil }
func (Nop) Close() error                                  { return nil }
