package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bkcjanta/roi-project/internal/domain/shared"
)

// OutboxRow is written inside the same database transaction as the financial
// mutation it describes. A poller relays pending rows to the trail store,
// sealing the hash chain in relay order.
type OutboxRow struct {
	ID            uuid.UUID          `json:"id"`
	EventType     string             `json:"event_type"`
	EntityType    string             `json:"entity_type"`
	EntityID      string             `json:"entity_id"`
	ParticipantID uuid.UUID          `json:"participant_id"`
	Payload       json.RawMessage    `json:"payload"`
	CorrelationID string             `json:"correlation_id"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                `json:"attempts"`
	LastError     string             `json:"last_error,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	RelayedAt     *time.Time         `json:"relayed_at,omitempty"`
}

// NewOutboxRow captures an event for asynchronous relay
func NewOutboxRow(eventType, entityType, entityID string, participantID uuid.UUID, payload any, correlationID string) (*OutboxRow, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxRow{
		ID:            uuid.New(),
		EventType:     eventType,
		EntityType:    entityType,
		EntityID:      entityID,
		ParticipantID: participantID,
		Payload:       raw,
		CorrelationID: correlationID,
		Status:        shared.OutboxStatusPending,
		CreatedAt:     time.Now(),
	}, nil
}

// ToEvent converts a relayed outbox row into an unsealed trail event
func (r *OutboxRow) ToEvent() *Event {
	return &Event{
		ID:            r.ID,
		EventType:     r.EventType,
		EntityType:    r.EntityType,
		EntityID:      r.EntityID,
		ParticipantID: r.ParticipantID,
		Payload:       r.Payload,
		CorrelationID: r.CorrelationID,
		OccurredAt:    r.CreatedAt.UTC(),
	}
}
