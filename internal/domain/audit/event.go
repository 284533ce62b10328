// Package audit models the append-only, hash-chained trail of financial
// events and the outbox rows that relay them to the trail store.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types recorded in the audit trail
const (
	EventParticipantEnrolled = "participant.enrolled"
	EventInvestmentCreated   = "investment.created"
	EventCommissionRecorded  = "commission.recorded"
	EventCommissionPaid      = "commission.paid"
	EventCommissionRejected  = "commission.rejected"
	EventLedgerRejected      = "ledger.rejected"
	EventROIDistributed      = "roi.distributed"
	EventInvestmentCompleted = "investment.completed"
	EventInvestmentMatured   = "investment.matured"
	EventPairingCycleClosed  = "pairing.cycle_closed"
	EventJobAlert            = "job.alert"
)

// Event is one link of the hash chain. Hash covers the event content plus
// PreviousHash, so tampering with any stored event breaks verification of
// every later link.
type Event struct {
	ID            uuid.UUID       `json:"id" bson:"_id"`
	Sequence      int64           `json:"sequence" bson:"sequence"`
	EventType     string          `json:"event_type" bson:"event_type"`
	EntityType    string          `json:"entity_type" bson:"entity_type"`
	EntityID      string          `json:"entity_id" bson:"entity_id"`
	ParticipantID uuid.UUID       `json:"participant_id" bson:"participant_id"`
	Payload       json.RawMessage `json:"payload" bson:"payload"`
	CorrelationID string          `json:"correlation_id" bson:"correlation_id"`
	OccurredAt    time.Time       `json:"occurred_at" bson:"occurred_at"`
	PreviousHash  string          `json:"previous_hash" bson:"previous_hash"`
	Hash          string          `json:"hash" bson:"hash"`
}

// GenesisHash seeds the chain before any event exists
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// hashEnvelope fixes the fields and order covered by the hash
type hashEnvelope struct {
	ID            uuid.UUID       `json:"id"`
	Sequence      int64           `json:"sequence"`
	EventType     string          `json:"event_type"`
	EntityType    string          `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	ParticipantID uuid.UUID       `json:"participant_id"`
	Payload       json.RawMessage `json:"payload"`
	CorrelationID string          `json:"correlation_id"`
	OccurredAt    int64           `json:"occurred_at"` // Unix nanoseconds, immune to zone formatting
	PreviousHash  string          `json:"previous_hash"`
}

// ComputeHash returns the hex SHA-256 of the event's canonical form
func (e *Event) ComputeHash() (string, error) {
	env := hashEnvelope{
		ID:            e.ID,
		Sequence:      e.Sequence,
		EventType:     e.EventType,
		EntityType:    e.EntityType,
		EntityID:      e.EntityID,
		ParticipantID: e.ParticipantID,
		Payload:       e.Payload,
		CorrelationID: e.CorrelationID,
		OccurredAt:    e.OccurredAt.UnixNano(),
		PreviousHash:  e.PreviousHash,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Seal links the event to its predecessor and stamps its hash
func (e *Event) Seal(previousHash string, sequence int64) error {
	e.PreviousHash = previousHash
	e.Sequence = sequence
	h, err := e.ComputeHash()
	if err != nil {
		return err
	}
	e.Hash = h
	return nil
}

// ChainBreak describes the first verification failure found in a chain scan
type ChainBreak struct {
	Sequence int64     `json:"sequence"`
	EventID  uuid.UUID `json:"event_id"`
	Reason   string    `json:"reason"`
}

func (b ChainBreak) String() string {
	return fmt.Sprintf("audit chain broken at sequence %d (%s): %s", b.Sequence, b.EventID, b.Reason)
}

// ErrChainBroken is returned by verification endpoints alongside the break
var ErrChainBroken = errors.New("audit chain verification failed")

// VerifyChain walks events in sequence order and checks both the stored hash
// of each event and its link to the predecessor. Returns the first break
// found, or nil when the chain is intact.
func VerifyChain(events []*Event) *ChainBreak {
	prev := GenesisHash
	for _, ev := range events {
		if ev.PreviousHash != prev {
			return &ChainBreak{Sequence: ev.Sequence, EventID: ev.ID, Reason: "previous hash mismatch"}
		}
		computed, err := ev.ComputeHash()
		if err != nil {
			return &ChainBreak{Sequence: ev.Sequence, EventID: ev.ID, Reason: "hash computation failed: " + err.Error()}
		}
		if computed != ev.Hash {
			return &ChainBreak{Sequence: ev.Sequence, EventID: ev.ID, Reason: "stored hash mismatch"}
		}
		prev = ev.Hash
	}
	return nil
}

// NewEvent builds an unsealed event; Seal is applied by the trail writer,
// which alone knows the chain head.
func NewEvent(eventType, entityType, entityID string, participantID uuid.UUID, payload any, correlationID string) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:            uuid.New(),
		EventType:     eventType,
		EntityType:    entityType,
		EntityID:      entityID,
		ParticipantID: participantID,
		Payload:       raw,
		CorrelationID: correlationID,
		OccurredAt:    time.Now().UTC(),
	}, nil
}
