// Package consumer handles binary volume events arriving from Kafka and
// applies them to the placement tree.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bkcjanta/roi-project/internal/domain/shared"
	"github.com/bkcjanta/roi-project/internal/platform/messaging/producers"
	"github.com/bkcjanta/roi-project/internal/referral"
)

// VolumeEventHandler handles incoming volume events from Kafka
type VolumeEventHandler struct {
	placement *referral.TreePlacementService
	producer  producers.DeadLetterPublisher
	logger    *slog.Logger
}

// NewVolumeEventHandler creates a new handler
func NewVolumeEventHandler(
	logger *slog.Logger,
	placement *referral.TreePlacementService,
	producer producers.DeadLetterPublisher,
) *VolumeEventHandler {
	return &VolumeEventHandler{
		placement: placement,
		producer:  producer,
		logger:    logger,
	}
}

// HandleMessage propagates one investment's volume up the binary tree.
// Unparseable messages go to the DLQ; processing failures are returned so the
// offset stays uncommitted and the event is redelivered. The walk runs in one
// transaction keyed by the event ID, so redelivery after a partial or
// committed walk never credits an ancestor twice.
func (h *VolumeEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.VolumeEvent
	if err := json.Unmarshal(value, &event); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal volume event from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
			} else {
				return nil // Parked; commit offset
			}
		}
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	if err := event.Validate(); err != nil {
		h.logger.Error("Dropping invalid volume event", "event_id", event.EventID.String(), "error", err)
		if h.producer != nil {
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, "invalid volume event: "+err.Error()); dlqErr == nil {
				return nil
			}
		}
		return err
	}

	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Received volume event",
		"event_id", event.EventID.String(),
		"participant_id", event.ParticipantID.String(),
		"amount", event.Amount.String(),
	)

	if err := h.placement.ApplyVolumeEvent(ctx, event); err != nil {
		logger.Error("Failed to propagate volume",
			"event_id", event.EventID.String(),
			"participant_id", event.ParticipantID.String(),
			"error", err,
		)
		return fmt.Errorf("propagating volume for event %s failed: %w", event.EventID.String(), err)
	}

	logger.Info("Volume propagated", "event_id", event.EventID.String())
	return nil
}
