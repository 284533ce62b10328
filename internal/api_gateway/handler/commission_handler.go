package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bkcjanta/roi-project/internal/domain/commission"
)

// CommissionHandler handles HTTP requests for commission inspection
type CommissionHandler struct {
	commissionRepo commission.Repository
	logger         *slog.Logger
}

// NewCommissionHandler creates a new commission handler
func NewCommissionHandler(logger *slog.Logger, commissionRepo commission.Repository) *CommissionHandler {
	return &CommissionHandler{
		commissionRepo: commissionRepo,
		logger:         logger,
	}
}

// ListByRecipient returns a page of commissions earned by one participant,
// including rejected claims with their recorded reasons.
func (h *CommissionHandler) ListByRecipient(c *gin.Context) {
	idParam := c.Param("participantId")
	recipientID, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid participant ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid participant ID")
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	offset := (pagination.Page - 1) * pagination.PerPage
	commissions, err := h.commissionRepo.GetByRecipientID(c.Request.Context(), recipientID, pagination.PerPage, offset)
	if err != nil {
		h.logger.Error("Failed to list commissions", "recipient_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	total, err := h.commissionRepo.CountByRecipientID(c.Request.Context(), recipientID)
	if err != nil {
		h.logger.Error("Failed to count commissions", "recipient_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]CommissionResponse, 0, len(commissions))
	for _, comm := range commissions {
		responses = append(responses, mapCommissionToResponse(comm))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, pagination.Page, pagination.PerPage, int(total))
}

// mapCommissionToResponse maps a commission entity to a commission response DTO
func mapCommissionToResponse(comm *commission.Commission) CommissionResponse {
	response := CommissionResponse{
		ID:                  comm.ID.String(),
		RecipientID:         comm.RecipientID.String(),
		SourceParticipantID: comm.SourceParticipantID.String(),
		Type:                string(comm.Type),
		Level:               comm.Level,
		Amount:              comm.Amount.String(),
		Percentage:          comm.Percentage.String(),
		SourceAmount:        comm.SourceAmount.String(),
		Status:              string(comm.Status),
		RejectionReason:     comm.RejectionReason,
		LedgerRef:           comm.LedgerRef,
		CreatedAt:           comm.CreatedAt.Format(time.RFC3339),
	}
	if comm.PaidAt != nil {
		response.PaidAt = comm.PaidAt.Format(time.RFC3339)
	}
	return response
}
