package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bkcjanta/roi-project/internal/api_gateway/middleware"
	"github.com/bkcjanta/roi-project/internal/api_gateway/service"
	"github.com/bkcjanta/roi-project/internal/domain/investment"
	"github.com/bkcjanta/roi-project/internal/domain/participant"
	"github.com/bkcjanta/roi-project/internal/domain/shared"
)

// InvestmentHandler handles HTTP requests for investment operations
type InvestmentHandler struct {
	investmentService service.InvestmentService
	logger            *slog.Logger
}

// NewInvestmentHandler creates a new investment handler
func NewInvestmentHandler(logger *slog.Logger, investmentService service.InvestmentService) *InvestmentHandler {
	return &InvestmentHandler{
		investmentService: investmentService,
		logger:            logger,
	}
}

// Create handles creation of a new investment with synchronous commission fan-out
func (h *InvestmentHandler) Create(c *gin.Context) {
	var req CreateInvestmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	participantID, err := uuid.Parse(req.ParticipantID)
	if err != nil {
		RespondBadRequest(c, "Invalid participant ID")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		RespondBadRequest(c, "Invalid amount")
		return
	}

	frequency := shared.PayoutFrequency(req.Frequency)
	if req.Frequency == "" {
		frequency = shared.FrequencyDaily
	}

	inv, err := h.investmentService.CreateInvestment(c.Request.Context(), participantID, amount, frequency, req.DurationMonths, middleware.GetCorrelationID(c))
	if err != nil {
		switch {
		case errors.Is(err, participant.ErrParticipantNotFound{}):
			RespondNotFound(c, "Participant not found")
		case errors.Is(err, service.ErrParticipantInactive):
			RespondUnprocessable(c, "Participant is not active")
		case errors.Is(err, investment.ErrInvalidAmount):
			RespondBadRequest(c, "Investment amount must be positive")
		default:
			h.logger.Error("Failed to create investment", "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, mapInvestmentToResponse(inv))
}

// ListByParticipant retrieves a paginated list of a participant's investments
func (h *InvestmentHandler) ListByParticipant(c *gin.Context) {
	idParam := c.Param("participantId")
	participantID, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid participant ID")
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	investments, err := h.investmentService.GetInvestmentsByParticipant(c.Request.Context(), participantID, pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to list investments", "participant_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]InvestmentResponse, 0, len(investments))
	for _, inv := range investments {
		responses = append(responses, mapInvestmentToResponse(inv))
	}

	RespondOK(c, responses)
}

// mapInvestmentToResponse maps an investment entity to an investment response DTO
func mapInvestmentToResponse(inv *investment.Investment) InvestmentResponse {
	return InvestmentResponse{
		ID:             inv.ID.String(),
		ParticipantID:  inv.ParticipantID.String(),
		Amount:         inv.Amount.String(),
		DailyRate:      inv.DailyRate.String(),
		TotalCap:       inv.TotalCap.String(),
		TotalPaid:      inv.TotalPaid.String(),
		DaysCompleted:  inv.DaysCompleted,
		Frequency:      string(inv.Frequency),
		NextPayoutDate: inv.NextPayoutDate.Format(time.RFC3339),
		MaturityDate:   inv.MaturityDate.Format(time.RFC3339),
		Status:         string(inv.Status),
		CreatedAt:      inv.CreatedAt.Format(time.RFC3339),
	}
}
