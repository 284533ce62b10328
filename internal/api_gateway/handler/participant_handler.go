package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bkcjanta/roi-project/internal/api_gateway/middleware"
	"github.com/bkcjanta/roi-project/internal/api_gateway/service"
	"github.com/bkcjanta/roi-project/internal/domain/participant"
)

// ParticipantHandler handles HTTP requests for enrollment and structure inspection
type ParticipantHandler struct {
	enrollmentService service.EnrollmentService
	logger            *slog.Logger
}

// NewParticipantHandler creates a new participant handler
func NewParticipantHandler(logger *slog.Logger, enrollmentService service.EnrollmentService) *ParticipantHandler {
	return &ParticipantHandler{
		enrollmentService: enrollmentService,
		logger:            logger,
	}
}

// Enroll handles creation of a new participant under an optional sponsor code
func (h *ParticipantHandler) Enroll(c *gin.Context) {
	var req EnrollParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	p, err := h.enrollmentService.Enroll(c.Request.Context(), req.ReferralCode, req.SponsorCode, middleware.GetCorrelationID(c))
	if err != nil {
		switch {
		case errors.Is(err, participant.ErrDuplicateReferralCode):
			RespondConflict(c, "Referral code already in use")
		case errors.Is(err, participant.ErrSponsorNotFound):
			RespondBadRequest(c, "Sponsor code not found")
		case errors.Is(err, participant.TreeIntegrityError{}):
			h.logger.Error("Placement failed on tree integrity", "error", err)
			RespondUnprocessable(c, "Binary placement failed")
		default:
			h.logger.Error("Failed to enroll participant", "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, mapParticipantToResponse(p))
}

// GetTree returns a participant with its leg counters and direct binary children
func (h *ParticipantHandler) GetTree(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	view, err := h.enrollmentService.GetTree(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, participant.ErrParticipantNotFound{}) {
			RespondNotFound(c, "Participant not found")
			return
		}
		h.logger.Error("Failed to get tree", "id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	response := TreeResponse{
		Participant: mapParticipantToResponse(view.Participant),
		Team:        mapTeamToResponse(view.Participant),
	}
	if view.LeftChild != nil {
		left := mapParticipantToResponse(view.LeftChild)
		response.LeftChild = &left
	}
	if view.RightChild != nil {
		right := mapParticipantToResponse(view.RightChild)
		response.RightChild = &right
	}

	RespondOK(c, response)
}

// GetUpline returns the frozen sponsor chain, level 1 first
func (h *ParticipantHandler) GetUpline(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	chain, err := h.enrollmentService.GetUpline(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, participant.ErrParticipantNotFound{}) {
			RespondNotFound(c, "Participant not found")
			return
		}
		h.logger.Error("Failed to get upline", "id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	entries := make([]UplineEntryResponse, 0, len(chain))
	for _, entry := range chain {
		entries = append(entries, UplineEntryResponse{
			ParticipantID: entry.ParticipantID.String(),
			Level:         entry.Level,
		})
	}

	RespondOK(c, entries)
}

func (h *ParticipantHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid participant ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid participant ID")
		return uuid.Nil, false
	}
	return id, true
}

// mapParticipantToResponse maps a participant entity to a participant response DTO
func mapParticipantToResponse(p *participant.Participant) ParticipantResponse {
	response := ParticipantResponse{
		ID:             p.ID.String(),
		ReferralCode:   p.ReferralCode,
		BinaryPosition: string(p.BinaryPosition),
		Status:         string(p.Status),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
	if p.SponsorID != uuid.Nil {
		response.SponsorID = p.SponsorID.String()
	}
	if p.BinaryParentID != uuid.Nil {
		response.BinaryParentID = p.BinaryParentID.String()
	}
	return response
}

// mapTeamToResponse maps a participant's binary counters to a team response DTO
func mapTeamToResponse(p *participant.Participant) TeamResponse {
	return TeamResponse{
		LeftCount:     p.BinaryTeam.LeftCount,
		RightCount:    p.BinaryTeam.RightCount,
		LeftBusiness:  p.BinaryTeam.LeftBusiness.String(),
		RightBusiness: p.BinaryTeam.RightBusiness.String(),
		CarryLeft:     p.BinaryTeam.CarryLeft.String(),
		CarryRight:    p.BinaryTeam.CarryRight.String(),
		TotalPairs:    p.BinaryTeam.TotalPairs,
	}
}
