package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bkcjanta/roi-project/internal/domain/ledger"
	"github.com/bkcjanta/roi-project/internal/domain/wallet"
	"github.com/bkcjanta/roi-project/internal/treasury"
)

// WalletHandler handles HTTP requests for wallet and ledger inspection
type WalletHandler struct {
	ledgerService *treasury.LedgerService
	logger        *slog.Logger
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(logger *slog.Logger, ledgerService *treasury.LedgerService) *WalletHandler {
	return &WalletHandler{
		ledgerService: ledgerService,
		logger:        logger,
	}
}

// GetByParticipant returns the named balances of one participant
func (h *WalletHandler) GetByParticipant(c *gin.Context) {
	participantID, ok := h.parseParticipantID(c)
	if !ok {
		return
	}

	w, err := h.ledgerService.GetWallet(c.Request.Context(), participantID)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound{}) {
			RespondNotFound(c, "Wallet not found")
			return
		}
		h.logger.Error("Failed to get wallet", "participant_id", participantID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapWalletToResponse(w))
}

// GetTransactions returns a page of a participant's ledger history
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	participantID, ok := h.parseParticipantID(c)
	if !ok {
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	offset := (pagination.Page - 1) * pagination.PerPage
	entries, total, err := h.ledgerService.GetEntries(c.Request.Context(), participantID, pagination.PerPage, offset)
	if err != nil {
		h.logger.Error("Failed to get ledger entries", "participant_id", participantID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]LedgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, mapEntryToResponse(entry))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, pagination.Page, pagination.PerPage, int(total))
}

func (h *WalletHandler) parseParticipantID(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("participantId")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid participant ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid participant ID")
		return uuid.Nil, false
	}
	return id, true
}

// mapWalletToResponse maps a wallet entity to a wallet response DTO
func mapWalletToResponse(w *wallet.Wallet) WalletResponse {
	return WalletResponse{
		ParticipantID:   w.ParticipantID.String(),
		MainBalance:     w.MainBalance.String(),
		ROIBalance:      w.ROIBalance.String(),
		ReferralBalance: w.ReferralBalance.String(),
		LevelBalance:    w.LevelBalance.String(),
		BinaryBalance:   w.BinaryBalance.String(),
		HoldBalance:     w.HoldBalance.String(),
		TotalEarnings:   w.TotalEarnings.String(),
		TotalInvested:   w.TotalInvested.String(),
		UpdatedAt:       w.UpdatedAt.Format(time.RFC3339),
	}
}

// mapEntryToResponse maps a ledger entry to a ledger entry response DTO
func mapEntryToResponse(entry *ledger.Entry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:            entry.ID.String(),
		Wallet:        string(entry.Wallet),
		Direction:     string(entry.Direction),
		Amount:        entry.Amount.String(),
		BalanceBefore: entry.BalanceBefore.String(),
		BalanceAfter:  entry.BalanceAfter.String(),
		Reason:        entry.Reason,
		SourceRef:     entry.SourceRef,
		Status:        string(entry.Status),
		CreatedAt:     entry.CreatedAt.Format(time.RFC3339),
	}
}
