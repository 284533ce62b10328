package handler

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bkcjanta/roi-project/internal/api_gateway/service"
	"github.com/bkcjanta/roi-project/internal/domain/schedjob"
)

// AdminHandler handles operational HTTP requests for job control and audit
// chain verification.
type AdminHandler struct {
	adminService service.AdminService
	logger       *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(logger *slog.Logger, adminService service.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		logger:       logger,
	}
}

// RunJob triggers a registered job immediately. Contention with a run already
// in progress is reported as 202 because the work is happening either way.
func (h *AdminHandler) RunJob(c *gin.Context) {
	name := c.Param("name")

	err := h.adminService.RunJob(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, schedjob.ErrLockContention{}) {
			RespondAccepted(c, gin.H{"job": name, "status": "already running"})
			return
		}
		if strings.HasPrefix(err.Error(), "unknown job") {
			RespondNotFound(c, "Unknown job: "+name)
			return
		}
		h.logger.Error("On-demand job run failed", "job", name, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, gin.H{"job": name, "status": "completed"})
}

// ListJobs returns all job coordination records
func (h *AdminHandler) ListJobs(c *gin.Context) {
	jobs, err := h.adminService.ListJobs(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list jobs", "error", err)
		RespondInternalError(c)
		return
	}
	RespondOK(c, jobs)
}

// ListExecutions returns a job's retained run history, most recent first
func (h *AdminHandler) ListExecutions(c *gin.Context) {
	name := c.Param("name")

	records, err := h.adminService.ListExecutions(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, schedjob.ErrJobNotFound{}) {
			RespondNotFound(c, "Unknown job: "+name)
			return
		}
		h.logger.Error("Failed to list executions", "job", name, "error", err)
		RespondInternalError(c)
		return
	}
	RespondOK(c, records)
}

// VerifyAudit walks the audit chain and reports the first divergence found
func (h *AdminHandler) VerifyAudit(c *gin.Context) {
	result, err := h.adminService.VerifyAuditChain(c.Request.Context())
	if err != nil {
		h.logger.Error("Audit chain verification errored", "error", err)
		RespondInternalError(c)
		return
	}

	response := ChainVerificationResponse{
		Intact:        result.Break == nil,
		EventsChecked: result.EventsChecked,
	}
	if result.Break != nil {
		response.BreakSequence = result.Break.Sequence
		response.BreakEventID = result.Break.EventID.String()
		response.BreakReason = result.Break.Reason
	}

	RespondOK(c, response)
}
