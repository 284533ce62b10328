package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bkcjanta/roi-project/internal/api_gateway/handler"
	"github.com/bkcjanta/roi-project/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	participantHandler *handler.ParticipantHandler,
	investmentHandler *handler.InvestmentHandler,
	walletHandler *handler.WalletHandler,
	commissionHandler *handler.CommissionHandler,
	adminHandler *handler.AdminHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Enrollment and referral structure inspection
		participants := v1.Group("/participants")
		{
			participants.POST("", participantHandler.Enroll)
			participants.GET("/:id/tree", participantHandler.GetTree)
			participants.GET("/:id/upline", participantHandler.GetUpline)
		}

		// Investment operations
		investments := v1.Group("/investments")
		{
			investments.POST("", investmentHandler.Create)
			investments.GET("/participant/:participantId", investmentHandler.ListByParticipant)
		}

		// Wallet balances and ledger history
		wallets := v1.Group("/wallets")
		{
			wallets.GET("/:participantId", walletHandler.GetByParticipant)
			wallets.GET("/:participantId/transactions", walletHandler.GetTransactions)
		}

		// Commission inspection
		commissions := v1.Group("/commissions")
		{
			commissions.GET("/:participantId", commissionHandler.ListByRecipient)
		}

		// Operational endpoints
		admin := v1.Group("/admin")
		{
			admin.POST("/jobs/:name/run", adminHandler.RunJob)
			admin.GET("/jobs", adminHandler.ListJobs)
			admin.GET("/jobs/:name/executions", adminHandler.ListExecutions)
			admin.GET("/audit/verify", adminHandler.VerifyAudit)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
