package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bkcjanta/roi-project/internal/api_gateway"
	"github.com/bkcjanta/roi-project/internal/api_gateway/service"
	"github.com/bkcjanta/roi-project/internal/config"
	"github.com/bkcjanta/roi-project/internal/data/mongo"
	"github.com/bkcjanta/roi-project/internal/data/postgres"
	"github.com/bkcjanta/roi-project/internal/domain/schedjob"
	"github.com/bkcjanta/roi-project/internal/logger"
	"github.com/bkcjanta/roi-project/internal/platform/messaging/producers"
	"github.com/bkcjanta/roi-project/internal/platform/persistence"
	"github.com/bkcjanta/roi-project/internal/referral"
	"github.com/bkcjanta/roi-project/internal/scheduler"
	"github.com/bkcjanta/roi-project/internal/settings"
	"github.com/bkcjanta/roi-project/internal/treasury"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer dispatching binary volume events
	volumeProducer, err := producers.NewVolumeEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize volume event producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	participantRepo := postgres.NewParticipantRepository(log, postgresDB)
	walletRepo := postgres.NewWalletRepository(log, postgresDB)
	ledgerRepo := postgres.NewLedgerRepository(log, postgresDB)
	investmentRepo := postgres.NewInvestmentRepository(log, postgresDB)
	commissionRepo := postgres.NewCommissionRepository(log, postgresDB)
	pairingRepo := postgres.NewPairingRepository(log, postgresDB)
	settingsRepo := postgres.NewSettingsRepository(log, postgresDB)
	jobRepo := postgres.NewSchedJobRepository(log, postgresDB)
	outboxRepo := postgres.NewAuditOutboxRepository(log, postgresDB)
	volumeEventLog := postgres.NewVolumeEventLog(log, postgresDB)
	trailRepo := mongo.NewAuditTrailRepository(log, mongoDB.Database())

	// Initialize core services
	settingsService := settings.NewService(log, settingsRepo)
	placementService := referral.NewTreePlacementService(log, postgresDB, participantRepo, volumeEventLog)
	ledgerService := treasury.NewLedgerService(log, postgresDB, walletRepo, ledgerRepo, outboxRepo)
	commissionEngine := referral.NewCommissionEngine(log, postgresDB, participantRepo, investmentRepo, commissionRepo, ledgerService, outboxRepo)

	// The gateway registers the distribution jobs without starting cron so the
	// admin run-now endpoint works; the database run-lock keeps a manual run
	// and a worker cron run from overlapping.
	for _, name := range []string{schedjob.JobDailyROI, schedjob.JobBinaryPairing} {
		if err := jobRepo.Ensure(appCtx, name); err != nil {
			log.Error("Failed to ensure job coordination record", "job", name, "error", err)
			os.Exit(1)
		}
	}

	runner := scheduler.NewLockedRunner(log, jobRepo, outboxRepo, &cfg.Scheduler)
	sched := scheduler.New(log, runner)
	roiJob := scheduler.NewROIDistributionJob(log, postgresDB, investmentRepo, ledgerService, outboxRepo, cfg.WorkerPool.Size)
	pairingJob := scheduler.NewBinaryPairingJob(log, postgresDB, participantRepo, pairingRepo, commissionEngine, settingsService, outboxRepo, cfg.WorkerPool.Size)
	if err := sched.Register(cfg.Scheduler.ROISchedule, roiJob); err != nil {
		log.Error("Failed to register ROI distribution job", "error", err)
		os.Exit(1)
	}
	if err := sched.Register(cfg.Scheduler.PairingSchedule, pairingJob); err != nil {
		log.Error("Failed to register binary pairing job", "error", err)
		os.Exit(1)
	}

	// Initialize API services
	enrollmentService := service.NewEnrollmentService(log, postgresDB, participantRepo, walletRepo, outboxRepo, placementService)
	investmentService := service.NewInvestmentService(log, postgresDB, participantRepo, investmentRepo, walletRepo, outboxRepo, commissionEngine, settingsService, volumeProducer)
	adminService := service.NewAdminService(log, sched, jobRepo, trailRepo)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, enrollmentService, investmentService, adminService, ledgerService, commissionRepo)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = volumeProducer.Close(); err != nil {
		log.Error("Error closing volume event producer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
