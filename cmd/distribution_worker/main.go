package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bkcjanta/roi-project/internal/config"
	"github.com/bkcjanta/roi-project/internal/data/mongo"
	"github.com/bkcjanta/roi-project/internal/data/postgres"
	"github.com/bkcjanta/roi-project/internal/distribution_worker/consumer"
	"github.com/bkcjanta/roi-project/internal/distribution_worker/outbox_poller"
	"github.com/bkcjanta/roi-project/internal/domain/schedjob"
	"github.com/bkcjanta/roi-project/internal/logger"
	"github.com/bkcjanta/roi-project/internal/platform/messaging/consumers"
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
	cfg, err := config.LoadConfig("distribution_worker")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Distribution Worker",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize Kafka DLQ producer
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer might be nil if DLQTopic is not configured. Handler should be nil-safe.

	// Initialize core services
	settingsService := settings.NewService(log, settingsRepo)
	placementService := referral.NewTreePlacementService(log, postgresDB, participantRepo, volumeEventLog)
	ledgerService := treasury.NewLedgerService(log, postgresDB, walletRepo, ledgerRepo, outboxRepo)
	commissionEngine := referral.NewCommissionEngine(log, postgresDB, participantRepo, investmentRepo, commissionRepo, ledgerService, outboxRepo)

	// Initialize volume event handler
	volumeEventHandler := consumer.NewVolumeEventHandler(log, placementService, dlqProducer)

	// Initialize audit outbox poller
	poller := outbox_poller.NewPoller(&cfg.Outbox, outboxRepo, trailRepo, log)

	// Initialize the distribution scheduler with both daily jobs
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

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.VolumeTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.VolumeTopic, cfg.Kafka.ConsumerGroup, volumeEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Start audit outbox poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Audit Outbox Poller",
			"interval", cfg.Outbox.PollingInterval.String(),
			"batch_size", cfg.Outbox.BatchSize,
		)
		poller.Start(appCtx)
	}()

	// Start cron triggering
	sched.Start()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Stop cron triggering and wait for in-flight job runs
	sched.Stop()

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close DLQ Kafka producer
	if dlqProducer != nil { // dlqProducer can be nil if DLQTopic was not configured
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	// Close Kafka consumer
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Distribution Worker shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Distribution Worker shutdown completed with errors")
	} else {
		log.Info("Distribution Worker shutdown completed successfully")
	}
}
