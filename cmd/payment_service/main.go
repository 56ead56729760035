package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/crowdpay-contribution-ledger/internal/api_gateway"
	"github.com/crowdpay-contribution-ledger/internal/api_gateway/service"
	"github.com/crowdpay-contribution-ledger/internal/config"
	"github.com/crowdpay-contribution-ledger/internal/data/mongo"
	"github.com/crowdpay-contribution-ledger/internal/data/postgres"
	"github.com/crowdpay-contribution-ledger/internal/logger"
	"github.com/crowdpay-contribution-ledger/internal/platform/messaging/producers"
	"github.com/crowdpay-contribution-ledger/internal/platform/persistence"
	"github.com/crowdpay-contribution-ledger/internal/poller"
	"github.com/crowdpay-contribution-ledger/internal/provider"
	"github.com/crowdpay-contribution-ledger/internal/reconciler"
	"github.com/crowdpay-contribution-ledger/internal/sweeper"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("payment_service")
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

	// Initialize settlement producer (nil when Kafka is not configured)
	settlementProducer, err := producers.NewSettlementProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize settlement Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize payment provider
	paymentProvider, err := provider.New(log, &cfg.Provider)
	if err != nil {
		log.Error("Failed to initialize payment provider", "error", err)
		os.Exit(1)
	}
	log.Info("Payment provider initialized", "backend", paymentProvider.Name())

	// Initialize repositories
	contributionRepo := postgres.NewContributionRepository(log, postgresDB)
	campaignRepo := postgres.NewCampaignRepository(log, postgresDB)
	auditRepo := mongo.NewEventRepository(log, mongoDB.Database())

	// Initialize the reconciler shared by the webhook, poller, and sweeper paths
	var publisher producers.SettlementPublisher
	if settlementProducer != nil {
		publisher = settlementProducer
	}
	rec := reconciler.NewReconciler(postgresDB, contributionRepo, campaignRepo, auditRepo, publisher, log)

	// Initialize services
	contributionService := service.NewContributionService(contributionRepo, campaignRepo, paymentProvider, rec, cfg.Provider.InvoiceExpiry)
	campaignService := service.NewCampaignService(campaignRepo, rec)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, contributionService, campaignService, paymentProvider, rec, auditRepo)
	log.Info("REST server initialized")

	// Initialize background loops
	statusPoller, err := poller.NewPoller(&cfg.Poller, contributionRepo, paymentProvider, rec, log)
	if err != nil {
		log.Error("Failed to initialize contribution poller", "error", err)
		os.Exit(1)
	}
	expirySweeper := sweeper.NewSweeper(&cfg.Sweeper, contributionRepo, rec, log)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		statusPoller.Run(appCtx)
	}()
	go func() {
		defer wg.Done()
		expirySweeper.Run(appCtx)
	}()

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

	// Cancel the application context to stop the poller and sweeper
	cancelAppCtx()
	wg.Wait()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = settlementProducer.Close(); err != nil {
		log.Error("Error closing settlement Kafka producer", "error", err)
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
