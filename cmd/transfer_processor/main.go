package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/atlas-transfers/internal/balance_ledger"
	"github.com/atlas-transfers/internal/config"
	"github.com/atlas-transfers/internal/data/mongo"
	"github.com/atlas-transfers/internal/data/postgres"
	"github.com/atlas-transfers/internal/data/redis"
	"github.com/atlas-transfers/internal/logger"
	"github.com/atlas-transfers/internal/platform/messaging/consumers"
	"github.com/atlas-transfers/internal/platform/messaging/producers"
	"github.com/atlas-transfers/internal/platform/persistence"
	"github.com/atlas-transfers/internal/transfer_processor/components"
	"github.com/atlas-transfers/internal/transfer_processor/consumer"
	"github.com/atlas-transfers/internal/transfer_processor/service"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("transfer_processor")
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

	redisClient, err := persistence.NewRedisClient(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka consumer and producers
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	notificationProducer, err := producers.NewNotificationProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize Kafka notification producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize Kafka DLQ producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	transferRepo := postgres.NewTransferRepository(log, postgresDB)
	balanceRepo := postgres.NewBalanceRepository(log, postgresDB)
	historyRepo := postgres.NewHistoryRepository(log, postgresDB)
	eventRepo := mongo.NewEventRepository(log, mongoDB.Database())

	// Initialize services
	cache := redis.NewCache(log, redisClient)
	notifier := producers.NewNotifier(log, notificationProducer)
	ledger := balance_ledger.NewService(postgresDB, balanceRepo, historyRepo, cache, notifier, cfg.Redis.CacheTTL, log)

	processingService := components.CreateProcessingService(transferRepo, eventRepo, balanceRepo, ledger, notifier, log, cfg)

	// Initialize message handler
	commandHandler := consumer.NewTransferCommandHandler(log, processingService, dlqProducer)

	// Start consuming transfer commands. Subscribe spawns the consume loop;
	// cancelling appCtx stops it, and redelivery of any in-flight command is
	// absorbed by the ledger's idempotency check.
	if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.CommandTopic, cfg.Kafka.ConsumerGroup, commandHandler.HandleMessage); err != nil {
		log.Error("Failed to subscribe to transfer commands", "error", err)
	}

	log.Info("Transfer processor started", "topic", cfg.Kafka.CommandTopic, "group", cfg.Kafka.ConsumerGroup)

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	<-quit
	log.Info("Shutdown signal received")

	// Cancel the application context to stop the consumer loop
	cancelAppCtx()

	log.Info("Starting graceful shutdown...")

	// Release the worker pool if one is in use
	if pooled, ok := processingService.(*service.WorkerPoolProcessingService); ok {
		pooled.Shutdown()
	}

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	if err = notificationProducer.Close(); err != nil {
		log.Error("Error closing Kafka notification producer", "error", err)
	}

	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing Kafka DLQ producer", "error", err)
	}

	if err = redisClient.Close(); err != nil {
		log.Error("Error closing Redis client", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err = mongoDB.Close(context.Background()); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	log.Info("Transfer processor shutdown completed")
}
