package components

import (
	"log/slog"

	"github.com/atlas-transfers/internal/balance_ledger"
	"github.com/atlas-transfers/internal/config"
	"github.com/atlas-transfers/internal/domain/balance"
	"github.com/atlas-transfers/internal/domain/event"
	"github.com/atlas-transfers/internal/domain/transfer"
	"github.com/atlas-transfers/internal/transfer_processor/service"
)

// CreateProcessingService creates a new ProcessingService with all its dependencies.
func CreateProcessingService(
	transferRepo transfer.Repository,
	eventRepo event.Repository,
	balanceRepo balance.Repository,
	ledger balance_ledger.Service,
	notifier service.TransferNotifier,
	logger *slog.Logger,
	cfg *config.Config,
) service.ProcessingService {
	verifier := NewAccountVerifier(balanceRepo, logger)

	baseService := service.NewProcessingService(
		transferRepo,
		eventRepo,
		verifier,
		ledger,
		notifier,
		cfg.Processing.LookupTimeout,
		cfg.Processing.ApplyTimeout,
		logger,
	)

	workerPoolService, err := service.NewWorkerPoolProcessingService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)

	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService
	}

	logger.Info("Created worker pool processing service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService
}
