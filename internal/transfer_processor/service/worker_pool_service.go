package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/atlas-transfers/internal/domain/shared"
)

// WorkerPoolProcessingService fans transfer commands out to a bounded pool
// of workers while keeping the consumer's per-message blocking semantics
type WorkerPoolProcessingService struct {
	baseService ProcessingService
	pool        *ants.Pool
	logger      *slog.Logger
	// Protects the results map
	mu      sync.Mutex
	results map[string]chan error
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolProcessingService(
	baseService ProcessingService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolProcessingService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolProcessingService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
		results:     make(map[string]chan error),
	}, nil
}

// ProcessTransfer submits a command to the worker pool and waits for the
// outcome, so the caller still learns whether to acknowledge the message.
func (s *WorkerPoolProcessingService) ProcessTransfer(ctx context.Context, cmd *shared.TransferCommand) error {
	logger := s.logger
	if cmd.CorrelationID != "" {
		logger = s.logger.With("correlation_id", cmd.CorrelationID)
	}

	logger.Info("Submitting transfer to worker pool", "transfer_id", cmd.TransferID.String())

	resultChan := make(chan error, 1)

	transferID := cmd.TransferID.String()
	s.mu.Lock()
	s.results[transferID] = resultChan
	s.mu.Unlock()

	// Copy the command to avoid data races
	cmdCopy := *cmd

	err := s.pool.Submit(func() {
		err := s.baseService.ProcessTransfer(ctx, &cmdCopy)

		resultChan <- err

		s.mu.Lock()
		delete(s.results, transferID)
		close(resultChan)
		s.mu.Unlock()
	})

	if err != nil {
		s.mu.Lock()
		delete(s.results, transferID)
		close(resultChan)
		s.mu.Unlock()

		logger.Error("Failed to submit transfer to worker pool",
			"transfer_id", cmd.TransferID.String(),
			"error", err,
		)
		return err
	}

	return <-resultChan
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolProcessingService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolProcessingService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolProcessingService) Capacity() int {
	return s.pool.Cap()
}
