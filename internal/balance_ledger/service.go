package balance_ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/atlas-transfers/internal/data/redis"
	"github.com/atlas-transfers/internal/domain/balance"
	"github.com/atlas-transfers/internal/domain/shared"
)

// errInsufficientBalance aborts the apply transaction without surfacing a
// transport error; the captured result carries the business outcome
var errInsufficientBalance = errors.New("insufficient balance")

// errAlreadyApplied aborts the apply transaction when a concurrent delivery
// of the same command committed first
var errAlreadyApplied = errors.New("transfer already applied")

// InsufficientBalanceMessage is the failure reason reported to callers when
// the sender cannot cover amount plus fee
const InsufficientBalanceMessage = "Insufficient balance"

type ServiceImpl struct {
	txManager   TxManager
	balanceRepo balance.Repository
	historyRepo balance.HistoryRepository
	cache       Cache
	notifier    Notifier
	cacheTTL    time.Duration
	logger      *slog.Logger
}

func NewService(
	txManager TxManager,
	balanceRepo balance.Repository,
	historyRepo balance.HistoryRepository,
	cache Cache,
	notifier Notifier,
	cacheTTL time.Duration,
	logger *slog.Logger,
) Service {
	return &ServiceImpl{
		txManager:   txManager,
		balanceRepo: balanceRepo,
		historyRepo: historyRepo,
		cache:       cache,
		notifier:    notifier,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// CreateAccount opens an account and records its opening balance in the
// history trail, both in one transaction.
func (s *ServiceImpl) CreateAccount(ctx context.Context, ownerName, documentNumber string, initialBalance decimal.Decimal) (*balance.AccountBalance, error) {
	account, err := balance.NewAccountBalance(ownerName, documentNumber, initialBalance)
	if err != nil {
		return nil, err
	}

	err = s.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.balanceRepo.WithTx(tx).Create(ctx, account); err != nil {
			return err
		}
		return s.historyRepo.WithTx(tx).Append(ctx, balance.NewInitial(account.AccountID, initialBalance))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Account created",
		"account_id", account.AccountID.String(),
		"initial_balance", initialBalance.String())

	return account, nil
}

// GetBalance serves the balance from cache when possible, falling back to
// the database and repopulating the cache on a miss.
func (s *ServiceImpl) GetBalance(ctx context.Context, accountID uuid.UUID) (*balance.AccountBalance, error) {
	key := redis.BalanceKey(accountID)

	if cached, err := s.cache.Get(ctx, key); err == nil {
		var account balance.AccountBalance
		if err := json.Unmarshal([]byte(cached), &account); err == nil {
			return &account, nil
		}
		s.logger.Warn("Discarding malformed cached balance", "account_id", accountID.String())
	} else if !errors.Is(err, redis.ErrCacheMiss) {
		s.logger.Warn("Balance cache read failed", "account_id", accountID.String(), "error", err)
	}

	account, err := s.balanceRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(account); err == nil {
		if err := s.cache.Set(ctx, key, string(payload), s.cacheTTL); err != nil {
			s.logger.Warn("Balance cache write failed", "account_id", accountID.String(), "error", err)
		}
	}

	return account, nil
}

// GetHistory retrieves paginated balance history for an account
func (s *ServiceImpl) GetHistory(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*balance.History, error) {
	if _, err := s.balanceRepo.GetByAccountID(ctx, accountID); err != nil {
		return nil, err
	}
	return s.historyRepo.ListByAccountID(ctx, accountID, limit, offset)
}

// ApplyTransfer moves money between two accounts. The debit, credit, and
// both history rows commit together or not at all. History rows keyed by
// transfer id make redelivered commands no-ops.
func (s *ServiceImpl) ApplyTransfer(ctx context.Context, cmd *shared.TransferCommand) (*ApplyTransferResult, error) {
	logger := s.logger
	if cmd.CorrelationID != "" {
		logger = s.logger.With("correlation_id", cmd.CorrelationID)
	}

	processed, err := s.historyRepo.ExistsByTransferID(ctx, cmd.TransferID)
	if err != nil {
		return nil, fmt.Errorf("failed to check transfer application: %w", err)
	}
	if processed {
		logger.Info("Transfer already applied, skipping", "transfer_id", cmd.TransferID.String())
		return &ApplyTransferResult{Success: true, AlreadyProcessed: true}, nil
	}

	result := &ApplyTransferResult{}

	err = s.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		balances := s.balanceRepo.WithTx(tx)
		history := s.historyRepo.WithTx(tx)

		locked, err := lockBothAccounts(ctx, balances, cmd.SenderAccountID, cmd.ReceiverAccountID)
		if err != nil {
			return err
		}
		sender := locked[cmd.SenderAccountID]
		receiver := locked[cmd.ReceiverAccountID]

		// Re-check under the row locks. A concurrent delivery of the same
		// command may have committed between the fast-path check above and
		// the moment both accounts were locked.
		applied, err := history.ExistsByTransferID(ctx, cmd.TransferID)
		if err != nil {
			return fmt.Errorf("failed to re-check transfer application: %w", err)
		}
		if applied {
			result.Success = true
			result.AlreadyProcessed = true
			return errAlreadyApplied
		}

		if sender.Balance.LessThan(cmd.TotalAmount) {
			result.Success = false
			result.Message = InsufficientBalanceMessage
			result.CurrentBalance = &sender.Balance
			result.RequiredAmount = &cmd.TotalAmount
			return errInsufficientBalance
		}

		debit := balance.NewDebit(sender.AccountID, cmd.TransferID, sender.Balance, cmd.TotalAmount, "Transfer sent")
		credit := balance.NewCredit(receiver.AccountID, cmd.TransferID, receiver.Balance, cmd.NetAmount, "Transfer received")

		if err := balances.UpdateBalance(ctx, sender.AccountID, debit.NewBalance); err != nil {
			return err
		}
		if err := balances.UpdateBalance(ctx, receiver.AccountID, credit.NewBalance); err != nil {
			return err
		}
		if err := history.Append(ctx, debit); err != nil {
			return err
		}
		if err := history.Append(ctx, credit); err != nil {
			return err
		}

		result.Success = true
		result.SenderBalance = &debit.NewBalance
		result.ReceiverBalance = &credit.NewBalance
		result.SenderPreviousBalance = &debit.PreviousBalance
		result.ReceiverPreviousBalance = &credit.PreviousBalance
		return nil
	})
	if err != nil {
		if errors.Is(err, errAlreadyApplied) {
			logger.Info("Transfer already applied, skipping", "transfer_id", cmd.TransferID.String())
			return result, nil
		}
		if errors.Is(err, errInsufficientBalance) {
			logger.Info("Transfer rejected for insufficient balance",
				"transfer_id", cmd.TransferID.String(),
				"sender_account_id", cmd.SenderAccountID.String())
			return result, nil
		}
		return nil, err
	}

	s.invalidateAndNotify(ctx, logger, cmd, result)

	logger.Info("Transfer applied",
		"transfer_id", cmd.TransferID.String(),
		"sender_account_id", cmd.SenderAccountID.String(),
		"receiver_account_id", cmd.ReceiverAccountID.String())

	return result, nil
}

// invalidateAndNotify runs after commit. Failures here are logged and
// dropped; the committed ledger state is already authoritative.
func (s *ServiceImpl) invalidateAndNotify(ctx context.Context, logger *slog.Logger, cmd *shared.TransferCommand, result *ApplyTransferResult) {
	for _, accountID := range []uuid.UUID{cmd.SenderAccountID, cmd.ReceiverAccountID} {
		if err := s.cache.Delete(ctx, redis.BalanceKey(accountID)); err != nil {
			logger.Warn("Failed to invalidate cached balance", "account_id", accountID.String(), "error", err)
		}
	}

	now := time.Now()
	s.notifier.NotifyBalanceUpdated(ctx, &shared.BalanceUpdatedNotification{
		AccountID:  cmd.SenderAccountID,
		Operation:  string(balance.OperationDebit),
		Amount:     cmd.TotalAmount,
		NewBalance: *result.SenderBalance,
		TransferID: &cmd.TransferID,
		Timestamp:  now,
	})
	s.notifier.NotifyBalanceUpdated(ctx, &shared.BalanceUpdatedNotification{
		AccountID:  cmd.ReceiverAccountID,
		Operation:  string(balance.OperationCredit),
		Amount:     cmd.NetAmount,
		NewBalance: *result.ReceiverBalance,
		TransferID: &cmd.TransferID,
		Timestamp:  now,
	})
}

// lockBothAccounts acquires row locks on both balances in a stable order so
// concurrent transfers between the same pair cannot deadlock
func lockBothAccounts(ctx context.Context, balances balance.Repository, senderID, receiverID uuid.UUID) (map[uuid.UUID]*balance.AccountBalance, error) {
	first, second := senderID, receiverID
	if bytes.Compare(receiverID[:], senderID[:]) < 0 {
		first, second = receiverID, senderID
	}

	locked := make(map[uuid.UUID]*balance.AccountBalance, 2)
	for _, id := range []uuid.UUID{first, second} {
		account, err := balances.LockForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = account
	}
	return locked, nil
}
