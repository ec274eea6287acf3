package balance_ledger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/atlas-transfers/internal/data/redis"
	"github.com/atlas-transfers/internal/domain/balance"
	"github.com/atlas-transfers/internal/domain/shared"
)

// Mock implementations of the dependencies

type MockBalanceRepo struct {
	mock.Mock
}

func (m *MockBalanceRepo) Create(ctx context.Context, ab *balance.AccountBalance) error {
	args := m.Called(ctx, ab)
	return args.Error(0)
}

func (m *MockBalanceRepo) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*balance.AccountBalance, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*balance.AccountBalance), args.Error(1)
}

func (m *MockBalanceRepo) LockForUpdate(ctx context.Context, accountID uuid.UUID) (*balance.AccountBalance, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*balance.AccountBalance), args.Error(1)
}

func (m *MockBalanceRepo) UpdateBalance(ctx context.Context, accountID uuid.UUID, newBalance decimal.Decimal) error {
	args := m.Called(ctx, accountID, newBalance)
	return args.Error(0)
}

func (m *MockBalanceRepo) WithTx(tx pgx.Tx) balance.Repository {
	return m
}

type MockHistoryRepo struct {
	mock.Mock
}

func (m *MockHistoryRepo) Append(ctx context.Context, h *balance.History) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockHistoryRepo) ExistsByTransferID(ctx context.Context, transferID uuid.UUID) (bool, error) {
	args := m.Called(ctx, transferID)
	return args.Bool(0), args.Error(1)
}

func (m *MockHistoryRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*balance.History, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*balance.History), args.Error(1)
}

func (m *MockHistoryRepo) WithTx(tx pgx.Tx) balance.HistoryRepository {
	return m
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyBalanceUpdated(ctx context.Context, notification *shared.BalanceUpdatedNotification) {
	m.Called(ctx, notification)
}

// stubTx is a no-op pgx.Tx; the repositories it reaches are mocked
type stubTx struct{}

func (stubTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (stubTx) Commit(ctx context.Context) error          { return nil }
func (stubTx) Rollback(ctx context.Context) error        { return nil }
func (stubTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (stubTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (stubTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return &pgconn.StatementDescription{}, nil
}
func (stubTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (stubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (stubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (stubTx) LargeObjects() pgx.LargeObjects                                { return pgx.LargeObjects{} }
func (stubTx) Conn() *pgx.Conn                                               { return nil }

// fakeTxManager runs the callback with a stub transaction, mirroring the
// commit-on-nil, rollback-on-error contract
type fakeTxManager struct {
	beginErr error
}

func (f *fakeTxManager) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if f.beginErr != nil {
		return f.beginErr
	}
	return fn(stubTx{})
}

func newTestService(balanceRepo *MockBalanceRepo, historyRepo *MockHistoryRepo, cache *MockCache, notifier *MockNotifier) Service {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return NewService(&fakeTxManager{}, balanceRepo, historyRepo, cache, notifier, time.Minute, logger)
}

func testCommand(sender, receiver uuid.UUID) *shared.TransferCommand {
	return &shared.TransferCommand{
		TransferID:        uuid.New(),
		SenderAccountID:   sender,
		ReceiverAccountID: receiver,
		TotalAmount:       decimal.RequireFromString("101"),
		NetAmount:         decimal.RequireFromString("100"),
		CorrelationID:     "corr-1",
		Timestamp:         time.Now(),
	}
}

func TestService_CreateAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		balanceRepo := new(MockBalanceRepo)
		historyRepo := new(MockHistoryRepo)
		svc := newTestService(balanceRepo, historyRepo, new(MockCache), new(MockNotifier))

		balanceRepo.On("Create", mock.Anything, mock.AnythingOfType("*balance.AccountBalance")).Return(nil)
		historyRepo.On("Append", mock.Anything, mock.MatchedBy(func(h *balance.History) bool {
			return h.Operation == balance.OperationInitial
		})).Return(nil)

		account, err := svc.CreateAccount(ctx, "John Doe", "12345678900", decimal.RequireFromString("500"))

		require.NoError(t, err)
		require.NotNil(t, account)
		assert.True(t, decimal.RequireFromString("500").Equal(account.Balance))
		balanceRepo.AssertExpectations(t)
		historyRepo.AssertExpectations(t)
	})

	t.Run("ValidationError", func(t *testing.T) {
		svc := newTestService(new(MockBalanceRepo), new(MockHistoryRepo), new(MockCache), new(MockNotifier))

		account, err := svc.CreateAccount(ctx, "", "12345678900", decimal.Zero)

		assert.ErrorIs(t, err, balance.ErrEmptyOwnerName)
		assert.Nil(t, account)
	})

	t.Run("DuplicateDocumentNumber", func(t *testing.T) {
		balanceRepo := new(MockBalanceRepo)
		historyRepo := new(MockHistoryRepo)
		svc := newTestService(balanceRepo, historyRepo, new(MockCache), new(MockNotifier))

		balanceRepo.On("Create", mock.Anything, mock.Anything).Return(balance.ErrDuplicateAccount{DocumentNumber: "12345678900"})

		account, err := svc.CreateAccount(ctx, "John Doe", "12345678900", decimal.Zero)

		var dupErr balance.ErrDuplicateAccount
		assert.ErrorAs(t, err, &dupErr)
		assert.Nil(t, account)
		historyRepo.AssertNotCalled(t, "Append")
	})
}

func TestService_GetBalance(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.New()
	key := redis.BalanceKey(accountID)

	account := &balance.AccountBalance{
		AccountID: accountID,
		OwnerName: "John Doe",
		Balance:   decimal.RequireFromString("500"),
	}

	t.Run("CacheHit", func(t *testing.T) {
		balanceRepo := new(MockBalanceRepo)
		cache := new(MockCache)
		svc := newTestService(balanceRepo, new(MockHistoryRepo), cache, new(MockNotifier))

		payload, err := json.Marshal(account)
		require.NoError(t, err)
		cache.On("Get", mock.Anything, key).Return(string(payload), nil)

		got, err := svc.GetBalance(ctx, accountID)

		require.NoError(t, err)
		assert.Equal(t, accountID, got.AccountID)
		assert.True(t, account.Balance.Equal(got.Balance))
		balanceRepo.AssertNotCalled(t, "GetByAccountID")
	})

	t.Run("CacheMissPopulatesCache", func(t *testing.T) {
		balanceRepo := new(MockBalanceRepo)
		cache := new(MockCache)
		svc := newTestService(balanceRepo, new(MockHistoryRepo), cache, new(MockNotifier))

		cache.On("Get", mock.Anything, key).Return("", redis.ErrCacheMiss)
		balanceRepo.On("GetByAccountID", mock.Anything, accountID).Return(account, nil)
		cache.On("Set", mock.Anything, key, mock.AnythingOfType("string"), time.Minute).Return(nil)

		got, err := svc.GetBalance(ctx, accountID)

		require.NoError(t, err)
		assert.Equal(t, accountID, got.AccountID)
		cache.AssertExpectations(t)
	})

	t.Run("CacheFailureFallsBackToDatabase", func(t *testing.T) {
		balanceRepo := new(MockBalanceRepo)
		cache := new(MockCache)
		svc := newTestService(balanceRepo, new(MockHistoryRepo), cache, new(MockNotifier))

		cache.On("Get", mock.Anything, key).Return("", errors.New("redis down"))
		balanceRepo.On("GetByAccountID", mock.Anything, accountID).Return(account, nil)
		cache.On("Set", mock.Anything, key, mock.AnythingOfType("string"), time.Minute).Return(errors.New("redis down"))

		got, err := svc.GetBalance(ctx, accountID)

		require.NoError(t, err)
		assert.Equal(t, accountID, got.AccountID)
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		balanceRepo := new(MockBalanceRepo)
		cache := new(MockCache)
		svc := newTestService(balanceRepo, new(MockHistoryRepo), cache, new(MockNotifier))

		cache.On("Get", mock.Anything, key).Return("", redis.ErrCacheMiss)
		balanceRepo.On("GetByAccountID", mock.Anything, accountID).Return(nil, balance.ErrAccountNotFound{AccountID: accountID})

		got, err := svc.GetBalance(ctx, accountID)

		assert.ErrorIs(t, err, balance.ErrAccountNotFound{})
		assert.Nil(t, got)
	})
}

func TestService_GetHistory(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		balanceRepo := new(MockBalanceRepo)
		historyRepo := new(MockHistoryRepo)
		svc := newTestService(balanceRepo, historyRepo, new(MockCache), new(MockNotifier))

		entries := []*balance.History{balance.NewInitial(accountID, decimal.RequireFromString("100"))}
		balanceRepo.On("GetByAccountID", mock.Anything, accountID).Return(&balance.AccountBalance{AccountID: accountID}, nil)
		historyRepo.On("ListByAccountID", mock.Anything, accountID, 10, 0).Return(entries, nil)

		got, err := svc.GetHistory(ctx, accountID, 10, 0)

		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		balanceRepo := new(MockBalanceRepo)
		historyRepo := new(MockHistoryRepo)
		svc := newTestService(balanceRepo, historyRepo, new(MockCache), new(MockNotifier))

		balanceRepo.On("GetByAccountID", mock.Anything, accountID).Return(nil, balance.ErrAccountNotFound{AccountID: accountID})

		got, err := svc.GetHistory(ctx, accountID, 10, 0)

		assert.ErrorIs(t, err, balance.ErrAccountNotFound{})
		assert.Nil(t, got)
		historyRepo.AssertNotCalled(t, "ListByAccountID")
	})
}

func TestService_ApplyTransfer(t *testing.T) {
	ctx := context.Background()
	senderID := uuid.New()
	receiverID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		balanceRepo := new(MockBalanceRepo)
		historyRepo := new(MockHistoryRepo)
		cache := new(MockCache)
		notifier := new(MockNotifier)
		svc := newTestService(balanceRepo, historyRepo, cache, notifier)

		cmd := testCommand(senderID, receiverID)

		historyRepo.On("ExistsByTransferID", mock.Anything, cmd.TransferID).Return(false, nil)
		balanceRepo.On("LockForUpdate", mock.Anything, senderID).
			Return(&balance.AccountBalance{AccountID: senderID, Balance: decimal.RequireFromString("500")}, nil)
		balanceRepo.On("LockForUpdate", mock.Anything, receiverID).
			Return(&balance.AccountBalance{AccountID: receiverID, Balance: decimal.RequireFromString("50")}, nil)
		balanceRepo.On("UpdateBalance", mock.Anything, senderID, mock.MatchedBy(func(d decimal.Decimal) bool {
			return d.Equal(decimal.RequireFromString("399"))
		})).Return(nil)
		balanceRepo.On("UpdateBalance", mock.Anything, receiverID, mock.MatchedBy(func(d decimal.Decimal) bool {
			return d.Equal(decimal.RequireFromString("150"))
		})).Return(nil)
		historyRepo.On("Append", mock.Anything, mock.MatchedBy(func(h *balance.History) bool {
			return h.Operation == balance.OperationDebit && h.AccountID == senderID
		})).Return(nil)
		historyRepo.On("Append", mock.Anything, mock.MatchedBy(func(h *balance.History) bool {
			return h.Operation == balance.OperationCredit && h.AccountID == receiverID
		})).Return(nil)
		cache.On("Delete", mock.Anything, redis.BalanceKey(senderID)).Return(nil)
		cache.On("Delete", mock.Anything, redis.BalanceKey(receiverID)).Return(nil)
		notifier.On("NotifyBalanceUpdated", mock.Anything, mock.AnythingOfType("*shared.BalanceUpdatedNotification")).Return().Twice()

		result, err := svc.ApplyTransfer(ctx, cmd)

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, result.Success)
		assert.False(t, result.AlreadyProcessed)
		require.NotNil(t, result.SenderBalance)
		require.NotNil(t, result.ReceiverBalance)
		assert.True(t, result.SenderBalance.Equal(decimal.RequireFromString("399")))
		assert.True(t, result.ReceiverBalance.Equal(decimal.RequireFromString("150")))
		require.NotNil(t, result.SenderPreviousBalance)
		require.NotNil(t, result.ReceiverPreviousBalance)
		assert.True(t, result.SenderPreviousBalance.Equal(decimal.RequireFromString("500")))
		assert.True(t, result.ReceiverPreviousBalance.Equal(decimal.RequireFromString("50")))
		balanceRepo.AssertExpectations(t)
		historyRepo.AssertExpectations(t)
		cache.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("AlreadyProcessed", func(t *testing.T) {
		balanceRepo := new(MockBalanceRepo)
		historyRepo := new(MockHistoryRepo)
		svc := newTestService(balanceRepo, historyRepo, new(MockCache), new(MockNotifier))

		cmd := testCommand(senderID, receiverID)
		historyRepo.On("ExistsByTransferID", mock.Anything, cmd.TransferID).Return(true, nil)

		result, err := svc.ApplyTransfer(ctx, cmd)

		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.True(t, result.AlreadyProcessed)
		balanceRepo.AssertNotCalled(t, "LockForUpdate")
	})

	// A redelivered command can pass the fast-path check and then block on
	// the row locks while the first delivery commits. The loser must see the
	// committed history row once it holds the locks and apply nothing.
	t.Run("DuplicateDeliveryAbsorbedUnderLock", func(t *testing.T) {
		balanceRepo := new(MockBalanceRepo)
		historyRepo := new(MockHistoryRepo)
		cache := new(MockCache)
		notifier := new(MockNotifier)
		svc := newTestService(balanceRepo, historyRepo, cache, notifier)

		cmd := testCommand(senderID, receiverID)

		historyRepo.On("ExistsByTransferID", mock.Anything, cmd.TransferID).Return(false, nil).Once()
		balanceRepo.On("LockForUpdate", mock.Anything, senderID).
			Return(&balance.AccountBalance{AccountID: senderID, Balance: decimal.RequireFromString("399")}, nil)
		balanceRepo.On("LockForUpdate", mock.Anything, receiverID).
			Return(&balance.AccountBalance{AccountID: receiverID, Balance: decimal.RequireFromString("150")}, nil)
		historyRepo.On("ExistsByTransferID", mock.Anything, cmd.TransferID).Return(true, nil).Once()

		result, err := svc.ApplyTransfer(ctx, cmd)

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, result.Success)
		assert.True(t, result.AlreadyProcessed)
		balanceRepo.AssertNotCalled(t, "UpdateBalance")
		historyRepo.AssertNotCalled(t, "Append")
		cache.AssertNotCalled(t, "Delete")
		notifier.AssertNotCalled(t, "NotifyBalanceUpdated")
		historyRepo.AssertExpectations(t)
	})

	t.Run("InsufficientBalance", func(t *testing.T) {
		balanceRepo := new(MockBalanceRepo)
		historyRepo := new(MockHistoryRepo)
		cache := new(MockCache)
		notifier := new(MockNotifier)
		svc := newTestService(balanceRepo, historyRepo, cache, notifier)

		cmd := testCommand(senderID, receiverID)

		historyRepo.On("ExistsByTransferID", mock.Anything, cmd.TransferID).Return(false, nil)
		balanceRepo.On("LockForUpdate", mock.Anything, senderID).
			Return(&balance.AccountBalance{AccountID: senderID, Balance: decimal.RequireFromString("100")}, nil)
		balanceRepo.On("LockForUpdate", mock.Anything, receiverID).
			Return(&balance.AccountBalance{AccountID: receiverID, Balance: decimal.RequireFromString("50")}, nil)

		result, err := svc.ApplyTransfer(ctx, cmd)

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.False(t, result.Success)
		assert.Equal(t, InsufficientBalanceMessage, result.Message)
		require.NotNil(t, result.CurrentBalance)
		require.NotNil(t, result.RequiredAmount)
		assert.True(t, result.CurrentBalance.Equal(decimal.RequireFromString("100")))
		assert.True(t, result.RequiredAmount.Equal(decimal.RequireFromString("101")))
		balanceRepo.AssertNotCalled(t, "UpdateBalance")
		historyRepo.AssertNotCalled(t, "Append")
		cache.AssertNotCalled(t, "Delete")
		notifier.AssertNotCalled(t, "NotifyBalanceUpdated")
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		balanceRepo := new(MockBalanceRepo)
		historyRepo := new(MockHistoryRepo)
		svc := newTestService(balanceRepo, historyRepo, new(MockCache), new(MockNotifier))

		cmd := testCommand(senderID, receiverID)

		historyRepo.On("ExistsByTransferID", mock.Anything, cmd.TransferID).Return(false, nil)
		balanceRepo.On("LockForUpdate", mock.Anything, mock.Anything).
			Return(nil, balance.ErrAccountNotFound{AccountID: senderID})

		result, err := svc.ApplyTransfer(ctx, cmd)

		assert.ErrorIs(t, err, balance.ErrAccountNotFound{})
		assert.Nil(t, result)
	})

	t.Run("ExistenceCheckError", func(t *testing.T) {
		balanceRepo := new(MockBalanceRepo)
		historyRepo := new(MockHistoryRepo)
		svc := newTestService(balanceRepo, historyRepo, new(MockCache), new(MockNotifier))

		cmd := testCommand(senderID, receiverID)
		dbErr := errors.New("db down")
		historyRepo.On("ExistsByTransferID", mock.Anything, cmd.TransferID).Return(false, dbErr)

		result, err := svc.ApplyTransfer(ctx, cmd)

		assert.ErrorIs(t, err, dbErr)
		assert.Nil(t, result)
		balanceRepo.AssertNotCalled(t, "LockForUpdate")
	})
}
