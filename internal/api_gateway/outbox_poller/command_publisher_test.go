package outbox_poller

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/atlas-transfers/internal/domain/outbox"
	"github.com/atlas-transfers/internal/domain/shared"
)

// MockOutboxRepo for testing
type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status outbox.Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetByTransferID(ctx context.Context, transferID uuid.UUID) (*outbox.Message, error) {
	args := m.Called(ctx, transferID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	return m
}

// MockMessagePublisher for testing
type MockMessagePublisher struct {
	mock.Mock
}

func (m *MockMessagePublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockMessagePublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newOutboxMessage(t *testing.T) *outbox.Message {
	t.Helper()
	cmd := &shared.TransferCommand{
		TransferID:        uuid.New(),
		SenderAccountID:   uuid.New(),
		ReceiverAccountID: uuid.New(),
		TotalAmount:       decimal.RequireFromString("101"),
		NetAmount:         decimal.RequireFromString("100"),
		CorrelationID:     "corr-1",
		Timestamp:         time.Now(),
	}
	msg, err := outbox.NewMessage(cmd)
	require.NoError(t, err)
	msg.ID = 1
	return msg
}

func TestCommandPublisher_PublishCommand(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("success", func(t *testing.T) {
		mockRepo := &MockOutboxRepo{}
		mockProducer := &MockMessagePublisher{}
		publisher := NewCommandPublisher(mockRepo, mockProducer, logger)

		msg := newOutboxMessage(t)

		mockProducer.On("Publish", mock.Anything, msg.SenderAccountID.String(), mock.AnythingOfType("*shared.TransferCommand")).Return(nil).Once()
		mockRepo.On("UpdateStatus", mock.Anything, msg.ID, outbox.StatusProcessed).Return(nil).Once()

		err := publisher.PublishCommand(ctx, msg)

		assert.NoError(t, err)
		assert.Equal(t, outbox.StatusProcessed, msg.Status)
		assert.NotNil(t, msg.LastAttemptAt)
		mockRepo.AssertExpectations(t)
		mockProducer.AssertExpectations(t)
	})

	t.Run("corrupt payload is marked failed", func(t *testing.T) {
		mockRepo := &MockOutboxRepo{}
		mockProducer := &MockMessagePublisher{}
		publisher := NewCommandPublisher(mockRepo, mockProducer, logger)

		msg := newOutboxMessage(t)
		msg.Payload = []byte("not json")

		mockRepo.On("UpdateStatus", mock.Anything, msg.ID, outbox.StatusFailedToPublish).Return(nil).Once()

		err := publisher.PublishCommand(ctx, msg)

		assert.Error(t, err)
		assert.Equal(t, outbox.StatusFailedToPublish, msg.Status)
		mockProducer.AssertNotCalled(t, "Publish")
		mockRepo.AssertExpectations(t)
	})

	t.Run("publish failure leaves message pending", func(t *testing.T) {
		mockRepo := &MockOutboxRepo{}
		mockProducer := &MockMessagePublisher{}
		publisher := NewCommandPublisher(mockRepo, mockProducer, logger)

		msg := newOutboxMessage(t)
		publishErr := errors.New("broker unavailable")

		mockProducer.On("Publish", mock.Anything, msg.SenderAccountID.String(), mock.Anything).Return(publishErr).Once()

		err := publisher.PublishCommand(ctx, msg)

		assert.ErrorIs(t, err, publishErr)
		mockRepo.AssertNotCalled(t, "UpdateStatus")
		mockProducer.AssertExpectations(t)
	})

	t.Run("status update failure is surfaced", func(t *testing.T) {
		mockRepo := &MockOutboxRepo{}
		mockProducer := &MockMessagePublisher{}
		publisher := NewCommandPublisher(mockRepo, mockProducer, logger)

		msg := newOutboxMessage(t)
		updateErr := errors.New("db error")

		mockProducer.On("Publish", mock.Anything, msg.SenderAccountID.String(), mock.Anything).Return(nil).Once()
		mockRepo.On("UpdateStatus", mock.Anything, msg.ID, outbox.StatusProcessed).Return(updateErr).Once()

		err := publisher.PublishCommand(ctx, msg)

		assert.ErrorIs(t, err, updateErr)
		mockRepo.AssertExpectations(t)
	})
}
