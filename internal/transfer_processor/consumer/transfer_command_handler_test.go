package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/atlas-transfers/internal/domain/shared"
)

type MockProcessingService struct {
	mock.Mock
}

func (m *MockProcessingService) ProcessTransfer(ctx context.Context, cmd *shared.TransferCommand) error {
	args := m.Called(ctx, cmd)
	return args.Error(0)
}

type MockDLQProducer struct {
	mock.Mock
}

func (m *MockDLQProducer) PublishToDLQ(ctx context.Context, originalKey string, originalValue []byte, reason string) error {
	args := m.Called(ctx, originalKey, originalValue, reason)
	return args.Error(0)
}

func (m *MockDLQProducer) Close() error {
	args := m.Called()
	return args.Error(0)
}

func encodedCommand(t *testing.T) (*shared.TransferCommand, []byte) {
	t.Helper()
	cmd := &shared.TransferCommand{
		TransferID:        uuid.New(),
		SenderAccountID:   uuid.New(),
		ReceiverAccountID: uuid.New(),
		TotalAmount:       decimal.RequireFromString("101"),
		NetAmount:         decimal.RequireFromString("100"),
		CorrelationID:     "corr-1",
		Timestamp:         time.Now().UTC(),
	}
	payload, err := json.Marshal(cmd)
	require.NoError(t, err)
	return cmd, payload
}

func TestTransferCommandHandler_HandleMessage(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("ValidCommandIsProcessed", func(t *testing.T) {
		processing := &MockProcessingService{}
		dlq := &MockDLQProducer{}
		handler := NewTransferCommandHandler(logger, processing, dlq)

		cmd, payload := encodedCommand(t)
		processing.On("ProcessTransfer", mock.Anything, mock.MatchedBy(func(got *shared.TransferCommand) bool {
			return got.TransferID == cmd.TransferID
		})).Return(nil).Once()

		err := handler.HandleMessage(ctx, []byte(cmd.SenderAccountID.String()), payload)

		assert.NoError(t, err)
		processing.AssertExpectations(t)
		dlq.AssertNotCalled(t, "PublishToDLQ")
	})

	t.Run("PoisonMessageGoesToDLQ", func(t *testing.T) {
		processing := &MockProcessingService{}
		dlq := &MockDLQProducer{}
		handler := NewTransferCommandHandler(logger, processing, dlq)

		poison := []byte("not json")
		dlq.On("PublishToDLQ", mock.Anything, "key-1", poison, mock.AnythingOfType("string")).Return(nil).Once()

		err := handler.HandleMessage(ctx, []byte("key-1"), poison)

		assert.NoError(t, err, "parked messages are committed")
		processing.AssertNotCalled(t, "ProcessTransfer")
		dlq.AssertExpectations(t)
	})

	t.Run("DLQFailureLeavesMessageForRetry", func(t *testing.T) {
		processing := &MockProcessingService{}
		dlq := &MockDLQProducer{}
		handler := NewTransferCommandHandler(logger, processing, dlq)

		poison := []byte("not json")
		dlq.On("PublishToDLQ", mock.Anything, "key-1", poison, mock.AnythingOfType("string")).
			Return(errors.New("dlq unavailable")).Once()

		err := handler.HandleMessage(ctx, []byte("key-1"), poison)

		assert.Error(t, err)
		dlq.AssertExpectations(t)
	})

	t.Run("NilDLQFallsBackToRetry", func(t *testing.T) {
		processing := &MockProcessingService{}
		handler := NewTransferCommandHandler(logger, processing, nil)

		err := handler.HandleMessage(ctx, []byte("key-1"), []byte("not json"))

		assert.Error(t, err)
	})

	t.Run("ProcessingErrorIsPropagated", func(t *testing.T) {
		processing := &MockProcessingService{}
		dlq := &MockDLQProducer{}
		handler := NewTransferCommandHandler(logger, processing, dlq)

		cmd, payload := encodedCommand(t)
		processingErr := errors.New("db down")
		processing.On("ProcessTransfer", mock.Anything, mock.Anything).Return(processingErr).Once()

		err := handler.HandleMessage(ctx, []byte(cmd.SenderAccountID.String()), payload)

		assert.ErrorIs(t, err, processingErr)
		dlq.AssertNotCalled(t, "PublishToDLQ")
	})
}
