// Package components wires the processor's collaborators together.
package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/atlas-transfers/internal/domain/balance"
	"github.com/atlas-transfers/internal/transfer_processor/service"
)

// AccountVerifierImpl implements the AccountVerifier interface against the
// balance store
type AccountVerifierImpl struct {
	balanceRepo balance.Repository
	logger      *slog.Logger
}

// NewAccountVerifier creates a new AccountVerifierImpl
func NewAccountVerifier(balanceRepo balance.Repository, logger *slog.Logger) service.AccountVerifier {
	return &AccountVerifierImpl{
		balanceRepo: balanceRepo,
		logger:      logger,
	}
}

// VerifyAccounts confirms both accounts exist. The sender is checked first,
// so its absence wins when both are missing.
func (v *AccountVerifierImpl) VerifyAccounts(ctx context.Context, senderID, receiverID uuid.UUID) error {
	for _, accountID := range []uuid.UUID{senderID, receiverID} {
		if _, err := v.balanceRepo.GetByAccountID(ctx, accountID); err != nil {
			v.logger.Warn("Account verification failed", "account_id", accountID.String(), "error", err)
			return fmt.Errorf("account %s verification failed: %w", accountID.String(), err)
		}
	}
	return nil
}
