package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/atlas-transfers/internal/balance_ledger"
	"github.com/atlas-transfers/internal/domain/balance"
)

// AccountHandler handles HTTP requests for account operations
type AccountHandler struct {
	ledger balance_ledger.Service
	logger *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, ledger balance_ledger.Service) *AccountHandler {
	return &AccountHandler{
		ledger: ledger,
		logger: logger,
	}
}

// Create opens a new account, rejecting duplicate document numbers
func (h *AccountHandler) Create(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	account, err := h.ledger.CreateAccount(c.Request.Context(), req.OwnerName, req.DocumentNumber, req.InitialBalance)
	if err != nil {
		var duplicateErr balance.ErrDuplicateAccount
		if errors.As(err, &duplicateErr) {
			h.logger.Warn("Attempt to create account with duplicate document number", "document_number", duplicateErr.DocumentNumber)
			RespondConflict(c, "Account with this document number already exists")
			return
		}
		if errors.Is(err, balance.ErrEmptyOwnerName) ||
			errors.Is(err, balance.ErrEmptyDocumentNumber) ||
			errors.Is(err, balance.ErrNegativeInitialAmount) {
			RespondBadRequest(c, err.Error())
			return
		}
		h.logger.Error("Failed to create account", "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, mapAccountToResponse(account))
}

// GetBalance retrieves an account's balance, returning 404 if the account
// doesn't exist
func (h *AccountHandler) GetBalance(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	account, err := h.ledger.GetBalance(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, balance.ErrAccountNotFound{}) {
			RespondNotFound(c, "Account not found")
			return
		}
		h.logger.Error("Failed to get balance", "account_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapAccountToResponse(account))
}

// GetHistory retrieves paginated balance history for an account
func (h *AccountHandler) GetHistory(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	offset := (pagination.Page - 1) * pagination.Limit
	entries, err := h.ledger.GetHistory(c.Request.Context(), id, pagination.Limit, offset)
	if err != nil {
		if errors.Is(err, balance.ErrAccountNotFound{}) {
			RespondNotFound(c, "Account not found")
			return
		}
		h.logger.Error("Failed to get balance history", "account_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]BalanceHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, mapHistoryToResponse(entry))
	}

	RespondWithData(c, http.StatusOK, responses)
}

// mapAccountToResponse maps an account balance entity to a response DTO
func mapAccountToResponse(account *balance.AccountBalance) AccountBalanceResponse {
	return AccountBalanceResponse{
		AccountID:      account.AccountID.String(),
		OwnerName:      account.OwnerName,
		DocumentNumber: account.DocumentNumber,
		Balance:        account.Balance,
		CreatedAt:      account.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      account.UpdatedAt.Format(time.RFC3339),
	}
}

// mapHistoryToResponse maps a balance history row to a response DTO
func mapHistoryToResponse(entry *balance.History) BalanceHistoryResponse {
	response := BalanceHistoryResponse{
		ID:              entry.ID,
		AccountID:       entry.AccountID.String(),
		PreviousBalance: entry.PreviousBalance,
		NewBalance:      entry.NewBalance,
		Amount:          entry.Amount,
		Operation:       string(entry.Operation),
		Description:     entry.Description,
		CreatedAt:       entry.CreatedAt.Format(time.RFC3339),
	}

	if entry.TransferID != nil {
		response.TransferID = entry.TransferID.String()
	}

	return response
}
