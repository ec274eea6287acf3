package handler

import "github.com/shopspring/decimal"

// CreateAccountRequest represents a request to open a new account
type CreateAccountRequest struct {
	OwnerName      string          `json:"owner_name" binding:"required"`
	DocumentNumber string          `json:"document_number" binding:"required"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// AccountBalanceResponse represents an account balance in API responses
type AccountBalanceResponse struct {
	AccountID      string          `json:"account_id"`
	OwnerName      string          `json:"owner_name"`
	DocumentNumber string          `json:"document_number"`
	Balance        decimal.Decimal `json:"balance"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

// BalanceHistoryResponse represents one balance history row in API responses
type BalanceHistoryResponse struct {
	ID              int64           `json:"id"`
	AccountID       string          `json:"account_id"`
	TransferID      string          `json:"transfer_id,omitempty"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	Amount          decimal.Decimal `json:"amount"`
	Operation       string          `json:"operation"`
	Description     string          `json:"description,omitempty"`
	CreatedAt       string          `json:"created_at"`
}

// CreateTransferRequest represents a request to initiate a transfer
type CreateTransferRequest struct {
	SenderAccountID   string          `json:"sender_account_id" binding:"required,uuid"`
	ReceiverAccountID string          `json:"receiver_account_id" binding:"required,uuid"`
	Amount            decimal.Decimal `json:"amount" binding:"required"`
	Description       string          `json:"description"`
	Type              string          `json:"type" binding:"required,oneof=TRANSFER PIX TED DOC PAYMENT DEPOSIT WITHDRAWAL"`
	ExternalID        string          `json:"external_id,omitempty"`
	IdempotencyKey    string          `json:"idempotency_key,omitempty"`
}

// TransferResponse represents a transfer in API responses
type TransferResponse struct {
	ID                string          `json:"id"`
	SenderAccountID   string          `json:"sender_account_id"`
	ReceiverAccountID string          `json:"receiver_account_id"`
	Amount            decimal.Decimal `json:"amount"`
	Fee               decimal.Decimal `json:"fee"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Description       string          `json:"description,omitempty"`
	Type              string          `json:"type"`
	Status            string          `json:"status"`
	ExternalID        string          `json:"external_id,omitempty"`
	FailureReason     string          `json:"failure_reason,omitempty"`
	CreatedAt         string          `json:"created_at"`
	UpdatedAt         string          `json:"updated_at"`
	CompletedAt       string          `json:"completed_at,omitempty"`
}

// TransferEventResponse represents one audit trail event in API responses
type TransferEventResponse struct {
	ID             string `json:"id"`
	TransferID     string `json:"transfer_id"`
	EventType      string `json:"event_type"`
	PreviousStatus string `json:"previous_status,omitempty"`
	NewStatus      string `json:"new_status"`
	Description    string `json:"description,omitempty"`
	PerformedBy    string `json:"performed_by"`
	CreatedAt      string `json:"created_at"`
}

// ListTransfersParams represents query parameters for the transfer list endpoint
type ListTransfersParams struct {
	Page   int    `form:"page,default=1" binding:"min=1"`
	Limit  int    `form:"limit,default=10" binding:"min=1,max=100"`
	Status string `form:"status" binding:"omitempty,oneof=PENDING PROCESSING COMPLETED FAILED CANCELLED REVERSED"`
	Type   string `form:"type" binding:"omitempty,oneof=TRANSFER PIX TED DOC PAYMENT DEPOSIT WITHDRAWAL"`
}

// PaginationParams represents pagination parameters for history endpoints
type PaginationParams struct {
	Page  int `form:"page,default=1" binding:"min=1"`
	Limit int `form:"limit,default=10" binding:"min=1,max=100"`
}
