package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/atlas-transfers/internal/api_gateway/middleware"
	"github.com/atlas-transfers/internal/api_gateway/service"
	"github.com/atlas-transfers/internal/domain/event"
	"github.com/atlas-transfers/internal/domain/transfer"
)

// TransferHandler handles HTTP requests for transfer operations
type TransferHandler struct {
	transferService service.TransferService
	logger          *slog.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(logger *slog.Logger, transferService service.TransferService) *TransferHandler {
	return &TransferHandler{
		transferService: transferService,
		logger:          logger,
	}
}

// Create accepts a new transfer for asynchronous processing. The response
// is 202 with the PENDING transfer; an idempotency key replay returns the
// previously accepted transfer with 200.
func (h *TransferHandler) Create(c *gin.Context) {
	var req CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	senderID, err := uuid.Parse(req.SenderAccountID)
	if err != nil {
		RespondBadRequest(c, "Invalid sender account ID")
		return
	}
	receiverID, err := uuid.Parse(req.ReceiverAccountID)
	if err != nil {
		RespondBadRequest(c, "Invalid receiver account ID")
		return
	}

	t, err := transfer.New(senderID, receiverID, req.Amount, req.Description, transfer.Type(req.Type), req.ExternalID, req.IdempotencyKey)
	if err != nil {
		h.logger.Warn("Rejected transfer request",
			"sender_account_id", req.SenderAccountID,
			"receiver_account_id", req.ReceiverAccountID,
			"error", err,
		)
		RespondBadRequest(c, err.Error())
		return
	}

	result, existing, err := h.transferService.CreateTransfer(c.Request.Context(), t, middleware.GetCorrelationID(c))
	if err != nil {
		h.logger.Error("Failed to create transfer", "error", err)
		RespondInternalError(c)
		return
	}

	if existing {
		RespondOK(c, mapTransferToResponse(result))
		return
	}

	RespondAccepted(c, mapTransferToResponse(result))
}

// GetByID retrieves transfer details by its ID, returns 404 if not found
func (h *TransferHandler) GetByID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid transfer ID")
		return
	}

	t, err := h.transferService.GetTransferByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, transfer.ErrTransferNotFound{}) {
			RespondNotFound(c, "Transfer not found")
			return
		}
		h.logger.Error("Failed to get transfer", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapTransferToResponse(t))
}

// GetEvents retrieves the audit trail for a transfer
func (h *TransferHandler) GetEvents(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid transfer ID")
		return
	}

	events, err := h.transferService.GetTransferEvents(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, transfer.ErrTransferNotFound{}) {
			RespondNotFound(c, "Transfer not found")
			return
		}
		h.logger.Error("Failed to get transfer events", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]TransferEventResponse, 0, len(events))
	for _, e := range events {
		responses = append(responses, mapEventToResponse(e))
	}
	RespondOK(c, responses)
}

// ListByAccountID retrieves paginated transfer history for an account,
// optionally filtered by status and type
func (h *TransferHandler) ListByAccountID(c *gin.Context) {
	accountIDParam := c.Param("id")
	accountID, err := uuid.Parse(accountIDParam)
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	var params ListTransfersParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.logger.Error("Invalid list parameters", "error", err)
		RespondBadRequest(c, "Invalid list parameters")
		return
	}

	filter := transfer.ListFilter{
		AccountID: accountID,
		Page:      params.Page,
		Limit:     params.Limit,
	}
	if params.Status != "" {
		status := transfer.Status(params.Status)
		filter.Status = &status
	}
	if params.Type != "" {
		transferType := transfer.Type(params.Type)
		filter.Type = &transferType
	}

	transfers, total, err := h.transferService.ListTransfers(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list transfers", "account_id", accountIDParam, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]TransferResponse, 0, len(transfers))
	for _, t := range transfers {
		responses = append(responses, mapTransferToResponse(t))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, params.Page, params.Limit, int(total))
}

// mapTransferToResponse maps a transfer entity to a response DTO
func mapTransferToResponse(t *transfer.Transfer) TransferResponse {
	response := TransferResponse{
		ID:                t.ID.String(),
		SenderAccountID:   t.SenderAccountID.String(),
		ReceiverAccountID: t.ReceiverAccountID.String(),
		Amount:            t.Amount,
		Fee:               t.Fee,
		TotalAmount:       t.TotalAmount,
		Description:       t.Description,
		Type:              string(t.Type),
		Status:            string(t.Status),
		ExternalID:        t.ExternalID,
		FailureReason:     t.FailureReason,
		CreatedAt:         t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         t.UpdatedAt.Format(time.RFC3339),
	}

	if t.CompletedAt != nil {
		response.CompletedAt = t.CompletedAt.Format(time.RFC3339)
	}

	return response
}

// mapEventToResponse maps an audit event to a response DTO
func mapEventToResponse(e *event.TransferEvent) TransferEventResponse {
	response := TransferEventResponse{
		ID:          e.ID.String(),
		TransferID:  e.TransferID.String(),
		EventType:   string(e.EventType),
		NewStatus:   string(e.NewStatus),
		Description: e.Description,
		PerformedBy: e.PerformedBy,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}

	if e.PreviousStatus != nil {
		response.PreviousStatus = string(*e.PreviousStatus)
	}

	return response
}
