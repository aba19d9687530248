package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledgersync/internal/models"
	"ledgersync/internal/services"
)

// TransactionHandler handles transaction-related requests
type TransactionHandler struct {
	ledger services.LedgerServicer
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(ledger services.LedgerServicer) *TransactionHandler {
	return &TransactionHandler{ledger: ledger}
}

// CreateTransactionRequest represents the request payload for recording a transaction
type CreateTransactionRequest struct {
	ID              string                 `json:"id" binding:"omitempty,max=64"`
	Date            string                 `json:"fecha" binding:"required,iso8601"`
	Kind            models.TransactionKind `json:"tipo" binding:"required,transaction_kind"`
	SourceAccountID string                 `json:"cuentaOrigenId"`
	DestAccountID   string                 `json:"cuentaDestinoId"`
	AssetID         string                 `json:"activoId"`
	Amount          *float64               `json:"monto" binding:"omitempty,gte=0"`
	Quantity        *float64               `json:"cantidad" binding:"omitempty,gte=0"`
	Price           *float64               `json:"precio" binding:"omitempty,gte=0"`
	Fee             *float64               `json:"comision" binding:"omitempty,gte=0"`
	Memo            string                 `json:"concepto" binding:"max=500"`
	Tags            []string               `json:"etiquetas" binding:"omitempty,max=20,dive,max=50"`
}

// UpdateTransactionRequest represents the request payload for updating a transaction
type UpdateTransactionRequest struct {
	Date            *string                 `json:"fecha" binding:"omitempty,iso8601"`
	Kind            *models.TransactionKind `json:"tipo" binding:"omitempty,transaction_kind"`
	SourceAccountID *string                 `json:"cuentaOrigenId"`
	DestAccountID   *string                 `json:"cuentaDestinoId"`
	AssetID         *string                 `json:"activoId"`
	Amount          *float64                `json:"monto" binding:"omitempty,gte=0"`
	Quantity        *float64                `json:"cantidad" binding:"omitempty,gte=0"`
	Price           *float64                `json:"precio" binding:"omitempty,gte=0"`
	Fee             *float64                `json:"comision" binding:"omitempty,gte=0"`
	Memo            *string                 `json:"concepto" binding:"omitempty,max=500"`
	Tags            *[]string               `json:"etiquetas" binding:"omitempty,max=20"`
}

// CreateTransaction records a transaction
// @Summary     Create a transaction
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTransactionRequest true "Transaction details"
// @Success     201 {object} models.Transaction "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req CreateTransactionRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	tx, err := h.ledger.CreateTransaction(c.Request.Context(), models.Transaction{
		ID:              req.ID,
		Date:            req.Date,
		Kind:            req.Kind,
		SourceAccountID: req.SourceAccountID,
		DestAccountID:   req.DestAccountID,
		AssetID:         req.AssetID,
		Amount:          models.FromPtr(req.Amount),
		Quantity:        models.FromPtr(req.Quantity),
		Price:           models.FromPtr(req.Price),
		Fee:             models.FromPtr(req.Fee),
		Memo:            req.Memo,
		Tags:            req.Tags,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": tx})
}

// ListTransactions returns transactions newest first
// @Summary     List transactions
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       account_id query string false "Only transactions touching this account"
// @Param       page       query int    false "Page number"
// @Param       page_size  query int    false "Page size"
// @Success     200 {object} pagination.PageResponse[models.Transaction]
// @Router      /transactions [get]
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	page, err := pageRequest(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ledger.ListTransactions(c.Query("account_id"), page))
}

// GetTransaction returns one transaction
// @Summary     Get a transaction
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} models.Transaction
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	tx, err := h.ledger.GetTransaction(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// UpdateTransaction applies a partial update
// @Summary     Update a transaction
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                   true "Transaction ID"
// @Param       request body UpdateTransactionRequest true "Fields to change"
// @Success     200 {object} models.Transaction
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /transactions/{id} [patch]
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	var req UpdateTransactionRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	tx, err := h.ledger.UpdateTransaction(c.Request.Context(), id, services.TransactionPatch{
		Date:            req.Date,
		Kind:            req.Kind,
		SourceAccountID: req.SourceAccountID,
		DestAccountID:   req.DestAccountID,
		AssetID:         req.AssetID,
		Amount:          req.Amount,
		Quantity:        req.Quantity,
		Price:           req.Price,
		Fee:             req.Fee,
		Memo:            req.Memo,
		Tags:            req.Tags,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// DeleteTransaction removes a transaction
// @Summary     Delete a transaction
// @Tags        transactions
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     204
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.ledger.DeleteTransaction(c.Request.Context(), id); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
