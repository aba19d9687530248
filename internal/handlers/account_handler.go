package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledgersync/internal/currency"
	"ledgersync/internal/models"
	"ledgersync/internal/services"
)

// AccountHandler handles account-related requests.
type AccountHandler struct {
	ledger services.LedgerServicer
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(ledger services.LedgerServicer) *AccountHandler {
	return &AccountHandler{ledger: ledger}
}

// CreateAccountRequest represents the request payload for creating an account
type CreateAccountRequest struct {
	ID             string             `json:"id" binding:"omitempty,max=64"`
	Name           string             `json:"nombre" binding:"required,min=1,max=100"`
	InstitutionID  string             `json:"institucionId" binding:"omitempty,max=64"`
	Kind           models.AccountKind `json:"tipo" binding:"required,account_kind"`
	Currency       currency.Code      `json:"moneda" binding:"required,currency"`
	OpeningBalance float64            `json:"saldoInicial"`
	OpeningDate    string             `json:"fechaApertura" binding:"omitempty,iso8601"`
	InterestRate   *float64           `json:"tasaInteres" binding:"omitempty,gte=0,lte=100"`
	MaturityDate   string             `json:"fechaVencimiento" binding:"omitempty,iso8601"`
	AutoRenew      *bool              `json:"renovacionAutomatica"`
}

// UpdateAccountRequest represents the request payload for updating an account.
// Term deposit fields are dropped when the account is of another kind.
type UpdateAccountRequest struct {
	Name           *string             `json:"nombre" binding:"omitempty,min=1,max=100"`
	InstitutionID  *string             `json:"institucionId" binding:"omitempty,max=64"`
	Kind           *models.AccountKind `json:"tipo" binding:"omitempty,account_kind"`
	Currency       *currency.Code      `json:"moneda" binding:"omitempty,currency"`
	OpeningBalance *float64            `json:"saldoInicial"`
	OpeningDate    *string             `json:"fechaApertura" binding:"omitempty,iso8601"`
	InterestRate   *float64            `json:"tasaInteres" binding:"omitempty,gte=0,lte=100"`
	MaturityDate   *string             `json:"fechaVencimiento" binding:"omitempty,iso8601"`
	AutoRenew      *bool               `json:"renovacionAutomatica"`
}

// BalanceResponse is the computed balance of an account.
type BalanceResponse struct {
	AccountID string        `json:"account_id"`
	Currency  currency.Code `json:"currency"`
	Balance   float64       `json:"balance"`
	Formatted string        `json:"formatted"`
}

// CreateAccount handles the creation of a new account
// @Summary     Create an account
// @Tags        accounts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateAccountRequest true "Account details"
// @Success     201 {object} models.Account "Account created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /accounts [post]
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	account, err := h.ledger.CreateAccount(c.Request.Context(), models.Account{
		ID:             req.ID,
		Name:           req.Name,
		InstitutionID:  req.InstitutionID,
		Kind:           req.Kind,
		Currency:       req.Currency,
		OpeningBalance: req.OpeningBalance,
		OpeningDate:    req.OpeningDate,
		InterestRate:   models.FromPtr(req.InterestRate),
		MaturityDate:   req.MaturityDate,
		AutoRenew:      models.FromPtr(req.AutoRenew),
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"account": account})
}

// ListAccounts returns a page of accounts
// @Summary     List accounts
// @Tags        accounts
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number"
// @Param       page_size query int false "Page size"
// @Success     200 {object} pagination.PageResponse[models.Account]
// @Router      /accounts [get]
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	page, err := pageRequest(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ledger.ListAccounts(page))
}

// GetAccount returns one account
// @Summary     Get an account
// @Tags        accounts
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Account ID"
// @Success     200 {object} models.Account
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /accounts/{id} [get]
func (h *AccountHandler) GetAccount(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	account, err := h.ledger.GetAccount(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

// UpdateAccount applies a partial update
// @Summary     Update an account
// @Tags        accounts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Account ID"
// @Param       request body UpdateAccountRequest true "Fields to change"
// @Success     200 {object} models.Account
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /accounts/{id} [patch]
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	var req UpdateAccountRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	account, err := h.ledger.UpdateAccount(c.Request.Context(), id, services.AccountPatch{
		Name:           req.Name,
		InstitutionID:  req.InstitutionID,
		Kind:           req.Kind,
		Currency:       req.Currency,
		OpeningBalance: req.OpeningBalance,
		OpeningDate:    req.OpeningDate,
		InterestRate:   req.InterestRate,
		MaturityDate:   req.MaturityDate,
		AutoRenew:      req.AutoRenew,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

// DeleteAccount removes an account and the assets it holds
// @Summary     Delete an account
// @Tags        accounts
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Account ID"
// @Success     200 {object} map[string]int "Number of removed assets"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /accounts/{id} [delete]
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	removed, err := h.ledger.DeleteAccount(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed_assets": removed})
}

// GetAccountBalance returns the computed balance of an account
// @Summary     Get an account balance
// @Tags        accounts
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Account ID"
// @Success     200 {object} BalanceResponse
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /accounts/{id}/balance [get]
func (h *AccountHandler) GetAccountBalance(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	account, err := h.ledger.GetAccount(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	balance, err := h.ledger.AccountBalance(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{
		AccountID: id,
		Currency:  account.Currency,
		Balance:   balance,
		Formatted: currency.Format(balance, account.Currency),
	})
}
