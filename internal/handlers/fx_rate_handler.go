package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledgersync/internal/currency"
	"ledgersync/internal/models"
	"ledgersync/internal/services"
)

// FxRateHandler handles manually recorded exchange rates.
type FxRateHandler struct {
	ledger services.LedgerServicer
}

// NewFxRateHandler creates a new FxRateHandler.
func NewFxRateHandler(ledger services.LedgerServicer) *FxRateHandler {
	return &FxRateHandler{ledger: ledger}
}

// CreateFxRateRequest represents the request payload for recording a rate.
// An empty date records the rate for today.
type CreateFxRateRequest struct {
	ID   string        `json:"id" binding:"omitempty,max=64"`
	From currency.Code `json:"from" binding:"required,currency"`
	To   currency.Code `json:"to" binding:"required,currency,nefield=From"`
	Rate float64       `json:"tasa" binding:"required,gt=0"`
	Date string        `json:"fecha" binding:"omitempty,iso8601"`
}

// UpdateFxRateRequest represents the request payload for updating a rate.
type UpdateFxRateRequest struct {
	From *currency.Code `json:"from" binding:"omitempty,currency"`
	To   *currency.Code `json:"to" binding:"omitempty,currency"`
	Rate *float64       `json:"tasa" binding:"omitempty,gt=0"`
	Date *string        `json:"fecha" binding:"omitempty,iso8601"`
}

// CreateFxRate records a rate
// @Summary     Create an FX rate
// @Tags        fx-rates
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateFxRateRequest true "Rate details"
// @Success     201 {object} models.FxRate "Rate created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /fx-rates [post]
func (h *FxRateHandler) CreateFxRate(c *gin.Context) {
	var req CreateFxRateRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}
	rate, err := h.ledger.CreateFxRate(c.Request.Context(), models.FxRate{
		ID:   req.ID,
		From: req.From,
		To:   req.To,
		Rate: req.Rate,
		Date: req.Date,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"fx_rate": rate})
}

// ListFxRates returns a page of recorded rates
// @Summary     List FX rates
// @Tags        fx-rates
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number"
// @Param       page_size query int false "Page size"
// @Success     200 {object} pagination.PageResponse[models.FxRate]
// @Router      /fx-rates [get]
func (h *FxRateHandler) ListFxRates(c *gin.Context) {
	page, err := pageRequest(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ledger.ListFxRates(page))
}

// GetFxRate returns one rate
// @Summary     Get an FX rate
// @Tags        fx-rates
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Rate ID"
// @Success     200 {object} models.FxRate
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /fx-rates/{id} [get]
func (h *FxRateHandler) GetFxRate(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	rate, err := h.ledger.GetFxRate(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fx_rate": rate})
}

// UpdateFxRate applies a partial update
// @Summary     Update an FX rate
// @Tags        fx-rates
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true "Rate ID"
// @Param       request body UpdateFxRateRequest true "Fields to change"
// @Success     200 {object} models.FxRate
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /fx-rates/{id} [patch]
func (h *FxRateHandler) UpdateFxRate(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	var req UpdateFxRateRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}
	rate, err := h.ledger.UpdateFxRate(c.Request.Context(), id, services.FxRatePatch{
		From: req.From,
		To:   req.To,
		Rate: req.Rate,
		Date: req.Date,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fx_rate": rate})
}

// DeleteFxRate removes a rate
// @Summary     Delete an FX rate
// @Tags        fx-rates
// @Security    BearerAuth
// @Param       id path string true "Rate ID"
// @Success     204
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /fx-rates/{id} [delete]
func (h *FxRateHandler) DeleteFxRate(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.ledger.DeleteFxRate(c.Request.Context(), id); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
