package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ledgersync/internal/currency"
	apperrors "ledgersync/internal/errors"
	"ledgersync/internal/rates"
)

// RateSource is the part of the rate cache the handler uses.
type RateSource interface {
	Rates(ctx context.Context) rates.Snapshot
	Refresh(ctx context.Context) rates.Snapshot
	Convert(ctx context.Context, amount float64, from, to currency.Code) float64
}

// RatesHandler serves exchange rates.
type RatesHandler struct {
	source RateSource
}

// NewRatesHandler creates a new RatesHandler
func NewRatesHandler(source RateSource) *RatesHandler {
	return &RatesHandler{source: source}
}

// ConvertQuery represents the query for a conversion
type ConvertQuery struct {
	Amount float64 `form:"amount" binding:"gte=0"`
	From   string  `form:"from" binding:"required,currency"`
	To     string  `form:"to" binding:"required,currency"`
}

// ConvertResponse is the result of a conversion
type ConvertResponse struct {
	Amount    float64       `json:"amount"`
	From      currency.Code `json:"from"`
	To        currency.Code `json:"to"`
	Converted float64       `json:"converted"`
	Formatted string        `json:"formatted"`
}

// GetRates returns the cached rate table
// @Summary     Exchange rates
// @Tags        rates
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} rates.Snapshot
// @Router      /rates [get]
func (h *RatesHandler) GetRates(c *gin.Context) {
	c.JSON(http.StatusOK, h.source.Rates(c.Request.Context()))
}

// RefreshRates forces a fetch, subject to the minimum refresh interval
// @Summary     Refresh exchange rates
// @Tags        rates
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} rates.Snapshot
// @Router      /rates/refresh [post]
func (h *RatesHandler) RefreshRates(c *gin.Context) {
	c.JSON(http.StatusOK, h.source.Refresh(c.Request.Context()))
}

// Convert converts an amount between two currencies
// @Summary     Convert amount
// @Tags        rates
// @Produce     json
// @Security    BearerAuth
// @Param       amount query number true "Amount"
// @Param       from   query string true "Source currency"
// @Param       to     query string true "Target currency"
// @Success     200 {object} ConvertResponse
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /rates/convert [get]
func (h *RatesHandler) Convert(c *gin.Context) {
	var q ConvertQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	from, to := currency.Code(q.From), currency.Code(q.To)
	converted := currency.RoundFloat(h.source.Convert(c.Request.Context(), q.Amount, from, to), to)
	c.JSON(http.StatusOK, ConvertResponse{
		Amount:    q.Amount,
		From:      from,
		To:        to,
		Converted: converted,
		Formatted: currency.Format(converted, to),
	})
}
