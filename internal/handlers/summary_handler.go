package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledgersync/internal/services"
)

const defaultSummaryLimit = 5

// SummaryHandler serves the computed views of the ledger.
type SummaryHandler struct {
	ledger services.LedgerServicer
}

// NewSummaryHandler creates a new SummaryHandler.
func NewSummaryHandler(ledger services.LedgerServicer) *SummaryHandler {
	return &SummaryHandler{ledger: ledger}
}

// GetNetWorth returns account balances plus asset values in the base currency
// @Summary     Net worth
// @Tags        summary
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.NetWorth
// @Router      /summary/net-worth [get]
func (h *SummaryHandler) GetNetWorth(c *gin.Context) {
	nw, err := h.ledger.NetWorth(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, nw)
}

// GetTotalsByClass returns asset values grouped by class
// @Summary     Totals by asset class
// @Tags        summary
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]float64
// @Router      /summary/totals-by-class [get]
func (h *SummaryHandler) GetTotalsByClass(c *gin.Context) {
	totals, err := h.ledger.TotalsByClass(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"base_currency": h.ledger.GetPreferences().BaseCurrency,
		"totals":        totals,
	})
}

// GetTopAccounts returns the accounts with the largest balances
// @Summary     Top accounts
// @Tags        summary
// @Produce     json
// @Security    BearerAuth
// @Param       limit query int false "Number of accounts (default 5)"
// @Success     200 {array} services.AccountSummary
// @Router      /summary/top-accounts [get]
func (h *SummaryHandler) GetTopAccounts(c *gin.Context) {
	limit, err := queryLimit(c, defaultSummaryLimit)
	if err != nil {
		respondWithError(c, err)
		return
	}
	top, err := h.ledger.TopAccounts(c.Request.Context(), limit)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": top})
}

// GetRecentTransactions returns the newest transactions
// @Summary     Recent transactions
// @Tags        summary
// @Produce     json
// @Security    BearerAuth
// @Param       limit query int false "Number of transactions (default 5)"
// @Success     200 {array} models.Transaction
// @Router      /summary/recent-transactions [get]
func (h *SummaryHandler) GetRecentTransactions(c *gin.Context) {
	limit, err := queryLimit(c, defaultSummaryLimit)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": h.ledger.RecentTransactions(limit)})
}
