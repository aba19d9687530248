package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"ledgersync/internal/currency"
	apperrors "ledgersync/internal/errors"
	"ledgersync/internal/services"
)

// maxImportBytes bounds the size of an imported document.
const maxImportBytes = 8 << 20

// DocumentHandler handles whole-ledger operations and preferences.
type DocumentHandler struct {
	ledger services.LedgerServicer
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(ledger services.LedgerServicer) *DocumentHandler {
	return &DocumentHandler{ledger: ledger}
}

// UpdatePreferencesRequest represents the request payload for updating preferences.
type UpdatePreferencesRequest struct {
	BaseCurrency *currency.Code `json:"monedaBase" binding:"omitempty,currency"`
	Timezone     *string        `json:"timezone" binding:"omitempty,timezone"`
}

// GetPreferences returns the ledger preferences
// @Summary     Get preferences
// @Tags        preferences
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} models.Preferences
// @Router      /preferences [get]
func (h *DocumentHandler) GetPreferences(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"preferences": h.ledger.GetPreferences()})
}

// UpdatePreferences applies a partial update to the preferences
// @Summary     Update preferences
// @Tags        preferences
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body UpdatePreferencesRequest true "Fields to change"
// @Success     200 {object} models.Preferences
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /preferences [patch]
func (h *DocumentHandler) UpdatePreferences(c *gin.Context) {
	var req UpdatePreferencesRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}
	prefs, err := h.ledger.UpdatePreferences(c.Request.Context(), services.PreferencesPatch{
		BaseCurrency: req.BaseCurrency,
		Timezone:     req.Timezone,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

// ExportDocument returns the whole ledger as JSON
// @Summary     Export the ledger
// @Tags        document
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} models.Document
// @Router      /document [get]
func (h *DocumentHandler) ExportDocument(c *gin.Context) {
	data, err := h.ledger.Export()
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="ledger.json"`)
	c.Data(http.StatusOK, "application/json", data)
}

// ImportDocument replaces the ledger with the request body
// @Summary     Import a ledger
// @Description Missing collections import as empty and missing preferences keep the current ones.
// @Tags        document
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body models.Document true "Ledger document"
// @Success     200 {object} models.Document
// @Failure     422 {object} ErrorResponse "Invalid document"
// @Router      /document/import [post]
func (h *DocumentHandler) ImportDocument(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes+1))
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "failed to read request body"))
		return
	}
	if len(raw) > maxImportBytes {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "document is too large"))
		return
	}

	doc, err := h.ledger.Import(c.Request.Context(), raw)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": doc})
}

// ResetDocument replaces the ledger with an empty one
// @Summary     Reset the ledger
// @Tags        document
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} models.Document
// @Router      /document/reset [post]
func (h *DocumentHandler) ResetDocument(c *gin.Context) {
	doc, err := h.ledger.Reset(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": doc})
}

// ClearAll wipes the local ledger and the stored credential
// @Summary     Clear all local data
// @Tags        document
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} MessageResponse
// @Router      /document [delete]
func (h *DocumentHandler) ClearAll(c *gin.Context) {
	if err := h.ledger.ClearAll(c.Request.Context()); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "All local data cleared"})
}
