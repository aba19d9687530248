package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledgersync/internal/currency"
	"ledgersync/internal/models"
	"ledgersync/internal/services"
)

// AssetHandler handles asset requests.
type AssetHandler struct {
	ledger services.LedgerServicer
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(ledger services.LedgerServicer) *AssetHandler {
	return &AssetHandler{ledger: ledger}
}

// CreateAssetRequest represents the request payload for adding an asset.
type CreateAssetRequest struct {
	ID          string            `json:"id" binding:"omitempty,max=64"`
	Class       models.AssetClass `json:"clase" binding:"required,asset_class"`
	Ticker      string            `json:"ticker" binding:"omitempty,max=20"`
	Currency    currency.Code     `json:"moneda" binding:"required,currency"`
	Quantity    float64           `json:"cantidad" binding:"gte=0"`
	AverageCost *float64          `json:"costoPromedio" binding:"omitempty,gte=0"`
	AccountID   string            `json:"cuentaId" binding:"required"`
}

// UpdateAssetRequest represents the request payload for updating an asset.
type UpdateAssetRequest struct {
	Class       *models.AssetClass `json:"clase" binding:"omitempty,asset_class"`
	Ticker      *string            `json:"ticker" binding:"omitempty,max=20"`
	Currency    *currency.Code     `json:"moneda" binding:"omitempty,currency"`
	Quantity    *float64           `json:"cantidad" binding:"omitempty,gte=0"`
	AverageCost *float64           `json:"costoPromedio" binding:"omitempty,gte=0"`
	AccountID   *string            `json:"cuentaId" binding:"omitempty,min=1"`
}

// CreateAsset adds an asset to an account
// @Summary     Create an asset
// @Tags        assets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateAssetRequest true "Asset details"
// @Success     201 {object} models.Asset "Asset created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /assets [post]
func (h *AssetHandler) CreateAsset(c *gin.Context) {
	var req CreateAssetRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	asset, err := h.ledger.CreateAsset(c.Request.Context(), models.Asset{
		ID:          req.ID,
		Class:       req.Class,
		Ticker:      req.Ticker,
		Currency:    req.Currency,
		Quantity:    req.Quantity,
		AverageCost: models.FromPtr(req.AverageCost),
		AccountID:   req.AccountID,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"asset": asset})
}

// ListAssets returns a page of assets, optionally filtered by account
// @Summary     List assets
// @Tags        assets
// @Produce     json
// @Security    BearerAuth
// @Param       account_id query string false "Only assets held in this account"
// @Param       page       query int    false "Page number"
// @Param       page_size  query int    false "Page size"
// @Success     200 {object} pagination.PageResponse[models.Asset]
// @Router      /assets [get]
func (h *AssetHandler) ListAssets(c *gin.Context) {
	page, err := pageRequest(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ledger.ListAssets(c.Query("account_id"), page))
}

// GetAsset returns one asset
// @Summary     Get an asset
// @Tags        assets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Asset ID"
// @Success     200 {object} models.Asset
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /assets/{id} [get]
func (h *AssetHandler) GetAsset(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	asset, err := h.ledger.GetAsset(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": asset})
}

// UpdateAsset applies a partial update
// @Summary     Update an asset
// @Tags        assets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string             true "Asset ID"
// @Param       request body UpdateAssetRequest true "Fields to change"
// @Success     200 {object} models.Asset
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /assets/{id} [patch]
func (h *AssetHandler) UpdateAsset(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	var req UpdateAssetRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	asset, err := h.ledger.UpdateAsset(c.Request.Context(), id, services.AssetPatch{
		Class:       req.Class,
		Ticker:      req.Ticker,
		Currency:    req.Currency,
		Quantity:    req.Quantity,
		AverageCost: req.AverageCost,
		AccountID:   req.AccountID,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": asset})
}

// DeleteAsset removes an asset
// @Summary     Delete an asset
// @Tags        assets
// @Security    BearerAuth
// @Param       id path string true "Asset ID"
// @Success     204
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /assets/{id} [delete]
func (h *AssetHandler) DeleteAsset(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.ledger.DeleteAsset(c.Request.Context(), id); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
