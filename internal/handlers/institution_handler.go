package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledgersync/internal/models"
	"ledgersync/internal/services"
)

// InstitutionHandler handles institution requests.
type InstitutionHandler struct {
	ledger services.LedgerServicer
}

// NewInstitutionHandler creates a new InstitutionHandler.
func NewInstitutionHandler(ledger services.LedgerServicer) *InstitutionHandler {
	return &InstitutionHandler{ledger: ledger}
}

// CreateInstitutionRequest represents the request payload for creating an institution.
type CreateInstitutionRequest struct {
	ID   string                 `json:"id" binding:"omitempty,max=64"`
	Name string                 `json:"nombre" binding:"required,min=1,max=100"`
	Kind models.InstitutionKind `json:"tipo" binding:"omitempty,institution_kind"`
}

// UpdateInstitutionRequest represents the request payload for updating an institution.
type UpdateInstitutionRequest struct {
	Name *string                 `json:"nombre" binding:"omitempty,min=1,max=100"`
	Kind *models.InstitutionKind `json:"tipo" binding:"omitempty,institution_kind"`
}

// CreateInstitution handles the creation of an institution
// @Summary     Create an institution
// @Tags        institutions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateInstitutionRequest true "Institution details"
// @Success     201 {object} models.Institution "Institution created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /institutions [post]
func (h *InstitutionHandler) CreateInstitution(c *gin.Context) {
	var req CreateInstitutionRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	inst, err := h.ledger.CreateInstitution(c.Request.Context(), models.Institution{
		ID:   req.ID,
		Name: req.Name,
		Kind: req.Kind,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"institution": inst})
}

// ListInstitutions returns a page of institutions
// @Summary     List institutions
// @Tags        institutions
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number"
// @Param       page_size query int false "Page size"
// @Success     200 {object} pagination.PageResponse[models.Institution]
// @Router      /institutions [get]
func (h *InstitutionHandler) ListInstitutions(c *gin.Context) {
	page, err := pageRequest(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ledger.ListInstitutions(page))
}

// GetInstitution returns one institution
// @Summary     Get an institution
// @Tags        institutions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Institution ID"
// @Success     200 {object} models.Institution
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /institutions/{id} [get]
func (h *InstitutionHandler) GetInstitution(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	inst, err := h.ledger.GetInstitution(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"institution": inst})
}

// UpdateInstitution applies a partial update
// @Summary     Update an institution
// @Tags        institutions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                   true "Institution ID"
// @Param       request body UpdateInstitutionRequest true "Fields to change"
// @Success     200 {object} models.Institution
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /institutions/{id} [patch]
func (h *InstitutionHandler) UpdateInstitution(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	var req UpdateInstitutionRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	inst, err := h.ledger.UpdateInstitution(c.Request.Context(), id, services.InstitutionPatch{
		Name: req.Name,
		Kind: req.Kind,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"institution": inst})
}

// DeleteInstitution removes an institution
// @Summary     Delete an institution
// @Tags        institutions
// @Security    BearerAuth
// @Param       id path string true "Institution ID"
// @Success     204
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /institutions/{id} [delete]
func (h *InstitutionHandler) DeleteInstitution(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.ledger.DeleteInstitution(c.Request.Context(), id); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
