package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledgersync/internal/models"
	"ledgersync/internal/services"
)

// SyncHandler exposes replication with the remote spreadsheet.
type SyncHandler struct {
	sync services.SyncServicer
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(sync services.SyncServicer) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// EnableSyncRequest represents the request payload for enabling auto-sync.
type EnableSyncRequest struct {
	SpreadsheetID string `json:"spreadsheet_id" binding:"required,min=10,max=200"`
}

// ExportWorkbookRequest represents the request payload for an xlsx export.
// FileName is created inside the server's export directory.
type ExportWorkbookRequest struct {
	FileName string `json:"file_name" binding:"required,max=100,workbook_name"`
}

// GetStatus returns the auto-sync state
// @Summary     Sync status
// @Tags        sync
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.SyncStatus
// @Router      /sync/status [get]
func (h *SyncHandler) GetStatus(c *gin.Context) {
	status, err := h.sync.Status(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Enable turns auto-sync on for a spreadsheet
// @Summary     Enable auto-sync
// @Tags        sync
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body EnableSyncRequest true "Target spreadsheet"
// @Success     200 {object} services.SyncStatus
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /sync/enable [post]
func (h *SyncHandler) Enable(c *gin.Context) {
	var req EnableSyncRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.sync.Enable(c.Request.Context(), req.SpreadsheetID); err != nil {
		respondWithError(c, err)
		return
	}
	h.GetStatus(c)
}

// Disable turns auto-sync off
// @Summary     Disable auto-sync
// @Tags        sync
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.SyncStatus
// @Router      /sync/disable [post]
func (h *SyncHandler) Disable(c *gin.Context) {
	if err := h.sync.Disable(c.Request.Context()); err != nil {
		respondWithError(c, err)
		return
	}
	h.GetStatus(c)
}

// Push writes the ledger to the remote now
// @Summary     Push now
// @Tags        sync
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} MessageResponse
// @Failure     401 {object} ErrorResponse "No valid credential"
// @Failure     409 {object} ErrorResponse "A push is running or the remote needs migration"
// @Failure     412 {object} ErrorResponse "No spreadsheet configured"
// @Failure     502 {object} ErrorResponse "Remote failure"
// @Router      /sync/push [post]
func (h *SyncHandler) Push(c *gin.Context) {
	if err := h.sync.PushNow(c.Request.Context()); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Ledger pushed"})
}

// Pull merges the remote ledger into the local one
// @Summary     Pull
// @Tags        sync
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.PullResult
// @Failure     404 {object} ErrorResponse "Remote is empty"
// @Failure     502 {object} ErrorResponse "Remote failure"
// @Router      /sync/pull [post]
func (h *SyncHandler) Pull(c *gin.Context) {
	result, err := h.sync.Pull(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Detect reports the layout of the remote spreadsheet
// @Summary     Detect remote format
// @Tags        sync
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]string
// @Router      /sync/detect [get]
func (h *SyncHandler) Detect(c *gin.Context) {
	format, err := h.sync.DetectFormat(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"format": format})
}

// Migrate converts a JSON blob spreadsheet to the tabular layout
// @Summary     Migrate remote format
// @Tags        sync
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.MigrateResult
// @Router      /sync/migrate [post]
func (h *SyncHandler) Migrate(c *gin.Context) {
	result, err := h.sync.Migrate(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExportWorkbook writes the ledger to an xlsx file in the export directory
// @Summary     Export workbook
// @Tags        sync
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ExportWorkbookRequest true "Workbook file name"
// @Success     200 {object} MessageResponse
// @Failure     400 {object} ErrorResponse "Not a plain xlsx file name"
// @Router      /sync/export-xlsx [post]
func (h *SyncHandler) ExportWorkbook(c *gin.Context) {
	var req ExportWorkbookRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.sync.ExportWorkbook(c.Request.Context(), req.FileName); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Workbook exported as " + req.FileName})
}

// GetHistory returns recorded sync outcomes, newest first
// @Summary     Sync history
// @Tags        sync
// @Produce     json
// @Security    BearerAuth
// @Param       operation query string false "push, pull or migrate"
// @Param       page      query int    false "Page number"
// @Param       page_size query int    false "Page size"
// @Success     200 {object} pagination.PageResponse[models.SyncLog]
// @Router      /sync/history [get]
func (h *SyncHandler) GetHistory(c *gin.Context) {
	page, err := pageRequest(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	history, err := h.sync.History(c.Request.Context(), models.SyncOperation(c.Query("operation")), page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}
