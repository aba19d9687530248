package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ledgersync/internal/auth"
	apperrors "ledgersync/internal/errors"
)

// CredentialHolder is the part of the credential provider the handler uses.
type CredentialHolder interface {
	Current() (auth.Record, bool)
	Set(ctx context.Context, rec auth.Record) error
	Clear(ctx context.Context) error
}

// CredentialsHandler lets an OAuth helper hand over the remote bearer token.
type CredentialsHandler struct {
	creds CredentialHolder
}

// NewCredentialsHandler creates a new CredentialsHandler
func NewCredentialsHandler(creds CredentialHolder) *CredentialsHandler {
	return &CredentialsHandler{creds: creds}
}

// SetCredentialRequest represents the credential payload
type SetCredentialRequest struct {
	AccessToken string     `json:"access_token" binding:"required"`
	ExpiresAt   int64      `json:"expires_at" binding:"required,gt=0"`
	User        *auth.User `json:"user"`
}

// CredentialStatus describes the held credential without exposing the token.
type CredentialStatus struct {
	Authenticated bool       `json:"authenticated"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	User          *auth.User `json:"user,omitempty"`
}

func statusOf(rec auth.Record, ok bool) CredentialStatus {
	if !ok {
		return CredentialStatus{}
	}
	exp := time.UnixMilli(rec.ExpiresAt).UTC()
	return CredentialStatus{Authenticated: true, ExpiresAt: &exp, User: rec.User}
}

// GetCredential reports whether a usable credential is held
// @Summary     Credential status
// @Tags        credentials
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {object} CredentialStatus
// @Router      /credentials [get]
func (h *CredentialsHandler) GetCredential(c *gin.Context) {
	c.JSON(http.StatusOK, statusOf(h.creds.Current()))
}

// SetCredential stores a new bearer token
// @Summary     Set credential
// @Tags        credentials
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       request body SetCredentialRequest true "Token and expiry in epoch milliseconds"
// @Success     200 {object} CredentialStatus
// @Failure     400 {object} ErrorResponse "Missing or expired token"
// @Router      /credentials [put]
func (h *CredentialsHandler) SetCredential(c *gin.Context) {
	var req SetCredentialRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	rec := auth.Record{
		IsAuthenticated: true,
		AccessToken:     req.AccessToken,
		ExpiresAt:       req.ExpiresAt,
		User:            req.User,
	}
	if err := h.creds.Set(c.Request.Context(), rec); err != nil {
		if errors.Is(err, auth.ErrInvalidRecord) {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Token is missing or already expired"))
			return
		}
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	c.JSON(http.StatusOK, statusOf(h.creds.Current()))
}

// ClearCredential forgets the held token
// @Summary     Clear credential
// @Tags        credentials
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {object} MessageResponse
// @Router      /credentials [delete]
func (h *CredentialsHandler) ClearCredential(c *gin.Context) {
	if err := h.creds.Clear(c.Request.Context()); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Credential cleared"})
}
