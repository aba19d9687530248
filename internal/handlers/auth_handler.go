package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "ledgersync/internal/errors"
	"ledgersync/internal/middleware"
)

// AuthHandler issues API access tokens to callers holding the API key.
type AuthHandler struct {
	secret string
	ttl    time.Duration
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(secret string, ttl time.Duration) *AuthHandler {
	return &AuthHandler{secret: secret, ttl: ttl}
}

// TokenRequest represents the token request payload
type TokenRequest struct {
	Subject string `json:"subject" binding:"required,min=1,max=100"`
}

// TokenResponse represents an issued access token
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueToken handles access token issuance
// @Summary     Issue an access token
// @Description Exchange the API key for a short-lived bearer token
// @Tags        auth
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       request body TokenRequest true "Token subject"
// @Success     201 {object} TokenResponse
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Router      /auth/token [post]
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	token, expiresAt, err := middleware.GenerateAccessToken(h.secret, req.Subject, h.ttl)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	c.JSON(http.StatusCreated, TokenResponse{Token: token, ExpiresAt: expiresAt})
}
