// Package errors provides the structured error type shared by the ledger
// services and the HTTP layer. Service-layer errors should use AppError so
// responses carry a stable code and never leak internal details.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so wrapped
// copies still match their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication errors.
var (
	ErrUnauthorized     = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrNotAuthenticated = &AppError{Code: "NOT_AUTHENTICATED", Message: "No valid remote credential is available", StatusCode: http.StatusUnauthorized}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Document errors.
var (
	ErrInvalidDocument = &AppError{Code: "INVALID_DOCUMENT", Message: "Document structure is invalid", StatusCode: http.StatusUnprocessableEntity}
)

// Entity errors.
var (
	ErrInstitutionNotFound = &AppError{Code: "INSTITUTION_NOT_FOUND", Message: "Institution not found", StatusCode: http.StatusNotFound}
	ErrAccountNotFound     = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found", StatusCode: http.StatusNotFound}
	ErrAssetNotFound       = &AppError{Code: "ASSET_NOT_FOUND", Message: "Asset not found", StatusCode: http.StatusNotFound}
	ErrTransactionNotFound = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrFxRateNotFound      = &AppError{Code: "FX_RATE_NOT_FOUND", Message: "FX rate not found", StatusCode: http.StatusNotFound}
)

// Sync errors.
var (
	ErrRemote            = &AppError{Code: "REMOTE_ERROR", Message: "Remote store request failed", StatusCode: http.StatusBadGateway}
	ErrRemoteEmpty       = &AppError{Code: "REMOTE_EMPTY", Message: "No data found in the remote store", StatusCode: http.StatusNotFound}
	ErrSyncNotConfigured = &AppError{Code: "SYNC_NOT_CONFIGURED", Message: "Remote spreadsheet is not configured", StatusCode: http.StatusPreconditionFailed}
	ErrSyncDisabled      = &AppError{Code: "SYNC_DISABLED", Message: "Auto-sync is disabled", StatusCode: http.StatusConflict}
	ErrSyncInProgress    = &AppError{Code: "SYNC_IN_PROGRESS", Message: "A sync is already running", StatusCode: http.StatusConflict}
	ErrMigrationRequired = &AppError{Code: "MIGRATION_REQUIRED", Message: "Remote store uses the blob format and must be migrated first", StatusCode: http.StatusConflict}
)
