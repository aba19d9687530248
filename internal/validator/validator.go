// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"ledgersync/internal/currency"
	"ledgersync/internal/models"
	"ledgersync/internal/sheets"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		registerAll(v)
	}
}

// New returns a standalone validator with the custom tags registered, for
// callers that validate outside request binding.
func New() *validator.Validate {
	v := validator.New()
	registerAll(v)
	return v
}

func registerAll(v *validator.Validate) {
	_ = v.RegisterValidation("currency", validateCurrency)
	_ = v.RegisterValidation("institution_kind", validateInstitutionKind)
	_ = v.RegisterValidation("account_kind", validateAccountKind)
	_ = v.RegisterValidation("asset_class", validateAssetClass)
	_ = v.RegisterValidation("transaction_kind", validateTransactionKind)
	_ = v.RegisterValidation("iso8601", validateISO8601)
	_ = v.RegisterValidation("workbook_name", validateWorkbookName)
}

func validateCurrency(fl validator.FieldLevel) bool {
	return currency.IsSupported(fl.Field().String())
}

func validateInstitutionKind(fl validator.FieldLevel) bool {
	return models.InstitutionKind(fl.Field().String()).Valid()
}

func validateAccountKind(fl validator.FieldLevel) bool {
	return models.AccountKind(fl.Field().String()).Valid()
}

func validateAssetClass(fl validator.FieldLevel) bool {
	return models.AssetClass(fl.Field().String()).Valid()
}

func validateTransactionKind(fl validator.FieldLevel) bool {
	return models.TransactionKind(fl.Field().String()).Valid()
}

func validateISO8601(fl validator.FieldLevel) bool {
	_, ok := models.ParseTimestamp(fl.Field().String())
	return ok
}

func validateWorkbookName(fl validator.FieldLevel) bool {
	return sheets.ValidWorkbookName(fl.Field().String())
}
