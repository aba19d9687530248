package testutil

import (
	"errors"
	"reflect"
	"testing"

	apperrors "ledgersync/internal/errors"
	"ledgersync/internal/models"
)

// AssertAppError checks that err is an *AppError with the expected error code.
func AssertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected AppError with code %q, got nil", expectedCode)
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}

	if appErr.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertSameDocument fails the test when got differs from want, naming the
// first part of the document that does not match.
func AssertSameDocument(t *testing.T, got, want *models.Document) {
	t.Helper()

	if got == nil || want == nil {
		if got != want {
			t.Fatalf("document mismatch: got %v, want %v", got, want)
		}
		return
	}

	parts := []struct {
		name      string
		got, want any
	}{
		{"version", got.Version, want.Version},
		{models.CollectionInstitutions, got.Institutions, want.Institutions},
		{models.CollectionAccounts, got.Accounts, want.Accounts},
		{models.CollectionAssets, got.Assets, want.Assets},
		{models.CollectionTransactions, got.Transactions, want.Transactions},
		{models.CollectionFxRates, got.FxRates, want.FxRates},
		{"prefs", got.Preferences, want.Preferences},
		{"lastUpdated", got.LastUpdated, want.LastUpdated},
	}
	for _, p := range parts {
		if !reflect.DeepEqual(p.got, p.want) {
			t.Errorf("document %s mismatch\n got=%+v\nwant=%+v", p.name, p.got, p.want)
			return
		}
	}
}
