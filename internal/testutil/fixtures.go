package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"ledgersync/internal/currency"
	"ledgersync/internal/models"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// FixtureTime is the instant fixtures are stamped with.
var FixtureTime = time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)

// EmptyDocument returns a default document stamped with FixtureTime.
func EmptyDocument() *models.Document {
	return models.DefaultDocument(FixtureTime)
}

// NewInstitution returns an institution with a unique id.
func NewInstitution() models.Institution {
	n := nextID()
	return models.Institution{
		ID:   fmt.Sprintf("inst-%d", n),
		Name: fmt.Sprintf("Banco %d", n),
		Kind: models.InstitutionKindBank,
	}
}

// NewAccount returns a savings account with a unique id.
func NewAccount(institutionID, code string, openingBalance float64) models.Account {
	n := nextID()
	return models.Account{
		ID:             fmt.Sprintf("acct-%d", n),
		Name:           fmt.Sprintf("Cuenta %d", n),
		InstitutionID:  institutionID,
		Kind:           models.AccountKindSavings,
		Currency:       currency.Code(code),
		OpeningBalance: openingBalance,
		OpeningDate:    "2024-01-01",
	}
}

// NewAsset returns an asset held in accountID.
func NewAsset(accountID string, class models.AssetClass, code string, quantity, averageCost float64) models.Asset {
	return models.Asset{
		ID:          fmt.Sprintf("asset-%d", nextID()),
		Class:       class,
		Currency:    currency.Code(code),
		Quantity:    quantity,
		AverageCost: models.Some(averageCost),
		AccountID:   accountID,
	}
}

// NewDeposit returns a deposit of amount into accountID on date.
func NewDeposit(accountID, date string, amount float64) models.Transaction {
	return models.Transaction{
		ID:            fmt.Sprintf("tx-%d", nextID()),
		Date:          date,
		Kind:          models.TransactionKindDeposit,
		DestAccountID: accountID,
		Amount:        models.Some(amount),
	}
}

// SampleDocument returns a small populated document: one institution, a COP
// and a USD account, one crypto asset, two transactions and a manual FX rate.
func SampleDocument() *models.Document {
	doc := EmptyDocument()
	inst := NewInstitution()
	cop := NewAccount(inst.ID, "COP", 1_000_000)
	usd := NewAccount(inst.ID, "USD", 500)
	doc.Institutions = []models.Institution{inst}
	doc.Accounts = []models.Account{cop, usd}
	doc.Assets = []models.Asset{NewAsset(usd.ID, models.AssetClassCrypto, "BTC", 0.01, 60000)}
	doc.Transactions = []models.Transaction{
		NewDeposit(cop.ID, "2024-09-01", 250_000),
		NewDeposit(usd.ID, "2024-09-15", 100),
	}
	doc.FxRates = []models.FxRate{{ID: fmt.Sprintf("fx-%d", nextID()), From: "USD", To: "COP", Rate: 4200, Date: "2024-09-30"}}
	return doc
}
