package models

import "ledgersync/internal/currency"

// AccountKind represents the type of account
type AccountKind string

const (
	AccountKindSavings     AccountKind = "ahorros"
	AccountKindChecking    AccountKind = "corriente"
	AccountKindTermDeposit AccountKind = "cdt"
	AccountKindCard        AccountKind = "tarjeta"
	AccountKindBroker      AccountKind = "broker"
	AccountKindExchange    AccountKind = "exchange"
	AccountKindOther       AccountKind = "otro"
)

// Valid reports whether k is a known account kind.
func (k AccountKind) Valid() bool {
	switch k {
	case AccountKindSavings, AccountKindChecking, AccountKindTermDeposit, AccountKindCard,
		AccountKindBroker, AccountKindExchange, AccountKindOther:
		return true
	}
	return false
}

// Account represents a financial account in the ledger
type Account struct {
	ID             string        `json:"id"`
	Name           string        `json:"nombre"`
	InstitutionID  string        `json:"institucionId,omitempty"`
	Kind           AccountKind   `json:"tipo"`
	Currency       currency.Code `json:"moneda"`
	OpeningBalance float64       `json:"saldoInicial"`
	OpeningDate    string        `json:"fechaApertura,omitempty"`

	// For term deposits
	InterestRate Optional[float64] `json:"tasaInteres,omitzero"`
	MaturityDate string            `json:"fechaVencimiento,omitempty"`
	AutoRenew    Optional[bool]    `json:"renovacionAutomatica,omitzero"`
}

// EntityID implements Entity.
func (a Account) EntityID() string { return a.ID }

// ClearTermDepositFields drops the fields that only apply to term deposits
// when the account is of another kind.
func (a *Account) ClearTermDepositFields() {
	if a.Kind == AccountKindTermDeposit {
		return
	}
	a.InterestRate = None[float64]()
	a.MaturityDate = ""
	a.AutoRenew = None[bool]()
}
