package models

import "time"

// TransactionKind represents the type of transaction
type TransactionKind string

const (
	TransactionKindDeposit    TransactionKind = "deposito"
	TransactionKindWithdrawal TransactionKind = "retiro"
	TransactionKindTransfer   TransactionKind = "transferencia"
	TransactionKindBuy        TransactionKind = "compra"
	TransactionKindSell       TransactionKind = "venta"
	TransactionKindYield      TransactionKind = "rendimiento"
	TransactionKindFee        TransactionKind = "comision"
)

// Valid reports whether k is a known transaction kind.
func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionKindDeposit, TransactionKindWithdrawal, TransactionKindTransfer,
		TransactionKindBuy, TransactionKindSell, TransactionKindYield, TransactionKindFee:
		return true
	}
	return false
}

// Transaction represents a movement of money or units between accounts
type Transaction struct {
	ID              string            `json:"id"`
	Date            string            `json:"fecha"`
	Kind            TransactionKind   `json:"tipo"`
	SourceAccountID string            `json:"cuentaOrigenId,omitempty"`
	DestAccountID   string            `json:"cuentaDestinoId,omitempty"`
	AssetID         string            `json:"activoId,omitempty"`
	Amount          Optional[float64] `json:"monto,omitzero"`
	Quantity        Optional[float64] `json:"cantidad,omitzero"`
	Price           Optional[float64] `json:"precio,omitzero"`
	Fee             Optional[float64] `json:"comision,omitzero"`
	Memo            string            `json:"concepto,omitempty"`
	Tags            []string          `json:"etiquetas,omitempty"`
}

// EntityID implements Entity.
func (t Transaction) EntityID() string { return t.ID }

// Time parses the transaction date. Unparseable dates sort as the zero time.
func (t Transaction) Time() time.Time {
	ts, _ := ParseTimestamp(t.Date)
	return ts
}
