package models

import "ledgersync/internal/currency"

// AssetClass represents the class of a held asset
type AssetClass string

const (
	AssetClassCash              AssetClass = "efectivo"
	AssetClassETF               AssetClass = "etf"
	AssetClassEquity            AssetClass = "accion"
	AssetClassBond              AssetClass = "bono"
	AssetClassCrypto            AssetClass = "cripto"
	AssetClassFund              AssetClass = "fondo"
	AssetClassStructuredDeposit AssetClass = "cde"
	AssetClassOther             AssetClass = "otro"
)

// Valid reports whether c is a known asset class.
func (c AssetClass) Valid() bool {
	switch c {
	case AssetClassCash, AssetClassETF, AssetClassEquity, AssetClassBond, AssetClassCrypto,
		AssetClassFund, AssetClassStructuredDeposit, AssetClassOther:
		return true
	}
	return false
}

// Asset is a position held inside an account.
type Asset struct {
	ID          string            `json:"id"`
	Class       AssetClass        `json:"clase"`
	Ticker      string            `json:"ticker,omitempty"`
	Currency    currency.Code     `json:"moneda"`
	Quantity    float64           `json:"cantidad"`
	AverageCost Optional[float64] `json:"costoPromedio,omitzero"`
	AccountID   string            `json:"cuentaId"`
}

// EntityID implements Entity.
func (a Asset) EntityID() string { return a.ID }

// BookValue is quantity times average cost, zero when the cost is unknown.
func (a Asset) BookValue() float64 {
	return a.Quantity * a.AverageCost.OrElse(0)
}
