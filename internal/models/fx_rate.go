package models

import "ledgersync/internal/currency"

// FxRate is a manually recorded exchange rate.
type FxRate struct {
	ID   string        `json:"id"`
	From currency.Code `json:"from"`
	To   currency.Code `json:"to"`
	Rate float64       `json:"tasa"`
	Date string        `json:"fecha"`
}

// EntityID implements Entity.
func (f FxRate) EntityID() string { return f.ID }

// Pair returns the "FROM_TO" key used by rate tables.
func (f FxRate) Pair() string {
	return string(f.From) + "_" + string(f.To)
}
