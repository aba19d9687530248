package models

import (
	"encoding/json"
	"fmt"
	"time"

	"ledgersync/internal/currency"
)

// TimestampLayout is the ISO-8601 form used for lastUpdated and entity dates.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Preference defaults.
const (
	DefaultBaseCurrency = currency.COP
	DefaultTimezone     = "America/Bogota"
	InitialVersion      = 1
)

// Collection names as they appear in the Document JSON and in conflict messages.
const (
	CollectionInstitutions = "instituciones"
	CollectionAccounts     = "cuentas"
	CollectionAssets       = "activos"
	CollectionTransactions = "transacciones"
	CollectionFxRates      = "fx"
)

// Entity is any identity-keyed record in a Document collection.
type Entity interface {
	EntityID() string
}

// Preferences is the singleton user preference record.
type Preferences struct {
	BaseCurrency currency.Code `json:"monedaBase"`
	Timezone     string        `json:"timezone"`
}

// IsZero reports whether the preferences were never set.
func (p Preferences) IsZero() bool {
	return p.BaseCurrency == "" && p.Timezone == ""
}

// DefaultPreferences returns the preferences of a fresh ledger.
func DefaultPreferences() Preferences {
	return Preferences{BaseCurrency: DefaultBaseCurrency, Timezone: DefaultTimezone}
}

// Document is the unit of replication: every collection of the ledger plus
// preferences, a version counter and the time of the last mutation.
type Document struct {
	Version      int           `json:"version"`
	Institutions []Institution `json:"instituciones"`
	Accounts     []Account     `json:"cuentas"`
	Assets       []Asset       `json:"activos"`
	Transactions []Transaction `json:"transacciones"`
	FxRates      []FxRate      `json:"fx"`
	Preferences  Preferences   `json:"prefs"`
	LastUpdated  string        `json:"lastUpdated,omitempty"`
}

// DefaultDocument returns an empty ledger stamped with now.
func DefaultDocument(now time.Time) *Document {
	return &Document{
		Version:      InitialVersion,
		Institutions: []Institution{},
		Accounts:     []Account{},
		Assets:       []Asset{},
		Transactions: []Transaction{},
		FxRates:      []FxRate{},
		Preferences:  DefaultPreferences(),
		LastUpdated:  FormatTimestamp(now),
	}
}

// MarshalJSON always emits every collection as an array, never null.
func (d Document) MarshalJSON() ([]byte, error) {
	type plain Document
	d.normalize()
	return json.Marshal(plain(d))
}

func (d *Document) normalize() {
	if d.Institutions == nil {
		d.Institutions = []Institution{}
	}
	if d.Accounts == nil {
		d.Accounts = []Account{}
	}
	if d.Assets == nil {
		d.Assets = []Asset{}
	}
	if d.Transactions == nil {
		d.Transactions = []Transaction{}
	}
	if d.FxRates == nil {
		d.FxRates = []FxRate{}
	}
}

// Touch stamps the document as mutated at now.
func (d *Document) Touch(now time.Time) {
	d.LastUpdated = FormatTimestamp(now)
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Version:      d.Version,
		Institutions: append([]Institution{}, d.Institutions...),
		Accounts:     append([]Account{}, d.Accounts...),
		Assets:       append([]Asset{}, d.Assets...),
		Transactions: make([]Transaction, len(d.Transactions)),
		FxRates:      append([]FxRate{}, d.FxRates...),
		Preferences:  d.Preferences,
		LastUpdated:  d.LastUpdated,
	}
	for i, tx := range d.Transactions {
		if tx.Tags != nil {
			tx.Tags = append([]string{}, tx.Tags...)
		}
		out.Transactions[i] = tx
	}
	return out
}

// RemoveAccount deletes the account with the given id together with every
// asset that references it. It returns false when the account does not exist.
func (d *Document) RemoveAccount(id string) (removedAssets int, ok bool) {
	idx := indexOf(d.Accounts, id)
	if idx < 0 {
		return 0, false
	}
	d.Accounts = append(d.Accounts[:idx], d.Accounts[idx+1:]...)

	kept := d.Assets[:0]
	for _, a := range d.Assets {
		if a.AccountID == id {
			removedAssets++
			continue
		}
		kept = append(kept, a)
	}
	d.Assets = kept
	return removedAssets, true
}

// FindAccount returns the account with the given id.
func (d *Document) FindAccount(id string) (Account, bool) {
	if i := indexOf(d.Accounts, id); i >= 0 {
		return d.Accounts[i], true
	}
	return Account{}, false
}

// Validate checks the structural invariants of a Document: a non-negative
// version and preferences carrying a base currency. Collections are always
// present on a decoded Document; raw payloads are checked by ValidateJSON.
func Validate(d *Document) error {
	if d == nil {
		return fmt.Errorf("%w: document is missing", ErrInvalidStructure)
	}
	if d.Version < 0 {
		return fmt.Errorf("%w: version %d is negative", ErrInvalidStructure, d.Version)
	}
	if d.Preferences.BaseCurrency == "" {
		return fmt.Errorf("%w: preferences have no base currency", ErrInvalidStructure)
	}
	return nil
}

// ParseDocument validates raw JSON against the document schema and decodes it.
func ParseDocument(raw []byte) (*Document, error) {
	if err := ValidateJSON(raw); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts RFC 3339 instants and plain dates.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func indexOf[E Entity](items []E, id string) int {
	for i, item := range items {
		if item.EntityID() == id {
			return i
		}
	}
	return -1
}
