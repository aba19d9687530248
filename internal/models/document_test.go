package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDefaultDocument(t *testing.T) {
	now := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	doc := DefaultDocument(now)

	if doc.Version != 1 {
		t.Errorf("version = %d, want 1", doc.Version)
	}
	if doc.Preferences.BaseCurrency != "COP" || doc.Preferences.Timezone != "America/Bogota" {
		t.Errorf("unexpected preferences: %+v", doc.Preferences)
	}
	if doc.LastUpdated != "2024-10-01T12:00:00.000Z" {
		t.Errorf("lastUpdated = %q", doc.LastUpdated)
	}
	if err := Validate(doc); err != nil {
		t.Errorf("default document should be valid: %v", err)
	}
}

func TestDocument_MarshalJSON_EmitsEmptyCollections(t *testing.T) {
	doc := &Document{Version: 1, Preferences: DefaultPreferences()}

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"instituciones":[]`, `"cuentas":[]`, `"activos":[]`, `"transacciones":[]`, `"fx":[]`} {
		if !strings.Contains(string(raw), key) {
			t.Errorf("expected %s in %s", key, raw)
		}
	}
	if strings.Contains(string(raw), "lastUpdated") {
		t.Errorf("absent lastUpdated should be omitted: %s", raw)
	}
	if err := ValidateJSON(raw); err != nil {
		t.Errorf("marshalled document should validate: %v", err)
	}
}

func TestDocument_RemoveAccount_CascadesToAssets(t *testing.T) {
	doc := DefaultDocument(time.Now())
	doc.Accounts = []Account{{ID: "a1"}, {ID: "a2"}}
	doc.Assets = []Asset{
		{ID: "x1", AccountID: "a1"},
		{ID: "x2", AccountID: "a2"},
		{ID: "x3", AccountID: "a1"},
	}

	removed, ok := doc.RemoveAccount("a1")
	if !ok {
		t.Fatal("expected account to be found")
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if len(doc.Accounts) != 1 || doc.Accounts[0].ID != "a2" {
		t.Errorf("unexpected accounts: %+v", doc.Accounts)
	}
	if len(doc.Assets) != 1 || doc.Assets[0].ID != "x2" {
		t.Errorf("unexpected assets: %+v", doc.Assets)
	}

	if _, ok := doc.RemoveAccount("missing"); ok {
		t.Error("expected missing account to report false")
	}
}

func TestDocument_Clone_IsDeep(t *testing.T) {
	doc := DefaultDocument(time.Now())
	doc.Transactions = []Transaction{{ID: "t1", Tags: []string{"food"}}}
	doc.Accounts = []Account{{ID: "a1", Name: "Main"}}

	cp := doc.Clone()
	cp.Transactions[0].Tags[0] = "rent"
	cp.Accounts[0].Name = "Changed"

	if doc.Transactions[0].Tags[0] != "food" {
		t.Error("clone shares tag slice with original")
	}
	if doc.Accounts[0].Name != "Main" {
		t.Error("clone shares accounts with original")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     *Document
		wantErr bool
	}{
		{"nil_document", nil, true},
		{"negative_version", &Document{Version: -1, Preferences: DefaultPreferences()}, true},
		{"missing_base_currency", &Document{Version: 1}, true},
		{"valid", &Document{Version: 0, Preferences: Preferences{BaseCurrency: "USD"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.doc)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidStructure) {
				t.Errorf("expected ErrInvalidStructure, got %v", err)
			}
		})
	}
}

func TestParseDocument(t *testing.T) {
	valid := `{"version":2,"instituciones":[],"cuentas":[{"id":"a1","nombre":"Main","tipo":"ahorros","moneda":"COP","saldoInicial":100}],"activos":[],"transacciones":[],"fx":[],"prefs":{"monedaBase":"USD","timezone":"UTC"}}`

	t.Run("valid", func(t *testing.T) {
		doc, err := ParseDocument([]byte(valid))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc.Version != 2 || len(doc.Accounts) != 1 || doc.Accounts[0].OpeningBalance != 100 {
			t.Errorf("unexpected document: %+v", doc)
		}
	})

	invalid := map[string]string{
		"missing_collection": `{"version":1,"instituciones":[],"cuentas":[],"activos":[],"transacciones":[],"prefs":{"monedaBase":"COP"}}`,
		"collection_not_list": `{"version":1,"instituciones":{},"cuentas":[],"activos":[],"transacciones":[],"fx":[],"prefs":{"monedaBase":"COP"}}`,
		"version_not_number":  `{"version":"1","instituciones":[],"cuentas":[],"activos":[],"transacciones":[],"fx":[],"prefs":{"monedaBase":"COP"}}`,
		"missing_prefs":       `{"version":1,"instituciones":[],"cuentas":[],"activos":[],"transacciones":[],"fx":[]}`,
		"not_json":            `{"version":`,
	}
	for name, raw := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDocument([]byte(raw))
			if !errors.Is(err, ErrInvalidStructure) {
				t.Errorf("expected ErrInvalidStructure, got %v", err)
			}
		})
	}
}

func TestOptional_JSON(t *testing.T) {
	t.Run("absent_is_omitted", func(t *testing.T) {
		raw, err := json.Marshal(Asset{ID: "x1", Quantity: 2})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if strings.Contains(string(raw), "costoPromedio") {
			t.Errorf("absent cost should be omitted: %s", raw)
		}
	})

	t.Run("present_zero_is_kept", func(t *testing.T) {
		raw, err := json.Marshal(Asset{ID: "x1", AverageCost: Some(0.0)})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if !strings.Contains(string(raw), `"costoPromedio":0`) {
			t.Errorf("present zero should be kept: %s", raw)
		}
	})

	t.Run("null_decodes_as_absent", func(t *testing.T) {
		var a Asset
		if err := json.Unmarshal([]byte(`{"id":"x1","costoPromedio":null}`), &a); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if a.AverageCost.Valid() {
			t.Error("expected absent cost")
		}
	})

	t.Run("value_decodes_as_present", func(t *testing.T) {
		var tx Transaction
		if err := json.Unmarshal([]byte(`{"id":"t1","monto":12.5}`), &tx); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if v, ok := tx.Amount.Get(); !ok || v != 12.5 {
			t.Errorf("amount = %v, %v; want 12.5, true", v, ok)
		}
		if tx.Fee.Valid() {
			t.Error("missing fee should be absent")
		}
	})
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in     string
		wantOK bool
	}{
		{"2024-10-01T12:00:00.000Z", true},
		{"2024-10-01T12:00:00-05:00", true},
		{"2024-10-01", true},
		{"", false},
		{"yesterday", false},
	}
	for _, tt := range tests {
		if _, ok := ParseTimestamp(tt.in); ok != tt.wantOK {
			t.Errorf("ParseTimestamp(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
		}
	}
}
