package tabular

import (
	"math"
	"reflect"
	"testing"

	"ledgersync/internal/models"
)

func TestEncode_EmptyRecordsWritesHeaderOnly(t *testing.T) {
	grid := Encode(nil, []string{"id", "clase", "moneda", "cantidad"})

	if len(grid) != 1 {
		t.Fatalf("rows = %d, want 1", len(grid))
	}
	want := []any{"id", "clase", "moneda", "cantidad"}
	if !reflect.DeepEqual(grid[0], want) {
		t.Errorf("header = %v, want %v", grid[0], want)
	}
}

func TestEncode_CellValues(t *testing.T) {
	records := []Record{{
		"id":        "t1",
		"monto":     12.5,
		"etiquetas": []any{"food", "home"},
		"flag":      true,
	}}
	grid := Encode(records, []string{"id", "monto", "etiquetas", "flag", "missing"})

	row := grid[1]
	if row[0] != "t1" || row[1] != 12.5 || row[3] != true {
		t.Errorf("scalars not passed through: %v", row)
	}
	if row[2] != `["food","home"]` {
		t.Errorf("structured value = %v, want JSON text", row[2])
	}
	if row[4] != "" {
		t.Errorf("absent value = %v, want empty string", row[4])
	}
}

func TestDecode(t *testing.T) {
	t.Run("short_grid_is_empty", func(t *testing.T) {
		if got := Decode(Grid{{"id"}}, AssetSchema); len(got) != 0 {
			t.Errorf("expected no records, got %v", got)
		}
		if got := Decode(nil, AssetSchema); len(got) != 0 {
			t.Errorf("expected no records for nil grid, got %v", got)
		}
	})

	t.Run("blank_rows_are_skipped", func(t *testing.T) {
		grid := Grid{
			{"id", "cantidad"},
			{"x1", 2.0},
			{"", ""},
			{nil},
			{},
			{"x2", "3"},
		}
		got := Decode(grid, AssetSchema)
		if len(got) != 2 {
			t.Fatalf("records = %d, want 2", len(got))
		}
		if got[0]["id"] != "x1" || got[1]["id"] != "x2" {
			t.Errorf("unexpected ids: %v", got)
		}
	})

	t.Run("required_number_defaults_to_zero", func(t *testing.T) {
		grid := Grid{{"id", "cantidad"}, {"x1", "abc"}, {"x2"}}
		got := Decode(grid, AssetSchema)
		for _, rec := range got {
			if rec["cantidad"] != 0.0 {
				t.Errorf("%v cantidad = %v, want 0", rec["id"], rec["cantidad"])
			}
		}
	})

	t.Run("optional_number_stays_absent", func(t *testing.T) {
		grid := Grid{{"id", "costoPromedio"}, {"x1", ""}, {"x2", "n/a"}, {"x3", 0.0}}
		got := Decode(grid, AssetSchema)
		if _, ok := got[0]["costoPromedio"]; ok {
			t.Error("empty cell should be absent")
		}
		if _, ok := got[1]["costoPromedio"]; ok {
			t.Error("unparseable cell should be absent")
		}
		if v, ok := got[2]["costoPromedio"]; !ok || v != 0.0 {
			t.Errorf("present zero = %v, %v; want 0, true", v, ok)
		}
	})

	t.Run("bool_any_case", func(t *testing.T) {
		grid := Grid{{"id", "renovacionAutomatica"}, {"a1", "TRUE"}, {"a2", "False"}, {"a3", true}, {"a4", "maybe"}}
		got := Decode(grid, AccountSchema)
		if got[0]["renovacionAutomatica"] != true || got[1]["renovacionAutomatica"] != false || got[2]["renovacionAutomatica"] != true {
			t.Errorf("unexpected bools: %v", got)
		}
		if _, ok := got[3]["renovacionAutomatica"]; ok {
			t.Error("unrecognized bool should be absent")
		}
	})

	t.Run("json_with_text_fallback", func(t *testing.T) {
		grid := Grid{{"id", "etiquetas"}, {"t1", `["a","b"]`}, {"t2", "not json"}}
		got := Decode(grid, TransactionSchema)
		if !reflect.DeepEqual(got[0]["etiquetas"], []any{"a", "b"}) {
			t.Errorf("parsed = %v", got[0]["etiquetas"])
		}
		if got[1]["etiquetas"] != "not json" {
			t.Errorf("fallback = %v", got[1]["etiquetas"])
		}
	})

	t.Run("text_from_number", func(t *testing.T) {
		grid := Grid{{"id", "ticker"}, {123.0, "VOO"}}
		got := Decode(grid, AssetSchema)
		if got[0]["id"] != "123" {
			t.Errorf("id = %v, want \"123\"", got[0]["id"])
		}
	})
}

func TestCoerceNumber(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   float64
		wantOK bool
	}{
		{"float", 2.5, 2.5, true},
		{"int", 3, 3, true},
		{"string", " 4100.5 ", 4100.5, true},
		{"empty", "", 0, false},
		{"text", "abc", 0, false},
		{"nan", math.NaN(), 0, false},
		{"inf", math.Inf(1), 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CoerceNumber(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("CoerceNumber(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestEntities_RoundTrip(t *testing.T) {
	t.Run("accounts", func(t *testing.T) {
		in := []models.Account{
			{ID: "a1", Name: "Ahorros", InstitutionID: "i1", Kind: models.AccountKindSavings, Currency: "COP", OpeningBalance: 1000},
			{ID: "a2", Name: "CDT", Kind: models.AccountKindTermDeposit, Currency: "COP", InterestRate: models.Some(0.11), MaturityDate: "2025-01-01", AutoRenew: models.Some(false)},
		}
		grid, err := EncodeEntities(in, AccountSchema)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		out, err := DecodeEntities[models.Account](grid, AccountSchema)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Errorf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
		}
	})

	t.Run("assets", func(t *testing.T) {
		in := []models.Asset{
			{ID: "x1", Class: models.AssetClassETF, Ticker: "VOO", Currency: "USD", Quantity: 2, AverageCost: models.Some(410.5), AccountID: "a1"},
			{ID: "x2", Class: models.AssetClassCrypto, Ticker: "BTC", Currency: "BTC", Quantity: 0.05, AccountID: "a2"},
		}
		grid, err := EncodeEntities(in, AssetSchema)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		out, err := DecodeEntities[models.Asset](grid, AssetSchema)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Errorf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
		}
	})

	t.Run("transactions", func(t *testing.T) {
		in := []models.Transaction{
			{ID: "t1", Date: "2024-10-01", Kind: models.TransactionKindDeposit, DestAccountID: "a1", Amount: models.Some(500.0), Memo: "salary", Tags: []string{"income"}},
			{ID: "t2", Date: "2024-10-02", Kind: models.TransactionKindBuy, SourceAccountID: "a1", AssetID: "x1", Quantity: models.Some(1.0), Price: models.Some(400.0), Fee: models.Some(0.0)},
		}
		grid, err := EncodeEntities(in, TransactionSchema)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		out, err := DecodeEntities[models.Transaction](grid, TransactionSchema)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Errorf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
		}
	})

	t.Run("unparseable_tags_are_dropped", func(t *testing.T) {
		grid := Grid{{"id", "etiquetas"}, {"t1", "food"}}
		out, err := DecodeEntities[models.Transaction](grid, TransactionSchema)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out[0].ID != "t1" || len(out[0].Tags) != 0 {
			t.Errorf("unexpected transaction: %+v", out[0])
		}
	})
}

func TestPreferences(t *testing.T) {
	t.Run("round_trip", func(t *testing.T) {
		prefs := models.Preferences{BaseCurrency: "USD", Timezone: "UTC"}
		grid := EncodePreferences(prefs, "2024-10-01T12:00:00.000Z", 7)

		if grid[0][0] != PreferencesKeyHeader || grid[0][1] != PreferencesValueHeader {
			t.Errorf("header = %v", grid[0])
		}
		got := DecodePreferences(grid)
		if got.Preferences != prefs || got.LastUpdated != "2024-10-01T12:00:00.000Z" || got.Version != 7 {
			t.Errorf("unexpected decode: %+v", got)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		got := DecodePreferences(Grid{{PreferencesKeyHeader, PreferencesValueHeader}})
		if got.Preferences != models.DefaultPreferences() {
			t.Errorf("prefs = %+v, want defaults", got.Preferences)
		}
		if got.LastUpdated != "" {
			t.Errorf("lastUpdated = %q, want empty", got.LastUpdated)
		}
		if got.Version != models.InitialVersion {
			t.Errorf("version = %d, want %d", got.Version, models.InitialVersion)
		}
	})

	t.Run("version_as_text", func(t *testing.T) {
		grid := Grid{{PreferencesKeyHeader, PreferencesValueHeader}, {"version", "3"}}
		if got := DecodePreferences(grid); got.Version != 3 {
			t.Errorf("version = %d, want 3", got.Version)
		}
	})
}

func TestDocument_RoundTrip(t *testing.T) {
	doc := &models.Document{
		Version:      4,
		Institutions: []models.Institution{{ID: "i1", Name: "Bancolombia", Kind: models.InstitutionKindBank}},
		Accounts:     []models.Account{{ID: "a1", Name: "Main", InstitutionID: "i1", Kind: models.AccountKindSavings, Currency: "COP", OpeningBalance: 10}},
		Assets:       []models.Asset{},
		Transactions: []models.Transaction{},
		FxRates:      []models.FxRate{{ID: "f1", From: "USD", To: "COP", Rate: 4100, Date: "2024-10-01"}},
		Preferences:  models.DefaultPreferences(),
		LastUpdated:  "2024-10-01T12:00:00.000Z",
	}

	tables, err := EncodeDocument(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeDocument(tables)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(doc, got) {
		t.Errorf("round trip mismatch:\n in=%+v\nout=%+v", doc, got)
	}
}
