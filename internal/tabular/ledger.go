package tabular

import (
	"encoding/json"
	"fmt"

	"ledgersync/internal/currency"
	"ledgersync/internal/models"
)

// Collection schemas. Column order is the header order written to the sheets.
var (
	InstitutionSchema = Schema{
		Name: models.CollectionInstitutions,
		Fields: []Field{
			{"id", Text}, {"nombre", Text}, {"tipo", Text},
		},
	}

	AccountSchema = Schema{
		Name: models.CollectionAccounts,
		Fields: []Field{
			{"id", Text}, {"nombre", Text}, {"institucionId", Text}, {"tipo", Text},
			{"moneda", Text}, {"saldoInicial", Number}, {"fechaApertura", Text},
			{"tasaInteres", OptionalNumber}, {"fechaVencimiento", Text},
			{"renovacionAutomatica", Bool},
		},
	}

	AssetSchema = Schema{
		Name: models.CollectionAssets,
		Fields: []Field{
			{"id", Text}, {"clase", Text}, {"ticker", Text}, {"moneda", Text},
			{"cantidad", Number}, {"costoPromedio", OptionalNumber}, {"cuentaId", Text},
		},
	}

	TransactionSchema = Schema{
		Name: models.CollectionTransactions,
		Fields: []Field{
			{"id", Text}, {"fecha", Text}, {"tipo", Text},
			{"cuentaOrigenId", Text}, {"cuentaDestinoId", Text}, {"activoId", Text},
			{"monto", OptionalNumber}, {"cantidad", OptionalNumber},
			{"precio", OptionalNumber}, {"comision", OptionalNumber},
			{"concepto", Text}, {"etiquetas", JSON},
		},
	}

	FxRateSchema = Schema{
		Name: models.CollectionFxRates,
		Fields: []Field{
			{"id", Text}, {"from", Text}, {"to", Text}, {"tasa", Number}, {"fecha", Text},
		},
	}
)

// Preferences grid layout.
const (
	PreferencesKeyHeader   = "Configuración"
	PreferencesValueHeader = "Valor"
	prefKeyBaseCurrency    = "monedaBase"
	prefKeyTimezone        = "timezone"
	prefKeyLastUpdated     = "lastUpdated"
	prefKeyVersion         = "version"
)

// Tables is the tabular form of a Document, one grid per collection plus the
// preferences key/value grid. A nil grid means the sheet was not found.
type Tables struct {
	Institutions Grid
	Accounts     Grid
	Assets       Grid
	Transactions Grid
	FxRates      Grid
	Preferences  Grid
}

// EncodeDocument converts every collection of doc to its grid.
func EncodeDocument(doc *models.Document) (*Tables, error) {
	var t Tables
	var err error
	if t.Institutions, err = EncodeEntities(doc.Institutions, InstitutionSchema); err != nil {
		return nil, err
	}
	if t.Accounts, err = EncodeEntities(doc.Accounts, AccountSchema); err != nil {
		return nil, err
	}
	if t.Assets, err = EncodeEntities(doc.Assets, AssetSchema); err != nil {
		return nil, err
	}
	if t.Transactions, err = EncodeEntities(doc.Transactions, TransactionSchema); err != nil {
		return nil, err
	}
	if t.FxRates, err = EncodeEntities(doc.FxRates, FxRateSchema); err != nil {
		return nil, err
	}
	t.Preferences = EncodePreferences(doc.Preferences, doc.LastUpdated, doc.Version)
	return &t, nil
}

// DecodeDocument rebuilds a Document from its grids. Missing grids decode to
// empty collections.
func DecodeDocument(t *Tables) (*models.Document, error) {
	doc := &models.Document{}
	var err error
	if doc.Institutions, err = DecodeEntities[models.Institution](t.Institutions, InstitutionSchema); err != nil {
		return nil, err
	}
	if doc.Accounts, err = DecodeEntities[models.Account](t.Accounts, AccountSchema); err != nil {
		return nil, err
	}
	if doc.Assets, err = DecodeEntities[models.Asset](t.Assets, AssetSchema); err != nil {
		return nil, err
	}
	if doc.Transactions, err = DecodeEntities[models.Transaction](t.Transactions, TransactionSchema); err != nil {
		return nil, err
	}
	if doc.FxRates, err = DecodeEntities[models.FxRate](t.FxRates, FxRateSchema); err != nil {
		return nil, err
	}
	prefs := DecodePreferences(t.Preferences)
	doc.Preferences = prefs.Preferences
	doc.LastUpdated = prefs.LastUpdated
	doc.Version = prefs.Version
	return doc, nil
}

// EncodeEntities encodes typed entities through their JSON field names.
func EncodeEntities[E any](entities []E, schema Schema) (Grid, error) {
	records := make([]Record, 0, len(entities))
	for _, e := range entities {
		raw, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", schema.Name, err)
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", schema.Name, err)
		}
		records = append(records, rec)
	}
	return Encode(records, schema.Headers()), nil
}

// DecodeEntities decodes a grid into typed entities. A JSON column whose text
// did not parse is dropped when it does not fit the entity field.
func DecodeEntities[E any](grid Grid, schema Schema) ([]E, error) {
	records := Decode(grid, schema)
	out := make([]E, 0, len(records))
	for i, rec := range records {
		e, err := fromRecord[E](rec, schema)
		if err != nil {
			return nil, fmt.Errorf("decoding %s record %d: %w", schema.Name, i+1, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func fromRecord[E any](rec Record, schema Schema) (E, error) {
	e, err := unmarshalRecord[E](rec)
	if err == nil {
		return e, nil
	}

	dropped := false
	for _, f := range schema.Fields {
		if f.Kind != JSON {
			continue
		}
		if _, isText := rec[f.Name].(string); isText {
			delete(rec, f.Name)
			dropped = true
		}
	}
	if !dropped {
		return e, err
	}
	return unmarshalRecord[E](rec)
}

func unmarshalRecord[E any](rec Record) (E, error) {
	var e E
	raw, err := json.Marshal(rec)
	if err != nil {
		return e, err
	}
	err = json.Unmarshal(raw, &e)
	return e, err
}

// PreferencesRecord is the decoded content of the preferences grid.
type PreferencesRecord struct {
	Preferences models.Preferences
	LastUpdated string
	Version     int
}

// EncodePreferences lays preferences out as a two-column key/value grid.
func EncodePreferences(p models.Preferences, lastUpdated string, version int) Grid {
	return Grid{
		{PreferencesKeyHeader, PreferencesValueHeader},
		{prefKeyBaseCurrency, string(p.BaseCurrency)},
		{prefKeyTimezone, p.Timezone},
		{prefKeyLastUpdated, lastUpdated},
		{prefKeyVersion, float64(version)},
	}
}

// DecodePreferences reads the key/value grid. Missing keys fall back to the
// default base currency, the default timezone and the initial version; a
// missing lastUpdated stays empty.
func DecodePreferences(grid Grid) PreferencesRecord {
	out := PreferencesRecord{
		Preferences: models.DefaultPreferences(),
		Version:     models.InitialVersion,
	}
	if len(grid) < 2 {
		return out
	}

	values := map[string]any{}
	for _, row := range grid[1:] {
		if len(row) < 2 || isEmptyCell(row[0]) {
			continue
		}
		values[cellString(row[0])] = row[1]
	}

	if v := cellString(values[prefKeyBaseCurrency]); v != "" {
		out.Preferences.BaseCurrency = currency.Code(v)
	}
	if v := cellString(values[prefKeyTimezone]); v != "" {
		out.Preferences.Timezone = v
	}
	out.LastUpdated = cellString(values[prefKeyLastUpdated])
	if n, ok := CoerceNumber(values[prefKeyVersion]); ok && n >= 0 {
		out.Version = int(n)
	}
	return out
}
