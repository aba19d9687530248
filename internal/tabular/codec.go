// Package tabular converts ledger collections to and from grids of cells: a
// header row of field names followed by one row per entity. Decoding is driven
// by an explicit Schema so every column is coerced by its declared kind.
package tabular

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Grid is a 2-D block of cell values as exchanged with a cell-grid backend.
// Cells hold strings, float64, bool, or nil.
type Grid [][]any

// Record is one decoded row keyed by header name. A missing key is an absent
// field; it is never stored as nil or zero.
type Record map[string]any

// Kind declares how a column is encoded and coerced on decode.
type Kind int

const (
	// Text cells decode to their string form.
	Text Kind = iota
	// JSON cells hold a structured value serialized as a JSON string.
	JSON
	// Number cells are required numerics; anything unparseable becomes 0.
	Number
	// OptionalNumber cells stay absent when empty or unparseable.
	OptionalNumber
	// Bool cells accept TRUE/FALSE in any case, or 1/0.
	Bool
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case JSON:
		return "json"
	case Number:
		return "number"
	case OptionalNumber:
		return "optional-number"
	case Bool:
		return "bool"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Field is one column of a Schema.
type Field struct {
	Name string
	Kind Kind
}

// Schema is the ordered column list for one collection.
type Schema struct {
	Name   string
	Fields []Field
}

// Headers returns the column names in order.
func (s Schema) Headers() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// KindOf returns the declared kind of a column. Columns outside the schema
// are treated as Text.
func (s Schema) KindOf(name string) Kind {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Kind
		}
	}
	return Text
}

// Encode lays records out under headers. With no records the grid holds only
// the header row. Absent or nil values become empty strings, structured values
// are JSON-encoded, and scalars pass through unchanged.
func Encode(records []Record, headers []string) Grid {
	head := make([]any, len(headers))
	for i, h := range headers {
		head[i] = h
	}
	grid := Grid{head}

	for _, rec := range records {
		row := make([]any, len(headers))
		for i, h := range headers {
			row[i] = encodeCell(rec[h])
		}
		grid = append(grid, row)
	}
	return grid
}

func encodeCell(v any) any {
	switch val := v.(type) {
	case nil:
		return ""
	case string, bool, float64, float32, int, int64, int32:
		return val
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	}
}

// Decode reads a grid whose first row is the header. Grids with fewer than two
// rows decode to nothing, and rows whose cells are all empty are skipped.
func Decode(grid Grid, schema Schema) []Record {
	if len(grid) < 2 {
		return []Record{}
	}

	headers := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		headers[i] = strings.TrimSpace(cellString(h))
	}

	out := make([]Record, 0, len(grid)-1)
	for _, row := range grid[1:] {
		if isBlankRow(row) {
			continue
		}
		rec := Record{}
		for i, h := range headers {
			if h == "" {
				continue
			}
			var cell any
			if i < len(row) {
				cell = row[i]
			}
			if v, ok := decodeCell(cell, schema.KindOf(h)); ok {
				rec[h] = v
			}
		}
		out = append(out, rec)
	}
	return out
}

func isBlankRow(row []any) bool {
	for _, cell := range row {
		if !isEmptyCell(cell) {
			return false
		}
	}
	return true
}

func isEmptyCell(cell any) bool {
	if cell == nil {
		return true
	}
	s, ok := cell.(string)
	return ok && s == ""
}

// decodeCell coerces one cell by kind. The second result is false when the
// field should be left absent.
func decodeCell(cell any, kind Kind) (any, bool) {
	if kind == Number {
		n, ok := CoerceNumber(cell)
		if !ok {
			return 0.0, true
		}
		return n, true
	}

	if isEmptyCell(cell) {
		return nil, false
	}

	switch kind {
	case OptionalNumber:
		return CoerceNumber(cell)
	case Bool:
		return coerceBool(cell)
	case JSON:
		s, ok := cell.(string)
		if !ok {
			return cell, true
		}
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return s, true
		}
		return v, true
	default:
		return cellString(cell), true
	}
}

// CoerceNumber converts a cell to a finite float64. It reports false for
// values that are not numbers, including NaN and infinities.
func CoerceNumber(cell any) (float64, bool) {
	var f float64
	switch v := cell.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case int32:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func coerceBool(cell any) (any, bool) {
	switch v := cell.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	case float64:
		return v != 0, true
	}
	return nil, false
}

func cellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
