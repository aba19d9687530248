package models

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalidStructure is returned for documents that fail the structural check.
var ErrInvalidStructure = errors.New("invalid document structure")

//go:embed schema/document.schema.json
var documentSchemaJSON []byte

const documentSchemaURL = "https://ledgersync.local/schema/document.schema.json"

var (
	documentSchema     *jsonschema.Schema
	documentSchemaErr  error
	documentSchemaOnce sync.Once
)

func compiledSchema() (*jsonschema.Schema, error) {
	documentSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(documentSchemaJSON))
		if err != nil {
			documentSchemaErr = fmt.Errorf("parsing document schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(documentSchemaURL, doc); err != nil {
			documentSchemaErr = fmt.Errorf("adding document schema: %w", err)
			return
		}
		documentSchema, documentSchemaErr = c.Compile(documentSchemaURL)
	})
	return documentSchema, documentSchemaErr
}

// ValidateJSON checks that raw is a structurally valid Document: a
// non-negative integer version, all five collections present as arrays, and
// a preferences object with a base currency.
func ValidateJSON(raw []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	return nil
}
