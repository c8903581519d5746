package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
)

// Ensure JSON implements the interface.
var _ driven.Format = (*JSON)(nil)

// BatchSchema is the JSON Schema of a batch payload.
const BatchSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["model", "fields"],
    "properties": {
      "pk": {},
      "model": {"type": "string", "minLength": 1},
      "fields": {"type": "object"}
    }
  }
}`

// JSON encodes batches as a JSON array of {"pk", "model", "fields"} objects.
type JSON struct {
	schema *jsonschema.Schema
}

// NewJSON creates a JSON format without validation.
func NewJSON() *JSON {
	return &JSON{}
}

// NewValidatingJSON creates a JSON format that validates every decoded
// payload against schema.
func NewValidatingJSON(schema string) (*JSON, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schema))
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("batch.json", doc); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile("batch.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &JSON{schema: compiled}, nil
}

// Extension returns "json".
func (f *JSON) Extension() string {
	return "json"
}

// Encode serialises a batch.
func (f *JSON) Encode(records []domain.SyncRecord) ([]byte, error) {
	return json.Marshal(nonNil(records))
}

// Decode parses a batch. Integral numbers decode as int64.
func (f *JSON) Decode(payload []byte) ([]domain.SyncRecord, error) {
	if f.schema != nil {
		inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		if err := f.schema.Validate(inst); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var records []domain.SyncRecord
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	for i := range records {
		records[i].PrimaryKey = normalise(records[i].PrimaryKey)
		for k, v := range records[i].Fields {
			records[i].Fields[k] = normalise(v)
		}
	}
	return records, nil
}

// normalise converts json.Number values to int64 or float64.
func normalise(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		for k, item := range val {
			val[k] = normalise(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalise(item)
		}
		return val
	}
	return v
}
