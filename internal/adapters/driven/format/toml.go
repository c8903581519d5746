package format

import (
	"bytes"
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
)

// Ensure TOML implements the interface.
var _ driven.Format = (*TOML)(nil)

// TOML encodes batches as an array of tables named "records".
// TOML has no null, so nil field values are dropped on encode.
type TOML struct{}

type tomlBatch struct {
	Records []domain.SyncRecord `toml:"records"`
}

// NewTOML creates a TOML format.
func NewTOML() *TOML {
	return &TOML{}
}

// Extension returns "toml".
func (f *TOML) Extension() string {
	return "toml"
}

// Encode serialises a batch.
func (f *TOML) Encode(records []domain.SyncRecord) ([]byte, error) {
	batch := tomlBatch{Records: make([]domain.SyncRecord, 0, len(records))}
	for _, r := range records {
		fields := make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			if v != nil {
				fields[k] = v
			}
		}
		batch.Records = append(batch.Records, domain.SyncRecord{
			PrimaryKey: r.PrimaryKey,
			ModelName:  r.ModelName,
			Fields:     fields,
		})
	}

	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(batch); err != nil {
		return nil, fmt.Errorf("encode toml: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a batch.
func (f *TOML) Decode(payload []byte) ([]domain.SyncRecord, error) {
	var batch tomlBatch
	if err := toml.Unmarshal(payload, &batch); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nonNil(batch.Records), nil
}
