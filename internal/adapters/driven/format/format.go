// Package format provides the batch payload encodings: JSON (optionally
// validated against a JSON Schema), XML and TOML.
package format

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
)

// Kind names a format.
type Kind string

const (
	KindJSON Kind = "json"
	KindXML  Kind = "xml"
	KindTOML Kind = "toml"
)

// Config selects and configures a format.
type Config struct {
	// Kind is the encoding. Empty selects JSON.
	Kind string

	// Schema is a JSON Schema document every decoded JSON payload must
	// satisfy. Ignored by the other kinds.
	Schema string
}

// New creates the format described by cfg.
func New(cfg Config) (driven.Format, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(cfg.Kind))) {
	case "", KindJSON:
		if cfg.Schema != "" {
			return NewValidatingJSON(cfg.Schema)
		}
		return NewJSON(), nil
	case KindXML:
		return NewXML(), nil
	case KindTOML:
		return NewTOML(), nil
	}
	return nil, fmt.Errorf("%w: format %q", domain.ErrUnsupportedType, cfg.Kind)
}

// nonNil guarantees an empty batch encodes as an empty collection.
func nonNil(records []domain.SyncRecord) []domain.SyncRecord {
	if records == nil {
		return []domain.SyncRecord{}
	}
	return records
}
