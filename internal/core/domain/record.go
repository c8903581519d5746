package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Params carries per-call parameters from the caller down to the driven
// ports (for example a middle-store folder override or an ORM filter).
// The orchestrator never interprets them.
type Params map[string]any

// String returns the string value stored under key, or "" if absent.
func (p Params) String(key string) string {
	if p == nil {
		return ""
	}
	s, _ := p[key].(string)
	return s
}

// Well-known parameter keys understood by the bundled adapters.
const (
	// ParamFolder overrides the middle-store prefix used by WaitAction and pull cleanup.
	ParamFolder = "folder"

	// ParamDataQuery adds an extra SQL filter to every ORM read.
	ParamDataQuery = "dataQuery"
)

// SyncRecord is a single record moving through the middle store.
// It is produced by decoding a pulled batch or by reading the local store for push.
type SyncRecord struct {
	// PrimaryKey identifies the record within its model.
	PrimaryKey any `json:"pk" toml:"pk,omitempty"`

	// ModelName is the key into the RecordTableMap.
	ModelName string `json:"model" toml:"model"`

	// Fields holds the record's field values keyed by external field name.
	Fields map[string]any `json:"fields" toml:"fields"`
}

// NameCasing selects the naming convention applied to untranslated field names.
type NameCasing string

const (
	// CamelCase converts field names to camelCase.
	CamelCase NameCasing = "CAMEL_CASE"
	// SnakeCase converts field names to snake_case.
	SnakeCase NameCasing = "SNAKE_CASE"
)

// TransformFunc rewrites a single record's translated fields before it is written.
type TransformFunc func(ctx context.Context, fields map[string]any) (map[string]any, error)

// PageTransformFunc rewrites a page of rows after they are read from the local store.
type PageTransformFunc func(ctx context.Context, rows []map[string]any) ([]map[string]any, error)

// RecordMap is the per-model configuration used to route and translate records.
// It is immutable after construction and shared by pointer.
type RecordMap struct {
	// Table is the local table owning the model. Opaque to the orchestrator.
	Table string

	// PrimaryKey is the local primary key column. Defaults to "id".
	PrimaryKey string

	// ColumnMap translates external field names to local column names.
	ColumnMap map[string]string

	// NameCasing is applied to every field on the way in. Defaults to CamelCase.
	NameCasing NameCasing

	// ReverseNameCasing is applied to every column on the way out. Defaults to SnakeCase.
	ReverseNameCasing NameCasing

	// Filter is an optional SQL condition restricting the rows pushed for this model.
	Filter string

	// TransformFrom runs after field translation and before the ORM write.
	TransformFrom TransformFunc

	// TransformTo runs on each page read from the local store before reverse mapping.
	TransformTo PageTransformFunc
}

// PrimaryKeyColumn returns the configured primary key column or "id".
func (m *RecordMap) PrimaryKeyColumn() string {
	if m == nil || m.PrimaryKey == "" {
		return "id"
	}
	return m.PrimaryKey
}

// ExternalPrimaryKey returns the field name the primary key column is
// exported as by TranslateOut.
func (m *RecordMap) ExternalPrimaryKey() string {
	pk := m.PrimaryKeyColumn()
	if m == nil {
		return pk
	}
	for key := range m.TranslateOut(map[string]any{pk: true}) {
		return key
	}
	return pk
}

// TranslateIn maps external field names to local column names.
func (m *RecordMap) TranslateIn(fields map[string]any) map[string]any {
	casing := m.NameCasing
	if casing == "" {
		casing = CamelCase
	}
	return TranslateColumns(fields, m.ColumnMap, casing)
}

// TranslateOut maps local column names back to external field names using
// the inverse of ColumnMap.
func (m *RecordMap) TranslateOut(columns map[string]any) map[string]any {
	casing := m.ReverseNameCasing
	if casing == "" {
		casing = SnakeCase
	}
	return TranslateColumns(columns, ReverseColumnMap(m.ColumnMap), casing)
}

// RecordTableMap maps model names to their RecordMap.
// It defines every model an orchestrator instance can synchronise.
type RecordTableMap map[string]*RecordMap

// Models returns the model names in a stable order.
func (t RecordTableMap) Models() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the RecordMap for a model.
func (t RecordTableMap) Lookup(model string) (*RecordMap, bool) {
	m, ok := t[model]
	if !ok || m == nil {
		return nil, false
	}
	return m, true
}

// MiddleFile describes an object written to the middle store.
type MiddleFile struct {
	// Name is the object path within the middle store.
	Name string

	// Locator is what WaitAction reports for this object.
	Locator string

	// Size is the payload size in bytes.
	Size int64

	// ETag is the backend's content tag, when it reports one.
	ETag string
}

// CleanupPhase selects which middle-store location a cleanup targets.
type CleanupPhase string

const (
	// CleanupPull removes the objects consumed by a pull.
	CleanupPull CleanupPhase = "PULL"
	// CleanupPush runs after a push has uploaded its terminator.
	CleanupPush CleanupPhase = "PUSH"
)

// WriteMode selects how an ORM writes a record whose primary key may
// already exist.
type WriteMode string

const (
	// WriteCreateOnly always inserts.
	WriteCreateOnly WriteMode = "CREATE_ONLY"
	// WriteUpdateOnly updates existing rows and skips the rest.
	WriteUpdateOnly WriteMode = "UPDATE_ONLY"
	// WriteUpsert updates existing rows and inserts the rest.
	WriteUpsert WriteMode = "UPDATE_IF_EXISTS_ELSE_CREATE"
)

// ParseWriteMode parses a write mode name. An empty name selects WriteUpsert.
func ParseWriteMode(s string) (WriteMode, error) {
	switch m := WriteMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case "":
		return WriteUpsert, nil
	case WriteCreateOnly, WriteUpdateOnly, WriteUpsert:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown write mode %q", ErrInvalidInput, s)
}
