package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
)

// Ensure ORM implements the interface.
var _ driven.ORM = (*ORM)(nil)

// ORM is an in-memory implementation of driven.ORM for testing.
// Rows are kept per table in insertion order and keyed by primary key.
type ORM struct {
	mu       sync.RWMutex
	mode     domain.WriteMode
	pageSize int
	tables   map[string]*table
}

type table struct {
	order []string
	rows  map[string]map[string]any
}

// NewORM creates a new in-memory ORM with upsert writes and pages of 100 rows.
func NewORM() *ORM {
	return &ORM{
		mode:     domain.WriteUpsert,
		pageSize: 100,
		tables:   make(map[string]*table),
	}
}

// WithWriteMode sets the write mode.
func (o *ORM) WithWriteMode(mode domain.WriteMode) *ORM {
	o.mode = mode
	return o
}

// WithPageSize sets the number of rows per page.
func (o *ORM) WithPageSize(n int) *ORM {
	if n > 0 {
		o.pageSize = n
	}
	return o
}

// WriteRecord stores a single record.
func (o *ORM) WriteRecord(_ context.Context, recordMap *domain.RecordMap, record domain.SyncRecord) (int, error) {
	if recordMap == nil || recordMap.Table == "" {
		return 0, fmt.Errorf("%w: record map without table", domain.ErrInvalidInput)
	}
	pkColumn := recordMap.PrimaryKeyColumn()
	pkValue := record.PrimaryKey
	if pkValue == nil {
		pkValue = record.Fields[pkColumn]
	}
	if pkValue == nil {
		return 0, fmt.Errorf("%w: %s record without primary key", domain.ErrInvalidInput, record.ModelName)
	}
	key := fmt.Sprint(pkValue)

	o.mu.Lock()
	defer o.mu.Unlock()

	t, ok := o.tables[recordMap.Table]
	if !ok {
		t = &table{rows: make(map[string]map[string]any)}
		o.tables[recordMap.Table] = t
	}

	existing, exists := t.rows[key]
	switch {
	case exists && o.mode == domain.WriteCreateOnly:
		return 0, fmt.Errorf("insert %s %s: duplicate primary key", recordMap.Table, key)
	case exists:
		for k, v := range record.Fields {
			existing[k] = v
		}
		return 1, nil
	case o.mode == domain.WriteUpdateOnly:
		return 0, nil
	}

	row := make(map[string]any, len(record.Fields)+1)
	for k, v := range record.Fields {
		row[k] = v
	}
	row[pkColumn] = pkValue
	t.rows[key] = row
	t.order = append(t.order, key)
	return 1, nil
}

// ReadRecords streams every model's rows, a page at a time.
func (o *ORM) ReadRecords(ctx context.Context, tables domain.RecordTableMap, fn driven.PageFunc, _ domain.Params) error {
	for _, model := range tables.Models() {
		recordMap, ok := tables.Lookup(model)
		if !ok {
			continue
		}
		rows := o.Rows(recordMap.Table)
		for start := 0; start < len(rows); start += o.pageSize {
			end := min(start+o.pageSize, len(rows))
			page := rows[start:end]
			if recordMap.TransformTo != nil {
				var err error
				if page, err = recordMap.TransformTo(ctx, page); err != nil {
					return fmt.Errorf("transform %s: %w", model, err)
				}
			}
			out := make([]map[string]any, 0, len(page))
			for _, row := range page {
				out = append(out, recordMap.TranslateOut(row))
			}
			if err := fn(ctx, model, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// Rows returns a copy of a table's rows in insertion order.
func (o *ORM) Rows(tableName string) []map[string]any {
	o.mu.RLock()
	defer o.mu.RUnlock()

	t, ok := o.tables[tableName]
	if !ok {
		return nil
	}
	rows := make([]map[string]any, 0, len(t.order))
	for _, key := range t.order {
		row := make(map[string]any, len(t.rows[key]))
		for k, v := range t.rows[key] {
			row[k] = v
		}
		rows = append(rows, row)
	}
	return rows
}

// Seed inserts rows directly, bypassing translation.
func (o *ORM) Seed(recordMap *domain.RecordMap, rows ...map[string]any) {
	for _, row := range rows {
		_, _ = o.WriteRecord(context.Background(), recordMap, domain.SyncRecord{
			PrimaryKey: row[recordMap.PrimaryKeyColumn()],
			Fields:     row,
		})
	}
}
