package driven

import (
	"context"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

// PageFunc receives one page of rows read from the local store.
// Rows are already reverse-mapped to external field names.
type PageFunc func(ctx context.Context, model string, rows []map[string]any) error

// ORM reads and writes records in the local relational store.
// Writes must be idempotent: the pipeline is at-least-once.
type ORM interface {
	// WriteRecord stores a single record using recordMap's table.
	// record.Fields are already translated to local column names.
	// Returns the number of rows written (0 when the write was skipped).
	WriteRecord(ctx context.Context, recordMap *domain.RecordMap, record domain.SyncRecord) (int, error)

	// ReadRecords streams every row of every model in tables, page by page.
	// Returning an error from fn stops the read and returns that error.
	ReadRecords(ctx context.Context, tables domain.RecordTableMap, fn PageFunc, params domain.Params) error
}
