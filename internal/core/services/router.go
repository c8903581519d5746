package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
	"github.com/custodia-labs/synchronoux/internal/logger"
)

// notifyFunc emits an event and returns the failure policy's decision on it.
type notifyFunc func(ctx context.Context, event domain.Event) domain.Decision

// Router dispatches decoded records to the ORM using the record table map.
type Router struct {
	orm    driven.ORM
	tables domain.RecordTableMap
}

// NewRouter creates a router.
func NewRouter(orm driven.ORM, tables domain.RecordTableMap) *Router {
	return &Router{orm: orm, tables: tables}
}

// Route writes a decoded batch in order and returns the number of rows written.
//
// A record whose model is not mapped raises NO_RECORD_MAPPING. When notify
// answers Abort the rest of the batch is dropped (records already written
// stay written); Continue skips only that record. A write failure stops the
// batch and is returned.
func (r *Router) Route(ctx context.Context, records []domain.SyncRecord, notify notifyFunc) (int, error) {
	written := 0
	for i, record := range records {
		recordMap, ok := r.tables.Lookup(record.ModelName)
		if !ok {
			decision := domain.Abort
			if notify != nil {
				decision = notify(ctx, domain.Event{
					Name:    domain.EventNoRecordMapping,
					Message: fmt.Sprintf("no record mapping for the record: %s", record.ModelName),
					Err:     fmt.Errorf("%w: %s", domain.ErrNoRecordMapping, record.ModelName),
					Model:   record.ModelName,
				})
			}
			if decision == domain.Continue {
				continue
			}
			logger.Warn("Dropping %d remaining record(s) after unmapped model %q", len(records)-i-1, record.ModelName)
			return written, nil
		}

		n, err := r.write(ctx, recordMap, record)
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

func (r *Router) write(ctx context.Context, recordMap *domain.RecordMap, record domain.SyncRecord) (int, error) {
	fields := recordMap.TranslateIn(record.Fields)
	if recordMap.TransformFrom != nil {
		var err error
		fields, err = recordMap.TransformFrom(ctx, fields)
		if err != nil {
			return 0, fmt.Errorf("transform %s record %v: %w", record.ModelName, record.PrimaryKey, err)
		}
	}

	n, err := r.orm.WriteRecord(ctx, recordMap, domain.SyncRecord{
		PrimaryKey: record.PrimaryKey,
		ModelName:  record.ModelName,
		Fields:     fields,
	})
	if err != nil {
		return 0, fmt.Errorf("write %s record %v: %w", record.ModelName, record.PrimaryKey, err)
	}
	return n, nil
}
