package services

import (
	"context"
	"fmt"
	"path"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
	"github.com/custodia-labs/synchronoux/internal/logger"
)

// DefaultMaxRecordsPerUpload is the batch size used when none is configured.
const DefaultMaxRecordsPerUpload = 100

// TerminatorName is the base name of the object that closes an export.
const TerminatorName = "terminator"

// BatchName returns the object name of the n-th batch (n starts at 1).
func BatchName(n int, ext string) string {
	return fmt.Sprintf("push_%d.%s", n, ext)
}

// BatchResult summarises one export.
type BatchResult struct {
	// Records is the number of records uploaded.
	Records int

	// Batches is the number of numbered batches uploaded.
	Batches int

	// Terminator is the uploaded terminator object.
	Terminator *domain.MiddleFile
}

// Batcher exports local records to the middle store as numbered batches
// followed by a terminator.
type Batcher struct {
	orm         driven.ORM
	format      driven.Format
	store       driven.MiddleStore
	tables      domain.RecordTableMap
	maxRecords  int
	destination string
}

// NewBatcher creates a batcher. maxRecords <= 0 selects DefaultMaxRecordsPerUpload.
func NewBatcher(
	orm driven.ORM,
	format driven.Format,
	store driven.MiddleStore,
	tables domain.RecordTableMap,
	maxRecords int,
	destination string,
) *Batcher {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecordsPerUpload
	}
	return &Batcher{
		orm:         orm,
		format:      format,
		store:       store,
		tables:      tables,
		maxRecords:  maxRecords,
		destination: destination,
	}
}

// Push streams every mapped model out of the ORM and uploads it.
// At least one numbered batch is always uploaded, even with no records.
func (b *Batcher) Push(ctx context.Context, params domain.Params, emit domain.EventListener) (*BatchResult, error) {
	result := &BatchResult{}
	buffer := make([]domain.SyncRecord, 0, b.maxRecords)

	flush := func(records []domain.SyncRecord) error {
		file, err := b.upload(ctx, BatchName(result.Batches+1, b.format.Extension()), records, params)
		if err != nil {
			return err
		}
		result.Batches++
		result.Records += len(records)
		if emit != nil {
			emit(ctx, domain.Event{
				Name:    domain.EventBatchUploaded,
				Message: fmt.Sprintf("uploaded %s with %d record(s)", file.Name, len(records)),
				Params:  params,
				Model:   batchModel(records),
			})
		}
		return nil
	}

	err := b.orm.ReadRecords(ctx, b.tables, func(ctx context.Context, model string, rows []map[string]any) error {
		recordMap, _ := b.tables.Lookup(model)
		pk := recordMap.ExternalPrimaryKey()
		for _, row := range rows {
			key, ok := row[pk]
			if !ok {
				key = row[recordMap.PrimaryKeyColumn()]
			}
			buffer = append(buffer, domain.SyncRecord{
				PrimaryKey: key,
				ModelName:  model,
				Fields:     row,
			})
			if len(buffer) >= b.maxRecords {
				if err := flush(buffer); err != nil {
					return err
				}
				buffer = make([]domain.SyncRecord, 0, b.maxRecords)
			}
		}
		return nil
	}, params)
	if err != nil {
		return result, fmt.Errorf("read records: %w", err)
	}

	if len(buffer) > 0 || result.Batches == 0 {
		if err := flush(buffer); err != nil {
			return result, err
		}
	}

	terminator, err := b.upload(ctx, TerminatorName+"."+b.format.Extension(), []domain.SyncRecord{}, params)
	if err != nil {
		return result, err
	}
	result.Terminator = terminator
	if emit != nil {
		emit(ctx, domain.Event{
			Name:    domain.EventTerminatorUploaded,
			Message: fmt.Sprintf("uploaded %s after %d batch(es)", terminator.Name, result.Batches),
			Params:  params,
		})
	}
	logger.Debug("Pushed %d record(s) in %d batch(es)", result.Records, result.Batches)
	return result, nil
}

func (b *Batcher) upload(
	ctx context.Context,
	name string,
	records []domain.SyncRecord,
	params domain.Params,
) (*domain.MiddleFile, error) {
	payload, err := b.format.Encode(records)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	destination := path.Join(b.destination, name)
	file, err := b.store.UploadString(ctx, string(payload), destination, batchModel(records), params)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", destination, err)
	}
	if file == nil {
		file = &domain.MiddleFile{Name: destination, Locator: destination, Size: int64(len(payload))}
	}
	return file, nil
}

// batchModel returns the model of the first record, which names the upload.
func batchModel(records []domain.SyncRecord) string {
	if len(records) == 0 {
		return ""
	}
	return records[0].ModelName
}
