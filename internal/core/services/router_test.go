package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/synchronoux/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
)

// failingORM fails every write.
type failingORM struct {
	err error
}

func (f *failingORM) WriteRecord(context.Context, *domain.RecordMap, domain.SyncRecord) (int, error) {
	return 0, f.err
}

func (f *failingORM) ReadRecords(context.Context, domain.RecordTableMap, driven.PageFunc, domain.Params) error {
	return f.err
}

func usersTables() domain.RecordTableMap {
	return domain.RecordTableMap{
		"users": {Table: "users", NameCasing: domain.SnakeCase, ReverseNameCasing: domain.CamelCase},
	}
}

func userRecord(id int64, name string) domain.SyncRecord {
	return domain.SyncRecord{
		PrimaryKey: id,
		ModelName:  "users",
		Fields:     map[string]any{"id": id, "firstName": name},
	}
}

type eventRecorder struct {
	events []domain.Event
}

func (r *eventRecorder) notify(decision domain.Decision) notifyFunc {
	return func(_ context.Context, event domain.Event) domain.Decision {
		r.events = append(r.events, event)
		return decision
	}
}

func TestRouter_UnmappedModelAbortsRestOfBatch(t *testing.T) {
	orm := memory.NewORM()
	router := NewRouter(orm, usersTables())
	rec := &eventRecorder{}

	batch := []domain.SyncRecord{
		userRecord(1, "Ada"),
		userRecord(2, "Grace"),
		{PrimaryKey: 9, ModelName: "invoices", Fields: map[string]any{"id": 9}},
		userRecord(3, "Linus"),
	}

	written, err := router.Route(context.Background(), batch, rec.notify(domain.Abort))

	require.NoError(t, err)
	assert.Equal(t, 2, written)
	assert.Len(t, orm.Rows("users"), 2)
	require.Len(t, rec.events, 1)
	assert.Equal(t, domain.EventNoRecordMapping, rec.events[0].Name)
	assert.Equal(t, "invoices", rec.events[0].Model)
	assert.ErrorIs(t, rec.events[0].Err, domain.ErrNoRecordMapping)
}

func TestRouter_UnmappedModelWithoutNotifyAborts(t *testing.T) {
	orm := memory.NewORM()
	router := NewRouter(orm, usersTables())

	written, err := router.Route(context.Background(), []domain.SyncRecord{
		{ModelName: "ghost"},
		userRecord(1, "Ada"),
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 0, written)
	assert.Empty(t, orm.Rows("users"))
}

func TestRouter_UnmappedModelContinueSkipsOnlyThatRecord(t *testing.T) {
	orm := memory.NewORM()
	router := NewRouter(orm, usersTables())
	rec := &eventRecorder{}

	written, err := router.Route(context.Background(), []domain.SyncRecord{
		userRecord(1, "Ada"),
		{PrimaryKey: 9, ModelName: "invoices"},
		userRecord(3, "Linus"),
	}, rec.notify(domain.Continue))

	require.NoError(t, err)
	assert.Equal(t, 2, written)
	assert.Len(t, orm.Rows("users"), 2)
	assert.Len(t, rec.events, 1)
}

func TestRouter_TranslatesAndTransforms(t *testing.T) {
	orm := memory.NewORM()
	tables := domain.RecordTableMap{
		"users": {
			Table:      "people",
			ColumnMap:  map[string]string{"mail": "email_address"},
			NameCasing: domain.SnakeCase,
			TransformFrom: func(_ context.Context, fields map[string]any) (map[string]any, error) {
				fields["first_name"] = strings.ToUpper(fields["first_name"].(string))
				return fields, nil
			},
		},
	}
	router := NewRouter(orm, tables)

	written, err := router.Route(context.Background(), []domain.SyncRecord{{
		PrimaryKey: int64(5),
		ModelName:  "users",
		Fields: map[string]any{
			"id":        int64(5),
			"firstName": "ada",
			"mail":      "ada@example.com",
			"nickname":  nil,
		},
	}}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, written)
	rows := orm.Rows("people")
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]any{
		"id":            int64(5),
		"first_name":    "ADA",
		"email_address": "ada@example.com",
	}, rows[0])
}

func TestRouter_TransformError(t *testing.T) {
	boom := errors.New("bad row")
	tables := domain.RecordTableMap{
		"users": {Table: "users", TransformFrom: func(context.Context, map[string]any) (map[string]any, error) {
			return nil, boom
		}},
	}
	router := NewRouter(memory.NewORM(), tables)

	_, err := router.Route(context.Background(), []domain.SyncRecord{userRecord(1, "Ada")}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestRouter_WriteErrorStopsBatch(t *testing.T) {
	boom := errors.New("constraint violation")
	router := NewRouter(&failingORM{err: boom}, usersTables())

	written, err := router.Route(context.Background(), []domain.SyncRecord{userRecord(1, "Ada"), userRecord(2, "Grace")}, nil)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, written)
}

func TestRouter_ColumnMapRoundTrip(t *testing.T) {
	orm := memory.NewORM()
	tables := domain.RecordTableMap{
		"users": {
			Table:             "people",
			ColumnMap:         map[string]string{"extRef": "legacy_ref", "mail": "email_address"},
			NameCasing:        domain.SnakeCase,
			ReverseNameCasing: domain.CamelCase,
		},
	}
	original := map[string]any{
		"id":        int64(1),
		"firstName": "Ada",
		"extRef":    "X-1",
		"mail":      "ada@example.com",
	}

	_, err := NewRouter(orm, tables).Route(context.Background(), []domain.SyncRecord{
		{PrimaryKey: int64(1), ModelName: "users", Fields: original},
	}, nil)
	require.NoError(t, err)

	var read []map[string]any
	err = orm.ReadRecords(context.Background(), tables, func(_ context.Context, _ string, rows []map[string]any) error {
		read = append(read, rows...)
		return nil
	}, nil)
	require.NoError(t, err)

	require.Len(t, read, 1)
	assert.ElementsMatch(t, keys(original), keys(read[0]))
	assert.Equal(t, original, read[0])
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
