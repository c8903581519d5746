package sqlorm

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
	"github.com/custodia-labs/synchronoux/internal/logger"
)

// Ensure ORM implements the interface.
var _ driven.ORM = (*ORM)(nil)

// DefaultLimitPerQuery is the page size of reads when none is configured.
const DefaultLimitPerQuery = 100

// Event is a notification about a single record write.
type Event string

const (
	EventPreparingToWrite Event = "PREPARING_TO_WRITE_RECORD"
	EventSkipWriting      Event = "SKIP_WRITING_RECORD"
	EventCreateNew        Event = "CREATE_NEW_RECORD"
	EventUpdateExisting   Event = "UPDATE_EXISTING_RECORD"
	EventWhereFalse       Event = "WHERE_FUNCTION_RETURN_FALSE"
)

// Listener receives write events. Returning false for EventPreparingToWrite
// skips the record; the result is ignored for every other event.
type Listener func(ctx context.Context, event Event, message string, record domain.SyncRecord) bool

// WhereFunc builds the clause that finds the existing row of a record.
// Returning ok=false skips the record. A nil clause keeps the primary key lookup.
type WhereFunc func(record domain.SyncRecord) (where map[string]any, ok bool)

// Options configures an ORM.
type Options struct {
	// WriteMode selects insert/update behaviour. Defaults to domain.WriteUpsert.
	WriteMode domain.WriteMode

	// LimitPerQuery is the page size of reads. Defaults to DefaultLimitPerQuery.
	LimitPerQuery int

	// RawRead disables the reverse column mapping of rows read for push.
	RawRead bool

	// Where overrides the primary key lookup of writes.
	Where WhereFunc

	// Listener receives write events.
	Listener Listener
}

// ORM is a driven.ORM over database/sql. It writes records whose fields are
// already local column names and reads whole tables a page at a time.
type ORM struct {
	db      *sql.DB
	dialect Dialect
	opts    Options
}

// NewORM creates an ORM on an open database.
func NewORM(db *sql.DB, dialect Dialect, opts Options) *ORM {
	if opts.WriteMode == "" {
		opts.WriteMode = domain.WriteUpsert
	}
	if opts.LimitPerQuery <= 0 {
		opts.LimitPerQuery = DefaultLimitPerQuery
	}
	if dialect == nil {
		dialect = sqliteDialect{}
	}
	return &ORM{db: db, dialect: dialect, opts: opts}
}

// Close closes the underlying database.
func (o *ORM) Close() error {
	return o.db.Close()
}

// WriteRecord writes one record into the table of recordMap.
func (o *ORM) WriteRecord(ctx context.Context, recordMap *domain.RecordMap, record domain.SyncRecord) (int, error) {
	if recordMap == nil || recordMap.Table == "" {
		return 0, fmt.Errorf("%w: record map without table", domain.ErrInvalidInput)
	}

	if !o.notify(ctx, EventPreparingToWrite, "preparing to write record", record) {
		o.notify(ctx, EventSkipWriting, "skipping the writing of the record", record)
		return 0, nil
	}

	pkColumn := recordMap.PrimaryKeyColumn()
	fields := make(map[string]any, len(record.Fields)+1)
	for k, v := range record.Fields {
		fields[k] = v
	}
	if _, ok := fields[pkColumn]; !ok && record.PrimaryKey != nil {
		fields[pkColumn] = record.PrimaryKey
	}
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: %s record without fields", domain.ErrInvalidInput, record.ModelName)
	}

	where := map[string]any{}
	if pk, ok := fields[pkColumn]; ok && pk != nil {
		where[pkColumn] = pk
	}
	if o.opts.Where != nil {
		clause, ok := o.opts.Where(domain.SyncRecord{PrimaryKey: record.PrimaryKey, ModelName: record.ModelName, Fields: fields})
		if !ok {
			o.notify(ctx, EventWhereFalse, "skipping the record sync", record)
			return 0, nil
		}
		if clause != nil {
			where = clause
		}
	}

	if o.opts.WriteMode != domain.WriteCreateOnly && len(where) > 0 {
		exists, err := o.exists(ctx, recordMap.Table, where)
		if err != nil {
			return 0, err
		}
		if exists {
			if err := o.update(ctx, recordMap.Table, fields, where); err != nil {
				return 0, err
			}
			o.notify(ctx, EventUpdateExisting, "successfully updated an existing record", record)
			return 1, nil
		}
		if o.opts.WriteMode == domain.WriteUpdateOnly {
			return 0, nil
		}
	}

	if err := o.insert(ctx, recordMap.Table, fields); err != nil {
		return 0, err
	}
	o.notify(ctx, EventCreateNew, "successfully created a new record", record)
	return 1, nil
}

// ReadRecords streams every model's rows, LimitPerQuery rows at a time.
// The model's Filter and params[domain.ParamDataQuery] restrict the rows.
func (o *ORM) ReadRecords(ctx context.Context, tables domain.RecordTableMap, fn driven.PageFunc, params domain.Params) error {
	for _, model := range tables.Models() {
		recordMap, ok := tables.Lookup(model)
		if !ok {
			continue
		}
		if err := o.readModel(ctx, model, recordMap, fn, params); err != nil {
			return err
		}
	}
	return nil
}

func (o *ORM) readModel(
	ctx context.Context,
	model string,
	recordMap *domain.RecordMap,
	fn driven.PageFunc,
	params domain.Params,
) error {
	table := o.dialect.Quote(recordMap.Table)
	where := whereSQL(recordMap.Filter, params.String(domain.ParamDataQuery))

	var count int
	if err := o.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+where).Scan(&count); err != nil {
		return fmt.Errorf("counting %s: %w", recordMap.Table, err)
	}

	pages := (count + o.opts.LimitPerQuery - 1) / o.opts.LimitPerQuery
	logger.Debug("Reading %d row(s) of %s in %d page(s)", count, recordMap.Table, pages)

	query := fmt.Sprintf("SELECT * FROM %s%s ORDER BY %s LIMIT %d OFFSET ",
		table, where, o.dialect.Quote(recordMap.PrimaryKeyColumn()), o.opts.LimitPerQuery)
	for page := 0; page < pages; page++ {
		rows, err := o.queryRows(ctx, fmt.Sprintf("%s%d", query, page*o.opts.LimitPerQuery))
		if err != nil {
			return fmt.Errorf("reading %s: %w", recordMap.Table, err)
		}
		if recordMap.TransformTo != nil {
			if rows, err = recordMap.TransformTo(ctx, rows); err != nil {
				return fmt.Errorf("transform %s: %w", model, err)
			}
		}
		if !o.opts.RawRead {
			for i, row := range rows {
				rows[i] = recordMap.TranslateOut(row)
			}
		}
		if err := fn(ctx, model, rows); err != nil {
			return err
		}
	}
	return nil
}

func (o *ORM) queryRows(ctx context.Context, query string) ([]map[string]any, error) {
	rows, err := o.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any //nolint:prealloc // size unknown from query
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				row[column] = string(b)
				continue
			}
			row[column] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (o *ORM) exists(ctx context.Context, table string, where map[string]any) (bool, error) {
	clause, args := o.conditions(where, 1)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", o.dialect.Quote(table), clause)
	var n int
	if err := o.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("finding %s record: %w", table, err)
	}
	return n > 0, nil
}

func (o *ORM) update(ctx context.Context, table string, fields, where map[string]any) error {
	columns := sortedKeys(fields)
	sets := make([]string, len(columns))
	args := make([]any, 0, len(columns)+len(where))
	for i, column := range columns {
		sets[i] = fmt.Sprintf("%s = %s", o.dialect.Quote(column), o.dialect.Placeholder(i+1))
		args = append(args, columnValue(fields[column]))
	}
	clause, whereArgs := o.conditions(where, len(columns)+1)
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", o.dialect.Quote(table), strings.Join(sets, ", "), clause)
	if _, err := o.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating %s record: %w", table, err)
	}
	return nil
}

func (o *ORM) insert(ctx context.Context, table string, fields map[string]any) error {
	columns := sortedKeys(fields)
	names := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, column := range columns {
		names[i] = o.dialect.Quote(column)
		placeholders[i] = o.dialect.Placeholder(i + 1)
		args[i] = columnValue(fields[column])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		o.dialect.Quote(table), strings.Join(names, ", "), strings.Join(placeholders, ", "))
	if _, err := o.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting %s record: %w", table, err)
	}
	return nil
}

// conditions renders an AND of equality conditions whose placeholders start at first.
func (o *ORM) conditions(where map[string]any, first int) (string, []any) {
	columns := sortedKeys(where)
	parts := make([]string, len(columns))
	args := make([]any, 0, len(columns))
	n := first
	for i, column := range columns {
		if where[column] == nil {
			parts[i] = o.dialect.Quote(column) + " IS NULL"
			continue
		}
		parts[i] = fmt.Sprintf("%s = %s", o.dialect.Quote(column), o.dialect.Placeholder(n))
		args = append(args, columnValue(where[column]))
		n++
	}
	return strings.Join(parts, " AND "), args
}

func (o *ORM) notify(ctx context.Context, event Event, message string, record domain.SyncRecord) bool {
	if o.opts.Listener == nil {
		return true
	}
	return o.opts.Listener(ctx, event, message, record)
}

// whereSQL joins the non-empty filters into a WHERE clause.
func whereSQL(filters ...string) string {
	var parts []string
	for _, f := range filters {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, "("+f+")")
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(parts, " AND ")
}

// columnValue stores nested values as JSON text.
func columnValue(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
	return v
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
