package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToCamelCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"first_name", "firstName"},
		{"created-at", "createdAt"},
		{"already", "already"},
		{"firstName", "firstName"},
		{"user id", "userId"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ToCamelCase(tt.in))
		})
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"firstName", "first_name"},
		{"FirstName", "first_name"},
		{"createdAtUTC", "created_at_utc"},
		{"plain", "plain"},
		{"first_name", "first_name"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ToSnakeCase(tt.in))
		})
	}
}

func TestTranslateColumns_DropsNilValues(t *testing.T) {
	out := TranslateColumns(map[string]any{
		"firstName": "Ada",
		"nickname":  nil,
	}, nil, SnakeCase)

	assert.Equal(t, map[string]any{"first_name": "Ada"}, out)
}

func TestTranslateColumns_ColumnMapThenCasing(t *testing.T) {
	out := TranslateColumns(map[string]any{
		"extId": 7,
	}, map[string]string{"extId": "legacyRef"}, SnakeCase)

	assert.Equal(t, map[string]any{"legacy_ref": 7}, out)
}

func TestRecordMap_RoundTrip(t *testing.T) {
	rm := &RecordMap{
		Table:             "people",
		ColumnMap:         map[string]string{"extId": "legacy_ref", "mail": "email_address"},
		NameCasing:        SnakeCase,
		ReverseNameCasing: CamelCase,
	}
	external := map[string]any{
		"firstName": "Ada",
		"extId":     42,
		"mail":      "ada@example.com",
	}

	local := rm.TranslateIn(external)
	assert.Equal(t, map[string]any{
		"first_name":    "Ada",
		"legacy_ref":    42,
		"email_address": "ada@example.com",
	}, local)

	back := rm.TranslateOut(local)
	assert.Equal(t, external, back)
}

func TestRecordMap_Defaults(t *testing.T) {
	var rm *RecordMap
	assert.Equal(t, "id", rm.PrimaryKeyColumn())

	rm = &RecordMap{PrimaryKey: "uuid"}
	assert.Equal(t, "uuid", rm.PrimaryKeyColumn())

	// camelCase in, snake_case out
	rm = &RecordMap{}
	assert.Equal(t, map[string]any{"fooBar": 1}, rm.TranslateIn(map[string]any{"foo_bar": 1}))
	assert.Equal(t, map[string]any{"foo_bar": 1}, rm.TranslateOut(map[string]any{"fooBar": 1}))
}

func TestRecordTableMap(t *testing.T) {
	tables := RecordTableMap{
		"users":  {Table: "users"},
		"orders": {Table: "orders"},
		"broken": nil,
	}

	assert.Equal(t, []string{"broken", "orders", "users"}, tables.Models())

	_, ok := tables.Lookup("users")
	assert.True(t, ok)
	_, ok = tables.Lookup("broken")
	assert.False(t, ok)
	_, ok = tables.Lookup("missing")
	assert.False(t, ok)
}

func TestParams_String(t *testing.T) {
	var p Params
	assert.Equal(t, "", p.String(ParamFolder))

	p = Params{ParamFolder: "inbox", "n": 3}
	assert.Equal(t, "inbox", p.String(ParamFolder))
	assert.Equal(t, "", p.String("n"))
}

func TestParseWriteMode(t *testing.T) {
	m, err := ParseWriteMode("")
	assert.NoError(t, err)
	assert.Equal(t, WriteUpsert, m)

	m, err = ParseWriteMode("create_only")
	assert.NoError(t, err)
	assert.Equal(t, WriteCreateOnly, m)

	_, err = ParseWriteMode("merge")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
