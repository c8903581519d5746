package format

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
)

// Ensure XML implements the interface.
var _ driven.Format = (*XML)(nil)

// XML encodes batches as
//
//	<records>
//	  <record model="users">
//	    <pk type="int">1</pk>
//	    <field name="firstName" type="string">Ada</field>
//	  </record>
//	</records>
//
// Each value carries its type so it decodes back to the same Go kind.
// Nested values are stored as JSON text with type="json".
type XML struct{}

type xmlBatch struct {
	XMLName xml.Name    `xml:"records"`
	Records []xmlRecord `xml:"record"`
}

type xmlRecord struct {
	Model  string     `xml:"model,attr"`
	PK     *xmlValue  `xml:"pk,omitempty"`
	Fields []xmlField `xml:"field"`
}

type xmlValue struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type xmlField struct {
	Name  string `xml:"name,attr"`
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// NewXML creates an XML format.
func NewXML() *XML {
	return &XML{}
}

// Extension returns "xml".
func (f *XML) Extension() string {
	return "xml"
}

// Encode serialises a batch. Fields are written in name order.
func (f *XML) Encode(records []domain.SyncRecord) ([]byte, error) {
	batch := xmlBatch{Records: make([]xmlRecord, 0, len(records))}
	for _, r := range records {
		rec := xmlRecord{Model: r.ModelName}
		if r.PrimaryKey != nil {
			typ, text, err := encodeValue(r.PrimaryKey)
			if err != nil {
				return nil, fmt.Errorf("encode %s pk: %w", r.ModelName, err)
			}
			rec.PK = &xmlValue{Type: typ, Value: text}
		}
		names := make([]string, 0, len(r.Fields))
		for name := range r.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			typ, text, err := encodeValue(r.Fields[name])
			if err != nil {
				return nil, fmt.Errorf("encode %s.%s: %w", r.ModelName, name, err)
			}
			rec.Fields = append(rec.Fields, xmlField{Name: name, Type: typ, Value: text})
		}
		batch.Records = append(batch.Records, rec)
	}

	out, err := xml.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encode xml: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// Decode parses a batch.
func (f *XML) Decode(payload []byte) ([]domain.SyncRecord, error) {
	var batch xmlBatch
	if err := xml.Unmarshal(payload, &batch); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	records := make([]domain.SyncRecord, 0, len(batch.Records))
	for _, rec := range batch.Records {
		r := domain.SyncRecord{ModelName: rec.Model, Fields: make(map[string]any, len(rec.Fields))}
		if rec.PK != nil {
			pk, err := decodeValue(rec.PK.Type, rec.PK.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: %s pk: %w", domain.ErrInvalidInput, rec.Model, err)
			}
			r.PrimaryKey = pk
		}
		for _, field := range rec.Fields {
			v, err := decodeValue(field.Type, field.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %w", domain.ErrInvalidInput, rec.Model, field.Name, err)
			}
			r.Fields[field.Name] = v
		}
		records = append(records, r)
	}
	return records, nil
}

func encodeValue(v any) (typ, text string, err error) {
	switch val := v.(type) {
	case nil:
		return "null", "", nil
	case string:
		return "string", val, nil
	case bool:
		return "bool", strconv.FormatBool(val), nil
	case int:
		return "int", strconv.FormatInt(int64(val), 10), nil
	case int32:
		return "int", strconv.FormatInt(int64(val), 10), nil
	case int64:
		return "int", strconv.FormatInt(val, 10), nil
	case float32:
		return "float", strconv.FormatFloat(float64(val), 'g', -1, 32), nil
	case float64:
		return "float", strconv.FormatFloat(val, 'g', -1, 64), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", "", err
	}
	return "json", string(raw), nil
}

func decodeValue(typ, text string) (any, error) {
	switch typ {
	case "null":
		return nil, nil
	case "", "string":
		return text, nil
	case "bool":
		return strconv.ParseBool(text)
	case "int":
		return strconv.ParseInt(text, 10, 64)
	case "float":
		return strconv.ParseFloat(text, 64)
	case "json":
		var v any
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, fmt.Errorf("unknown value type %q", typ)
}
