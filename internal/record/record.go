// Package record defines the row model fetched from the open-data API and the
// formatter that prepares a row for the search index.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Field is one named value of a Record.
//
// Values decoded from the API are strings (SODA serializes scalars as text),
// nil for JSON null, or json.RawMessage for nested objects such as locations.
// Format replaces amount and date values with float64 and Date.
type Field struct {
	Name  string
	Value any
}

// Record is one dataset row. Field order is the order the API returned the
// keys in and is preserved through decoding, formatting and output.
type Record struct {
	fields []Field
}

// Page is the ordered batch of records returned by one API call.
type Page []Record

// New creates a record from fields in the given order.
// A repeated name overwrites the earlier value in place.
func New(fields ...Field) Record {
	var r Record
	for _, f := range fields {
		r = r.With(f.Name, f.Value)
	}
	return r
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.fields)
}

// Fields returns a copy of the fields in order.
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Get returns the value stored under name.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// With returns a copy of r with name set to value. An existing field keeps
// its position; a new one is appended.
func (r Record) With(name string, value any) Record {
	out := r.Clone()
	for i := range out.fields {
		if out.fields[i].Name == name {
			out.fields[i].Value = value
			return out
		}
	}
	out.fields = append(out.fields, Field{Name: name, Value: value})
	return out
}

// Clone returns an independent copy of r.
func (r Record) Clone() Record {
	if r.fields == nil {
		return Record{}
	}
	fields := make([]Field, len(r.fields))
	copy(fields, r.fields)
	return Record{fields: fields}
}

// Values returns the field values in order.
func (r Record) Values() []any {
	out := make([]any, len(r.fields))
	for i, f := range r.fields {
		out[i] = f.Value
	}
	return out
}

// Text renders one field value as plain text: nil is empty, numbers use the
// shortest exact decimal form, dates are YYYY-MM-DD.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case Date:
		return x.String()
	case json.RawMessage:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// Map returns the record as an unordered map.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.fields))
	for _, f := range r.fields {
		out[f.Name] = f.Value
	}
	return out
}

// MarshalJSON encodes the record as a JSON object, keys in field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record: expected JSON object, got %v", tok)
	}

	var fields []Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("record: expected object key, got %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("record: field %q: %w", name, err)
		}
		value, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("record: field %q: %w", name, err)
		}
		fields = append(fields, Field{Name: name, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = New(fields...)
	return nil
}

// decodeValue maps a raw JSON value onto the Field value domain.
func decodeValue(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return s, nil
	case '{', '[':
		out := make(json.RawMessage, len(trimmed))
		copy(out, trimmed)
		return out, nil
	case 'n':
		return nil, nil
	default:
		// Numbers and booleans keep their literal text.
		return string(trimmed), nil
	}
}
