package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// RowNumberField is the key under which a row's number is
// injected into every serialized row.
const RowNumberField = "row_number"

// Field is one named CSV cell.
type Field struct {
	Name  string
	Value string
}

// Row is one CSV record plus its 1-based source line number (line 1 is the
// header, so the first data row is 2). Fields keep the column order of the
// file. Number is assigned at read time and never changes.
type Row struct {
	Number int
	Fields []Field
}

// NewRow pairs a record with the header names. Columns without a header name
// and cells beyond the header width are dropped; headers without a cell are
// simply absent from the row.
func NewRow(number int, headers, record []string) Row {
	n := min(len(headers), len(record))
	fields := make([]Field, 0, n)
	for i := 0; i < n; i++ {
		if headers[i] == "" {
			continue
		}
		fields = append(fields, Field{Name: headers[i], Value: record[i]})
	}
	return Row{Number: number, Fields: fields}
}

// Get returns the value of the named column and whether the column exists.
func (r Row) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Value returns the named column's value, or "" when the column is absent.
func (r Row) Value(name string) string {
	v, _ := r.Get(name)
	return v
}

// IsBlank reports whether the named column is absent or holds only
// whitespace.
func (r Row) IsBlank(name string) bool {
	v, ok := r.Get(name)
	return !ok || strings.TrimSpace(v) == ""
}

// object lists row_number then the columns in file order. Columns named
// row_number or any of reserved are left out.
func (r Row) object(reserved ...string) jsonObject {
	obj := make(jsonObject, 0, len(r.Fields)+1)
	obj = append(obj, jsonField{RowNumberField, r.Number})
	for _, f := range r.Fields {
		if f.Name == RowNumberField || slices.Contains(reserved, f.Name) {
			continue
		}
		obj = append(obj, jsonField{f.Name, f.Value})
	}
	return obj
}

// MarshalJSON renders {"row_number": n, <columns in file order>}.
func (r Row) MarshalJSON() ([]byte, error) {
	return r.object().MarshalJSON()
}

// UnmarshalJSON is the inverse of MarshalJSON. Non-string values are kept
// as their raw JSON text.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("row: expected JSON object, got %v", tok)
	}

	r.Number = 0
	r.Fields = nil
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("row: decoding %q: %w", key, err)
		}

		if key == RowNumberField {
			if err := json.Unmarshal(raw, &r.Number); err != nil {
				return fmt.Errorf("row: invalid row_number: %w", err)
			}
			continue
		}

		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			value = string(raw)
		}
		r.Fields = append(r.Fields, Field{Name: key, Value: value})
	}

	_, err = dec.Token()
	return err
}
