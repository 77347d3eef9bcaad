package dataset

import (
	"fmt"
	"iter"
	"time"
)

// Column is a dataset column with its native type tag
type Column struct {
	Name string
	Type string
}

// Row maps column names to values
type Row map[string]interface{}

// Dataset is the tabular input of the schema builder and the synchronizer
type Dataset interface {
	// Columns returns the ordered column names with their native type tags.
	Columns() []Column
	// Rows yields each row together with its zero-based ordinal.
	Rows() iter.Seq2[int, Row]
}

// Frame is an in-memory Dataset
type Frame struct {
	columns []Column
	rows    []Row
}

// NewFrame creates a Frame from explicit columns and rows
func NewFrame(columns []Column, rows []Row) *Frame {
	return &Frame{columns: columns, rows: rows}
}

// FromRecords creates a Frame from positional records, inferring each column's
// type tag from its non-nil values.
func FromRecords(names []string, records [][]interface{}) (*Frame, error) {
	rows := make([]Row, 0, len(records))
	for i, record := range records {
		if len(record) != len(names) {
			return nil, fmt.Errorf("record %d has %d values, expected %d", i, len(record), len(names))
		}
		row := make(Row, len(names))
		for j, name := range names {
			row[name] = record[j]
		}
		rows = append(rows, row)
	}

	columns := make([]Column, 0, len(names))
	for _, name := range names {
		columns = append(columns, Column{Name: name, Type: inferTag(name, rows)})
	}
	return NewFrame(columns, rows), nil
}

// Columns implements Dataset
func (f *Frame) Columns() []Column {
	return f.columns
}

// Rows implements Dataset
func (f *Frame) Rows() iter.Seq2[int, Row] {
	return func(yield func(int, Row) bool) {
		for i, row := range f.rows {
			if !yield(i, row) {
				return
			}
		}
	}
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return len(f.rows)
}

// Row returns the i-th row
func (f *Frame) Row(i int) Row {
	return f.rows[i]
}

// Append adds rows to the frame
func (f *Frame) Append(rows ...Row) {
	f.rows = append(f.rows, rows...)
}

// ColumnNames returns the column names in order
func ColumnNames(d Dataset) []string {
	cols := d.Columns()
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.Name)
	}
	return names
}

// TagOf returns the native type tag for a Go value
func TagOf(v interface{}) string {
	switch v.(type) {
	case int:
		return "int"
	case int8:
		return "int8"
	case int16:
		return "int16"
	case int32:
		return "int32"
	case int64:
		return "int64"
	case uint8:
		return "uint8"
	case uint16:
		return "uint16"
	case uint32:
		return "uint32"
	case uint64:
		return "uint64"
	case float32:
		return "float32"
	case float64:
		return "float64"
	case bool:
		return "bool"
	case string:
		return "object"
	case time.Time, *time.Time:
		return "datetime64[ns]"
	case []byte:
		return "bytes"
	}
	return fmt.Sprintf("%T", v)
}

// inferTag picks one tag for a column. Mixed integer and float values widen to
// float64, any other mix falls back to object.
func inferTag(name string, rows []Row) string {
	tag := ""
	for _, row := range rows {
		v := CoerceNull(row[name])
		if v == nil {
			continue
		}
		t := TagOf(v)
		switch {
		case tag == "":
			tag = t
		case tag == t:
		case isNumeric(tag) && isNumeric(t):
			tag = "float64"
		default:
			return "object"
		}
	}
	if tag == "" {
		return "object"
	}
	return tag
}

func isNumeric(tag string) bool {
	switch tag {
	case "int", "int8", "int16", "int32", "int64", "uint8", "uint16", "uint32", "uint64", "float32", "float64":
		return true
	}
	return false
}
