package models

import (
	"fmt"
	"strings"
)

// SemanticType is the backend-neutral kind of a column
type SemanticType string

const (
	TypeInteger  SemanticType = "integer"
	TypeFloat    SemanticType = "float"
	TypeText     SemanticType = "text"
	TypeBoolean  SemanticType = "boolean"
	TypeDateTime SemanticType = "datetime"
)

// SQLType describes a column type independently of any backend
type SQLType struct {
	Kind SemanticType
	// Length is the maximum width of text columns, zero for every other kind.
	Length int
}

func (t SQLType) String() string {
	if t.Kind == TypeText && t.Length > 0 {
		return fmt.Sprintf("%s(%d)", t.Kind, t.Length)
	}
	return string(t.Kind)
}

// ColumnDefinition represents a table column derived from dataset introspection
type ColumnDefinition struct {
	Name       string
	Type       SQLType
	Nullable   bool
	PrimaryKey bool
}

// TableRef identifies a table, optionally qualified with a schema
type TableRef struct {
	Schema string
	Name   string
}

// String returns the qualified table name used in reports and errors
func (r TableRef) String() string {
	if r.Schema != "" {
		return r.Schema + "." + r.Name
	}
	return r.Name
}

// ParseTableRef splits "schema.table" into a TableRef
func ParseTableRef(s string) TableRef {
	if i := strings.LastIndex(s, "."); i > 0 {
		return TableRef{Schema: s[:i], Name: s[i+1:]}
	}
	return TableRef{Name: s}
}

// IndexDefinition represents an index over existing table columns
type IndexDefinition struct {
	Name    string
	Columns []string
	Unique  bool
}

// ForeignKeyDefinition represents a foreign key relationship
type ForeignKeyDefinition struct {
	Name              string
	Columns           []string
	ReferencedTable   TableRef
	ReferencedColumns []string
}

// ConstraintKind is the kind of a table constraint
type ConstraintKind string

const (
	ConstraintUnique ConstraintKind = "unique"
	ConstraintCheck  ConstraintKind = "check"
)

// ConstraintDefinition represents a uniqueness or check constraint.
// Unique constraints use Columns, check constraints use Condition.
type ConstraintDefinition struct {
	Kind      ConstraintKind
	Name      string
	Columns   []string
	Condition string
}

// TableSchema represents a table about to be created
type TableSchema struct {
	Table       TableRef
	Columns     []ColumnDefinition
	Indexes     []IndexDefinition
	ForeignKeys []ForeignKeyDefinition
	Constraints []ConstraintDefinition
}

// Column looks up a column by name
func (s *TableSchema) Column(name string) (ColumnDefinition, bool) {
	for _, col := range s.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnDefinition{}, false
}

// ColumnNames returns the column names in declaration order
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for _, col := range s.Columns {
		names = append(names, col.Name)
	}
	return names
}

// PrimaryKey returns the primary key columns in declaration order
func (s *TableSchema) PrimaryKey() []string {
	var pk []string
	for _, col := range s.Columns {
		if col.PrimaryKey {
			pk = append(pk, col.Name)
		}
	}
	return pk
}

// IndexKind selects the index created over the key columns of a new table
type IndexKind string

const (
	IndexNone     IndexKind = ""
	IndexStandard IndexKind = "standard"
	IndexUnique   IndexKind = "unique"
	IndexPrimary  IndexKind = "primary"
)

// Valid reports whether k is one of the known index kinds
func (k IndexKind) Valid() bool {
	switch k {
	case IndexNone, IndexStandard, IndexUnique, IndexPrimary:
		return true
	}
	return false
}

// ParseIndexKind parses an index kind name, accepting "" and "none" as IndexNone
func ParseIndexKind(s string) (IndexKind, error) {
	k := IndexKind(strings.ToLower(strings.TrimSpace(s)))
	if k == "none" {
		return IndexNone, nil
	}
	if !k.Valid() {
		return IndexNone, &ConfigurationError{
			Parameter: "index",
			Message:   fmt.Sprintf("unknown index kind %q, must be any of standard|unique|primary", s),
		}
	}
	return k, nil
}

// OperationKind selects the synchronization semantics
type OperationKind string

const (
	OperationAppend  OperationKind = "append"
	OperationUpsert  OperationKind = "upsert"
	OperationReplace OperationKind = "replace"
)

// Valid reports whether k is one of the known operations
func (k OperationKind) Valid() bool {
	switch k {
	case OperationAppend, OperationUpsert, OperationReplace:
		return true
	}
	return false
}

// ParseOperationKind parses an operation name
func ParseOperationKind(s string) (OperationKind, error) {
	k := OperationKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", &ConfigurationError{
			Parameter: "operation",
			Message:   fmt.Sprintf("invalid operation %q, valid values: append|upsert|replace", s),
		}
	}
	return k, nil
}

// RowFailure records a row that could not be synchronized
type RowFailure struct {
	// Row is the zero-based ordinal of the row in the input sequence.
	Row   int
	Step  string
	Keys  map[string]interface{}
	Error string
}

// OperationResult represents the outcome of one synchronization call
type OperationResult struct {
	ID         string
	Operation  OperationKind
	Table      string
	Insertions int
	Updates    int
	Skips      int
	Failures   []RowFailure
}

// Processed returns the number of rows that reached a final state
func (r *OperationResult) Processed() int {
	return r.Insertions + r.Updates + r.Skips + len(r.Failures)
}
