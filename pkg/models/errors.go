package models

import "fmt"

// ConfigurationError reports an invalid or missing parameter. It is raised before any I/O.
type ConfigurationError struct {
	Parameter string
	Message   string
}

func (e *ConfigurationError) Error() string {
	if e.Parameter != "" {
		return fmt.Sprintf("configuration: %s: %s", e.Parameter, e.Message)
	}
	return "configuration: " + e.Message
}

// SchemaError reports an invalid table definition: unknown columns, identifier
// length violations, mismatched foreign keys or an already existing index.
type SchemaError struct {
	Table string
	// Object names the offending column, index or constraint, if any.
	Object  string
	Message string
}

func (e *SchemaError) Error() string {
	switch {
	case e.Table != "" && e.Object != "":
		return fmt.Sprintf("schema: %s.%s: %s", e.Table, e.Object, e.Message)
	case e.Table != "":
		return fmt.Sprintf("schema: %s: %s", e.Table, e.Message)
	case e.Object != "":
		return fmt.Sprintf("schema: %s: %s", e.Object, e.Message)
	}
	return "schema: " + e.Message
}

// TypeMappingError reports a native column type with no SQL equivalent
type TypeMappingError struct {
	Column string
	Tag    string
}

func (e *TypeMappingError) Error() string {
	return fmt.Sprintf("type mapping: column %q has unsupported type %q", e.Column, e.Tag)
}

// RowOperationError reports a single row that failed to read or write.
// It never aborts a synchronization; it becomes a RowFailure.
type RowOperationError struct {
	Row  int
	Step string
	Err  error
}

func (e *RowOperationError) Error() string {
	return fmt.Sprintf("row %d: %s: %v", e.Row, e.Step, e.Err)
}

func (e *RowOperationError) Unwrap() error { return e.Err }

// BackendFailure reports a fatal backend problem such as a lost connection
// or a failed commit.
type BackendFailure struct {
	Table string
	Step  string
	Err   error
}

func (e *BackendFailure) Error() string {
	return fmt.Sprintf("backend failure on %s during %s: %v", e.Table, e.Step, e.Err)
}

func (e *BackendFailure) Unwrap() error { return e.Err }
