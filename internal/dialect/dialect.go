package dialect

import (
	"fmt"
	"strings"

	"github.com/vitebski/tablesync/pkg/models"
)

// Name identifies a supported backend
type Name string

const (
	SQLite   Name = "sqlite"
	Postgres Name = "postgres"
	Oracle   Name = "oracle"
	Firebird Name = "firebird"
	MySQL    Name = "mysql"
)

// Options is the connection-time configuration a profile is built with
type Options struct {
	// ForeignKeys turns on foreign key enforcement for backends where it is
	// opt-in (SQLite). Other backends always enforce foreign keys.
	ForeignKeys bool
}

// Profile describes the SQL syntax and capabilities of one backend.
// Profiles are immutable and built once per connection.
type Profile interface {
	Name() Name

	// Quote quotes an identifier, doubling embedded quote characters.
	Quote(ident string) string
	// QualifiedName renders a quoted, schema-qualified table name.
	QualifiedName(ref models.TableRef) string
	// MaxIdentifierLength returns the identifier limit in bytes. Zero means unlimited.
	MaxIdentifierLength() int
	// ValidateIdentifier rejects empty or over-limit identifiers with a SchemaError.
	ValidateIdentifier(kind, ident string) error
	// ValidateTableRef validates both parts of a table reference.
	ValidateTableRef(ref models.TableRef) error
	// Placeholder returns the bind parameter marker for the n-th (1-based) argument.
	Placeholder(n int) string

	ColumnType(t models.SQLType) string
	PrimaryKeyClause(columns []string) string
	IndexStatement(ref models.TableRef, idx models.IndexDefinition) (string, error)
	ForeignKeyClause(fk models.ForeignKeyDefinition) (string, error)
	ConstraintClause(c models.ConstraintDefinition) (string, error)
	DropTableStatement(ref models.TableRef) string

	// ForeignKeysEnforced reports whether foreign keys are checked on this connection.
	ForeignKeysEnforced() bool
	// EnableForeignKeysStatement returns the statement turning on foreign key
	// enforcement, or "" when the backend needs none.
	EnableForeignKeysStatement() string

	// TableExistsQuery and IndexExistsQuery return a catalog query selecting a
	// single count, with its arguments.
	TableExistsQuery(ref models.TableRef) (string, []interface{})
	IndexExistsQuery(ref models.TableRef, name string) (string, []interface{})
	// SelectColumnsQuery returns a query yielding the table's columns and no rows.
	SelectColumnsQuery(ref models.TableRef) string

	SavepointStatement(name string) string
	RollbackToSavepointStatement(name string) string
	// ReleaseSavepointStatement returns "" when the backend has no RELEASE.
	ReleaseSavepointStatement(name string) string
	// TransactionalDDL reports whether DDL can be rolled back.
	TransactionalDDL() bool
	// ConcurrentWriters reports whether several connections can hold write
	// transactions on the same database at once.
	ConcurrentWriters() bool

	// BindValue adapts a Go value before it is bound to a statement.
	BindValue(v interface{}) interface{}
}

// New builds the profile for a backend
func New(name Name, opts Options) (Profile, error) {
	switch name {
	case SQLite:
		return NewSQLite(opts), nil
	case Postgres:
		return NewPostgres(), nil
	case Oracle:
		return NewOracle(), nil
	case Firebird:
		return NewFirebird(), nil
	case MySQL:
		return NewMySQL(), nil
	}
	return nil, &models.ConfigurationError{
		Parameter: "backend",
		Message:   fmt.Sprintf("unsupported database dialect %q", name),
	}
}

// identityMarkers maps substrings of backend identities (driver names, URL
// schemes, driver package paths) to profiles. Order matters.
var identityMarkers = []struct {
	marker string
	name   Name
}{
	{"sqlite", SQLite},
	{"postgres", Postgres},
	{"pgx", Postgres},
	{"lib/pq", Postgres},
	{"oracle", Oracle},
	{"go-ora", Oracle},
	{"godror", Oracle},
	{"firebird", Firebird},
	{"mysql", MySQL},
}

// Resolve selects a profile from a backend identity such as "postgres",
// "sqlite://data.db" or "github.com/jackc/pgx/v5/stdlib".
func Resolve(identity string, opts Options) (Profile, error) {
	id := strings.ToLower(strings.TrimSpace(identity))
	if i := strings.Index(id, "://"); i > 0 {
		id = id[:i]
	}
	if id == "pq" {
		return New(Postgres, opts)
	}
	for _, m := range identityMarkers {
		if strings.Contains(id, m.marker) {
			return New(m.name, opts)
		}
	}
	return nil, &models.ConfigurationError{
		Parameter: "backend",
		Message:   fmt.Sprintf("unsupported database dialect %q", identity),
	}
}

// base holds the behaviour shared by most backends
type base struct {
	name     Name
	quote    string
	maxIdent int
}

func (b base) Name() Name { return b.name }

func (b base) Quote(ident string) string {
	return b.quote + strings.ReplaceAll(ident, b.quote, b.quote+b.quote) + b.quote
}

func (b base) QualifiedName(ref models.TableRef) string {
	if ref.Schema != "" {
		return b.Quote(ref.Schema) + "." + b.Quote(ref.Name)
	}
	return b.Quote(ref.Name)
}

func (b base) MaxIdentifierLength() int { return b.maxIdent }

func (b base) ValidateIdentifier(kind, ident string) error {
	if strings.TrimSpace(ident) == "" {
		return &models.SchemaError{Message: fmt.Sprintf("empty %s name", kind)}
	}
	if b.maxIdent > 0 && len(ident) > b.maxIdent {
		return &models.SchemaError{
			Object: ident,
			Message: fmt.Sprintf("%s name is %d characters long, %s allows at most %d",
				kind, len(ident), b.name, b.maxIdent),
		}
	}
	return nil
}

func (b base) ValidateTableRef(ref models.TableRef) error {
	if ref.Schema != "" {
		if err := b.ValidateIdentifier("schema", ref.Schema); err != nil {
			return err
		}
	}
	return b.ValidateIdentifier("table", ref.Name)
}

func (b base) Placeholder(int) string { return "?" }

func (b base) quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = b.Quote(n)
	}
	return strings.Join(quoted, ", ")
}

func (b base) PrimaryKeyClause(columns []string) string {
	return "PRIMARY KEY (" + b.quoteList(columns) + ")"
}

// indexStatement renders CREATE [UNIQUE] INDEX with the already qualified names
func (b base) indexStatement(indexName, table string, idx models.IndexDefinition) (string, error) {
	if len(idx.Columns) == 0 {
		return "", &models.SchemaError{Object: idx.Name, Message: "index has no columns"}
	}
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique, indexName, table, b.quoteList(idx.Columns)), nil
}

func (b base) constraintName(name string) string {
	if name == "" {
		return ""
	}
	return "CONSTRAINT " + b.Quote(name) + " "
}

func (b base) foreignKeyClause(fk models.ForeignKeyDefinition, refTable string) (string, error) {
	if len(fk.Columns) == 0 {
		return "", &models.SchemaError{Object: fk.Name, Message: "foreign key has no columns"}
	}
	if len(fk.Columns) != len(fk.ReferencedColumns) {
		return "", &models.SchemaError{
			Object: fk.Name,
			Message: fmt.Sprintf("foreign key has %d local columns but %d referenced columns",
				len(fk.Columns), len(fk.ReferencedColumns)),
		}
	}
	return fmt.Sprintf("%sFOREIGN KEY (%s) REFERENCES %s (%s)",
		b.constraintName(fk.Name), b.quoteList(fk.Columns), refTable, b.quoteList(fk.ReferencedColumns)), nil
}

func (b base) ForeignKeyClause(fk models.ForeignKeyDefinition) (string, error) {
	return b.foreignKeyClause(fk, b.QualifiedName(fk.ReferencedTable))
}

func (b base) ConstraintClause(c models.ConstraintDefinition) (string, error) {
	switch c.Kind {
	case models.ConstraintUnique:
		if len(c.Columns) == 0 {
			return "", &models.SchemaError{Object: c.Name, Message: "unique constraint has no columns"}
		}
		return b.constraintName(c.Name) + "UNIQUE (" + b.quoteList(c.Columns) + ")", nil
	case models.ConstraintCheck:
		if strings.TrimSpace(c.Condition) == "" {
			return "", &models.SchemaError{Object: c.Name, Message: "check constraint has no condition"}
		}
		return b.constraintName(c.Name) + "CHECK (" + c.Condition + ")", nil
	}
	return "", &models.SchemaError{Object: c.Name, Message: fmt.Sprintf("unsupported constraint type %q", c.Kind)}
}

func (b base) DropTableStatement(ref models.TableRef) string {
	return "DROP TABLE " + b.QualifiedName(ref)
}

func (b base) ForeignKeysEnforced() bool { return true }

func (b base) EnableForeignKeysStatement() string { return "" }

func (b base) SelectColumnsQuery(ref models.TableRef) string {
	return "SELECT * FROM " + b.QualifiedName(ref) + " WHERE 1 = 0"
}

func (b base) SavepointStatement(name string) string {
	return "SAVEPOINT " + name
}

func (b base) RollbackToSavepointStatement(name string) string {
	return "ROLLBACK TO SAVEPOINT " + name
}

func (b base) ReleaseSavepointStatement(name string) string {
	return "RELEASE SAVEPOINT " + name
}

func (b base) TransactionalDDL() bool { return true }

func (b base) ConcurrentWriters() bool { return true }

func (b base) BindValue(v interface{}) interface{} { return v }

// textType renders a bounded text type, or the unbounded fallback when the width is unset
func textType(t models.SQLType, bounded, unbounded string) string {
	if t.Length > 0 {
		return fmt.Sprintf("%s(%d)", bounded, t.Length)
	}
	return unbounded
}

var (
	_ Profile = (*SQLiteProfile)(nil)
	_ Profile = (*PostgresProfile)(nil)
	_ Profile = (*OracleProfile)(nil)
	_ Profile = (*FirebirdProfile)(nil)
	_ Profile = (*MySQLProfile)(nil)
)
