package dialect

import (
	"github.com/vitebski/tablesync/pkg/models"
)

// SQLiteProfile is the embedded-file backend. Foreign keys are only enforced
// when the connection was opened with enforcement turned on.
type SQLiteProfile struct {
	base
	foreignKeys bool
}

// NewSQLite creates the SQLite profile
func NewSQLite(opts Options) *SQLiteProfile {
	return &SQLiteProfile{
		base:        base{name: SQLite, quote: `"`},
		foreignKeys: opts.ForeignKeys,
	}
}

func (p *SQLiteProfile) ColumnType(t models.SQLType) string {
	switch t.Kind {
	case models.TypeInteger:
		return "INTEGER"
	case models.TypeFloat:
		return "REAL"
	case models.TypeBoolean:
		return "BOOLEAN"
	case models.TypeDateTime:
		return "TIMESTAMP"
	}
	return textType(t, "VARCHAR", "TEXT")
}

// IndexStatement qualifies the index name, not the table: SQLite creates the
// index in the schema of its name and requires the table to live there.
func (p *SQLiteProfile) IndexStatement(ref models.TableRef, idx models.IndexDefinition) (string, error) {
	name := p.Quote(idx.Name)
	if ref.Schema != "" {
		name = p.Quote(ref.Schema) + "." + name
	}
	return p.indexStatement(name, p.Quote(ref.Name), idx)
}

func (p *SQLiteProfile) ForeignKeysEnforced() bool { return p.foreignKeys }

// ConcurrentWriters is false: SQLite locks the whole database file for writing.
func (p *SQLiteProfile) ConcurrentWriters() bool { return false }

func (p *SQLiteProfile) EnableForeignKeysStatement() string {
	if !p.foreignKeys {
		return ""
	}
	return "PRAGMA foreign_keys = ON"
}

func (p *SQLiteProfile) master(ref models.TableRef) string {
	if ref.Schema != "" {
		return p.Quote(ref.Schema) + ".sqlite_master"
	}
	return "sqlite_master"
}

func (p *SQLiteProfile) TableExistsQuery(ref models.TableRef) (string, []interface{}) {
	query := "SELECT COUNT(*) FROM " + p.master(ref) + " WHERE type = 'table' AND name = ?"
	return query, []interface{}{ref.Name}
}

func (p *SQLiteProfile) IndexExistsQuery(ref models.TableRef, name string) (string, []interface{}) {
	query := "SELECT COUNT(*) FROM " + p.master(ref) + " WHERE type = 'index' AND name = ?"
	return query, []interface{}{name}
}
