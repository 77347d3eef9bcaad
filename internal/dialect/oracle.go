package dialect

import (
	"strconv"

	"github.com/vitebski/tablesync/pkg/models"
)

// OracleProfile is the Oracle backend (12.2+ identifier limits). DDL commits
// implicitly, so failed table creation has to be compensated.
type OracleProfile struct {
	base
}

// NewOracle creates the Oracle profile
func NewOracle() *OracleProfile {
	return &OracleProfile{base: base{name: Oracle, quote: `"`, maxIdent: 128}}
}

func (p *OracleProfile) Placeholder(n int) string { return ":" + strconv.Itoa(n) }

func (p *OracleProfile) ColumnType(t models.SQLType) string {
	switch t.Kind {
	case models.TypeInteger:
		return "NUMBER(19)"
	case models.TypeFloat:
		return "BINARY_DOUBLE"
	case models.TypeBoolean:
		return "NUMBER(1)"
	case models.TypeDateTime:
		return "TIMESTAMP"
	}
	return textType(t, "VARCHAR2", "CLOB")
}

// IndexStatement qualifies both the index and the table with the owner.
func (p *OracleProfile) IndexStatement(ref models.TableRef, idx models.IndexDefinition) (string, error) {
	name := p.Quote(idx.Name)
	if ref.Schema != "" {
		name = p.Quote(ref.Schema) + "." + name
	}
	return p.indexStatement(name, p.QualifiedName(ref), idx)
}

// Empty strings are NULL in Oracle, so an unset schema falls back to the session schema.
func (p *OracleProfile) TableExistsQuery(ref models.TableRef) (string, []interface{}) {
	query := "SELECT COUNT(*) FROM all_tables WHERE owner = COALESCE(:1, SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA')) AND table_name = :2"
	return query, []interface{}{ref.Schema, ref.Name}
}

func (p *OracleProfile) IndexExistsQuery(ref models.TableRef, name string) (string, []interface{}) {
	query := "SELECT COUNT(*) FROM all_indexes WHERE owner = COALESCE(:1, SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA')) AND index_name = :2"
	return query, []interface{}{ref.Schema, name}
}

// Oracle has no RELEASE SAVEPOINT; savepoints end with the transaction.
func (p *OracleProfile) ReleaseSavepointStatement(string) string { return "" }

func (p *OracleProfile) TransactionalDDL() bool { return false }

// BindValue binds booleans as NUMBER(1).
func (p *OracleProfile) BindValue(v interface{}) interface{} {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}
