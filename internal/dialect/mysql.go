package dialect

import (
	"github.com/vitebski/tablesync/pkg/models"
)

// MySQLProfile is the MySQL backend. DDL commits implicitly and index names
// are scoped to their table.
type MySQLProfile struct {
	base
}

// NewMySQL creates the MySQL profile
func NewMySQL() *MySQLProfile {
	return &MySQLProfile{base: base{name: MySQL, quote: "`", maxIdent: 64}}
}

func (p *MySQLProfile) ColumnType(t models.SQLType) string {
	switch t.Kind {
	case models.TypeInteger:
		return "BIGINT"
	case models.TypeFloat:
		return "DOUBLE"
	case models.TypeBoolean:
		return "BOOLEAN"
	case models.TypeDateTime:
		return "DATETIME"
	}
	return textType(t, "VARCHAR", "LONGTEXT")
}

func (p *MySQLProfile) IndexStatement(ref models.TableRef, idx models.IndexDefinition) (string, error) {
	return p.indexStatement(p.Quote(idx.Name), p.QualifiedName(ref), idx)
}

func (p *MySQLProfile) TableExistsQuery(ref models.TableRef) (string, []interface{}) {
	query := "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE()) AND table_name = ?"
	return query, []interface{}{ref.Schema, ref.Name}
}

func (p *MySQLProfile) IndexExistsQuery(ref models.TableRef, name string) (string, []interface{}) {
	query := "SELECT COUNT(*) FROM information_schema.statistics WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE()) AND table_name = ? AND index_name = ?"
	return query, []interface{}{ref.Schema, ref.Name, name}
}

func (p *MySQLProfile) TransactionalDDL() bool { return false }
