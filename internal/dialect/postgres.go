package dialect

import (
	"strconv"

	"github.com/vitebski/tablesync/pkg/models"
)

// PostgresProfile is the PostgreSQL backend. PostgreSQL silently truncates
// long identifiers, so the 63 byte limit is enforced before rendering.
type PostgresProfile struct {
	base
}

// NewPostgres creates the PostgreSQL profile
func NewPostgres() *PostgresProfile {
	return &PostgresProfile{base: base{name: Postgres, quote: `"`, maxIdent: 63}}
}

func (p *PostgresProfile) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (p *PostgresProfile) ColumnType(t models.SQLType) string {
	switch t.Kind {
	case models.TypeInteger:
		return "BIGINT"
	case models.TypeFloat:
		return "DOUBLE PRECISION"
	case models.TypeBoolean:
		return "BOOLEAN"
	case models.TypeDateTime:
		return "TIMESTAMP"
	}
	return textType(t, "VARCHAR", "TEXT")
}

// IndexStatement leaves the index name unqualified; the index is created in
// the schema of its table.
func (p *PostgresProfile) IndexStatement(ref models.TableRef, idx models.IndexDefinition) (string, error) {
	return p.indexStatement(p.Quote(idx.Name), p.QualifiedName(ref), idx)
}

func (p *PostgresProfile) TableExistsQuery(ref models.TableRef) (string, []interface{}) {
	query := "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema()) AND table_name = $2"
	return query, []interface{}{ref.Schema, ref.Name}
}

// IndexExistsQuery is schema scoped: index names are unique per schema.
func (p *PostgresProfile) IndexExistsQuery(ref models.TableRef, name string) (string, []interface{}) {
	query := "SELECT COUNT(*) FROM pg_indexes WHERE schemaname = COALESCE(NULLIF($1, ''), current_schema()) AND indexname = $2"
	return query, []interface{}{ref.Schema, name}
}
