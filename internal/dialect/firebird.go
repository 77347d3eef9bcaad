package dialect

import (
	"fmt"

	"github.com/vitebski/tablesync/pkg/models"
)

// FirebirdProfile is the Firebird 3 backend. It has the strictest identifier
// limit of all profiles, no schemas, and requires named foreign keys.
type FirebirdProfile struct {
	base
}

// NewFirebird creates the Firebird profile
func NewFirebird() *FirebirdProfile {
	return &FirebirdProfile{base: base{name: Firebird, quote: `"`, maxIdent: 31}}
}

func (p *FirebirdProfile) ValidateTableRef(ref models.TableRef) error {
	if ref.Schema != "" {
		return &models.SchemaError{
			Table:   ref.String(),
			Message: fmt.Sprintf("%s does not support schema-qualified tables", p.name),
		}
	}
	return p.ValidateIdentifier("table", ref.Name)
}

func (p *FirebirdProfile) ColumnType(t models.SQLType) string {
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
	return textType(t, "VARCHAR", "BLOB SUB_TYPE TEXT")
}

func (p *FirebirdProfile) IndexStatement(ref models.TableRef, idx models.IndexDefinition) (string, error) {
	return p.indexStatement(p.Quote(idx.Name), p.Quote(ref.Name), idx)
}

func (p *FirebirdProfile) ForeignKeyClause(fk models.ForeignKeyDefinition) (string, error) {
	if fk.Name == "" {
		return "", &models.SchemaError{
			Object:  fk.ReferencedTable.String(),
			Message: "firebird foreign key constraint requires a name",
		}
	}
	return p.foreignKeyClause(fk, p.Quote(fk.ReferencedTable.Name))
}

// System tables store names in fixed-width CHAR columns, hence TRIM.
func (p *FirebirdProfile) TableExistsQuery(ref models.TableRef) (string, []interface{}) {
	return "SELECT COUNT(*) FROM RDB$RELATIONS WHERE TRIM(RDB$RELATION_NAME) = ?", []interface{}{ref.Name}
}

func (p *FirebirdProfile) IndexExistsQuery(_ models.TableRef, name string) (string, []interface{}) {
	return "SELECT COUNT(*) FROM RDB$INDICES WHERE TRIM(RDB$INDEX_NAME) = ?", []interface{}{name}
}
