package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vitebski/tablesync/internal/dialect"
	"github.com/vitebski/tablesync/pkg/models"
)

// RenderTable validates a table definition against the dialect and renders the
// CREATE TABLE statement followed by one CREATE INDEX per index. It performs no I/O.
func RenderTable(profile dialect.Profile, schema *models.TableSchema) ([]string, error) {
	table := schema.Table.String()
	if err := profile.ValidateTableRef(schema.Table); err != nil {
		return nil, withTable(err, table)
	}
	if len(schema.Columns) == 0 {
		return nil, &models.SchemaError{Table: table, Message: "table has no columns"}
	}

	var parts []string
	seen := make(map[string]bool, len(schema.Columns))
	for _, col := range schema.Columns {
		if err := profile.ValidateIdentifier("column", col.Name); err != nil {
			return nil, withTable(err, table)
		}
		if seen[col.Name] {
			return nil, &models.SchemaError{Table: table, Object: col.Name, Message: "duplicate column"}
		}
		seen[col.Name] = true

		def := profile.Quote(col.Name) + " " + profile.ColumnType(col.Type)
		if !col.Nullable || col.PrimaryKey {
			def += " NOT NULL"
		}
		parts = append(parts, def)
	}

	if pk := schema.PrimaryKey(); len(pk) > 0 {
		parts = append(parts, profile.PrimaryKeyClause(pk))
	}

	for _, fk := range schema.ForeignKeys {
		if err := validateForeignKey(profile, schema, fk); err != nil {
			return nil, withTable(err, table)
		}
		clause, err := profile.ForeignKeyClause(fk)
		if err != nil {
			return nil, withTable(err, table)
		}
		parts = append(parts, clause)
	}

	for _, c := range schema.Constraints {
		if c.Name != "" {
			if err := profile.ValidateIdentifier("constraint", c.Name); err != nil {
				return nil, withTable(err, table)
			}
		}
		if err := requireColumns(schema, c.Columns, "constraint"); err != nil {
			return nil, err
		}
		clause, err := profile.ConstraintClause(c)
		if err != nil {
			return nil, withTable(err, table)
		}
		parts = append(parts, clause)
	}

	statements := []string{
		fmt.Sprintf("CREATE TABLE %s (%s)", profile.QualifiedName(schema.Table), strings.Join(parts, ", ")),
	}

	names := make(map[string]bool, len(schema.Indexes))
	for _, idx := range schema.Indexes {
		if err := profile.ValidateIdentifier("index", idx.Name); err != nil {
			return nil, withTable(err, table)
		}
		if names[idx.Name] {
			return nil, &models.SchemaError{Table: table, Object: idx.Name, Message: "duplicate index"}
		}
		names[idx.Name] = true
		if err := requireColumns(schema, idx.Columns, "index"); err != nil {
			return nil, err
		}
		stmt, err := profile.IndexStatement(schema.Table, idx)
		if err != nil {
			return nil, withTable(err, table)
		}
		statements = append(statements, stmt)
	}

	return statements, nil
}

func validateForeignKey(profile dialect.Profile, schema *models.TableSchema, fk models.ForeignKeyDefinition) error {
	if fk.Name != "" {
		if err := profile.ValidateIdentifier("foreign key", fk.Name); err != nil {
			return err
		}
	}
	if err := requireColumns(schema, fk.Columns, "foreign key"); err != nil {
		return err
	}
	if err := profile.ValidateTableRef(fk.ReferencedTable); err != nil {
		return err
	}
	for _, col := range fk.ReferencedColumns {
		if err := profile.ValidateIdentifier("column", col); err != nil {
			return err
		}
	}
	return nil
}

func requireColumns(schema *models.TableSchema, columns []string, kind string) error {
	for _, name := range columns {
		if _, ok := schema.Column(name); !ok {
			return &models.SchemaError{
				Table:   schema.Table.String(),
				Object:  name,
				Message: fmt.Sprintf("%s references unknown column", kind),
			}
		}
	}
	return nil
}

// withTable fills in the table of a SchemaError raised by the dialect
func withTable(err error, table string) error {
	var schemaErr *models.SchemaError
	if errors.As(err, &schemaErr) && schemaErr.Table == "" {
		schemaErr.Table = table
	}
	return err
}
