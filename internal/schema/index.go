package schema

import (
	"context"
	"fmt"

	"github.com/vitebski/tablesync/pkg/models"
)

// IndexHandle describes an index created on an existing table
type IndexHandle struct {
	Name      string
	Table     models.TableRef
	Columns   []string
	Unique    bool
	Statement string
}

// CreateIndex creates an index over columns of an existing table. The name is
// checked against the dialect's identifier limit before anything is sent to
// the database, and an index that already exists is reported as a SchemaError.
func (b *Builder) CreateIndex(ctx context.Context, name string, ref models.TableRef, columns []string, unique bool) (*IndexHandle, error) {
	table := ref.String()
	if err := b.Dialect.ValidateIdentifier("index", name); err != nil {
		return nil, withTable(err, table)
	}
	if err := b.Dialect.ValidateTableRef(ref); err != nil {
		return nil, withTable(err, table)
	}
	if len(columns) == 0 {
		return nil, &models.SchemaError{Table: table, Object: name, Message: "index has no columns"}
	}

	existing, err := b.ReflectColumns(ctx, ref)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(existing))
	for _, col := range existing {
		known[col] = true
	}
	for _, col := range columns {
		if !known[col] {
			return nil, &models.SchemaError{Table: table, Object: col, Message: "index references unknown column"}
		}
	}

	exists, err := b.IndexExists(ctx, ref, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &models.SchemaError{Table: table, Object: name, Message: "index already exists"}
	}

	idx := models.IndexDefinition{Name: name, Columns: columns, Unique: unique}
	stmt, err := b.Dialect.IndexStatement(ref, idx)
	if err != nil {
		return nil, withTable(err, table)
	}

	b.Logger.Debugf("Executing DDL: %s", stmt)
	if _, err := b.DB.ExecContext(ctx, stmt); err != nil {
		b.Logger.Errorf("Error creating index %s on %s: %v", name, table, err)
		return nil, fmt.Errorf("failed to create index %s on %s: %w", name, table, err)
	}

	b.Logger.Infof("Created index %s on %s (%v)", name, table, columns)
	return &IndexHandle{
		Name:      name,
		Table:     ref,
		Columns:   append([]string(nil), columns...),
		Unique:    unique,
		Statement: stmt,
	}, nil
}

// IndexExists reports whether an index with this name exists on the table
func (b *Builder) IndexExists(ctx context.Context, ref models.TableRef, name string) (bool, error) {
	query, args := b.Dialect.IndexExistsQuery(ref, name)
	var count int64
	if err := b.DB.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check index %s on %s: %w", name, ref, err)
	}
	return count > 0, nil
}
