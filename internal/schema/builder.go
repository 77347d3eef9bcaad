package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vitebski/tablesync/internal/dataset"
	"github.com/vitebski/tablesync/internal/dialect"
	"github.com/vitebski/tablesync/internal/typemap"
	"github.com/vitebski/tablesync/pkg/models"
)

// Querier is the statement surface shared by *sql.DB and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DB is the connection handle the builder and the synchronizer work against
type DB interface {
	Querier
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// TableOptions holds the keys, index kind, foreign keys and constraints of a new table
type TableOptions struct {
	Keys        []string
	IndexKind   models.IndexKind
	ForeignKeys []models.ForeignKeyDefinition
	Constraints []models.ConstraintDefinition
}

// Builder turns dataset columns into table definitions and issues their DDL
type Builder struct {
	DB      DB
	Dialect dialect.Profile
	Mapper  typemap.Mapper
	Logger  *logrus.Logger
}

// NewBuilder creates a new schema builder
func NewBuilder(db DB, profile dialect.Profile, mapper typemap.Mapper, logger *logrus.Logger) *Builder {
	return &Builder{
		DB:      db,
		Dialect: profile,
		Mapper:  mapper,
		Logger:  logger,
	}
}

// BuildSchema derives the column definitions of a table from dataset columns.
// Primary key columns are marked primary and non-nullable.
func (b *Builder) BuildSchema(ref models.TableRef, columns []dataset.Column, primaryKeys []string) (*models.TableSchema, error) {
	b.Logger.Debugf("Building schema for %s with %d columns, primary keys: %v", ref, len(columns), primaryKeys)

	types, err := b.Mapper.MapColumns(columns)
	if err != nil {
		return nil, err
	}

	primary := make(map[string]bool, len(primaryKeys))
	for _, pk := range primaryKeys {
		primary[pk] = true
	}

	schema := &models.TableSchema{Table: ref}
	seen := make(map[string]bool, len(columns))
	for i, col := range columns {
		if seen[col.Name] {
			return nil, &models.SchemaError{Table: ref.String(), Object: col.Name, Message: "duplicate column"}
		}
		seen[col.Name] = true

		schema.Columns = append(schema.Columns, models.ColumnDefinition{
			Name:       col.Name,
			Type:       types[i],
			Nullable:   !primary[col.Name],
			PrimaryKey: primary[col.Name],
		})
	}

	for _, pk := range primaryKeys {
		if !seen[pk] {
			return nil, &models.SchemaError{Table: ref.String(), Object: pk, Message: "primary key column not found"}
		}
	}

	b.Logger.Debugf("Generated %d column definitions for %s", len(schema.Columns), ref)
	return schema, nil
}

// CreateTableFor builds the schema of a table from dataset columns and creates it
func (b *Builder) CreateTableFor(ctx context.Context, ref models.TableRef, columns []dataset.Column, opts TableOptions) (*models.TableSchema, error) {
	var primaryKeys []string
	if opts.IndexKind == models.IndexPrimary {
		primaryKeys = opts.Keys
	}
	schema, err := b.BuildSchema(ref, columns, primaryKeys)
	if err != nil {
		return nil, err
	}
	return b.CreateTable(ctx, schema, opts)
}

// CreateTable applies the options to the schema, renders every statement and
// issues them in one transaction. Nothing is executed when the definition is
// invalid. A failing statement rolls the creation back; backends without
// transactional DDL get a compensating DROP TABLE.
func (b *Builder) CreateTable(ctx context.Context, schema *models.TableSchema, opts TableOptions) (*models.TableSchema, error) {
	b.Logger.Infof("Creating table %s", schema.Table)

	final, statements, err := b.Preview(schema, opts)
	if err != nil {
		return nil, err
	}
	if len(final.ForeignKeys) > 0 && !b.Dialect.ForeignKeysEnforced() {
		b.Logger.Warningf("Foreign keys on %s will not be enforced by this %s connection", final.Table, b.Dialect.Name())
	}

	if err := b.execDDL(ctx, final.Table, statements); err != nil {
		return nil, err
	}

	b.Logger.Infof("Table %s created successfully", final.Table)
	return final, nil
}

// Preview applies the options to the schema and renders its statements
// without executing anything
func (b *Builder) Preview(schema *models.TableSchema, opts TableOptions) (*models.TableSchema, []string, error) {
	final, err := applyOptions(schema, opts)
	if err != nil {
		return nil, nil, err
	}
	statements, err := RenderTable(b.Dialect, final)
	if err != nil {
		return nil, nil, err
	}
	return final, statements, nil
}

func (b *Builder) execDDL(ctx context.Context, ref models.TableRef, statements []string) error {
	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		b.Logger.Errorf("Error starting schema transaction: %v", err)
		return fmt.Errorf("failed to begin schema transaction for %s: %w", ref, err)
	}

	created := false
	for _, stmt := range statements {
		b.Logger.Debugf("Executing DDL: %s", stmt)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			b.Logger.Errorf("Error executing DDL for %s: %v", ref, err)
			b.rollback(ctx, tx, ref, created)
			return fmt.Errorf("failed to create table %s: %w", ref, err)
		}
		created = true
	}

	if err := tx.Commit(); err != nil {
		b.Logger.Errorf("Error committing schema transaction: %v", err)
		b.compensate(ctx, ref, created)
		return fmt.Errorf("failed to commit table %s: %w", ref, err)
	}
	return nil
}

func (b *Builder) rollback(ctx context.Context, tx *sql.Tx, ref models.TableRef, created bool) {
	if err := tx.Rollback(); err != nil {
		b.Logger.Warningf("Error rolling back schema transaction for %s: %v", ref, err)
	}
	b.compensate(ctx, ref, created)
}

// compensate drops a table whose CREATE TABLE was committed implicitly
func (b *Builder) compensate(ctx context.Context, ref models.TableRef, created bool) {
	if !created || b.Dialect.TransactionalDDL() {
		return
	}
	b.Logger.Warningf("Dropping partially created table %s", ref)
	if _, err := b.DB.ExecContext(ctx, b.Dialect.DropTableStatement(ref)); err != nil {
		b.Logger.Errorf("Error dropping partially created table %s: %v", ref, err)
	}
}

// TableExists reports whether the table is present in the catalog
func (b *Builder) TableExists(ctx context.Context, ref models.TableRef) (bool, error) {
	query, args := b.Dialect.TableExistsQuery(ref)
	var count int64
	if err := b.DB.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", ref, err)
	}
	b.Logger.Debugf("Table %s exists: %t", ref, count > 0)
	return count > 0, nil
}

// ReflectColumns returns the column names of an existing table
func (b *Builder) ReflectColumns(ctx context.Context, ref models.TableRef) ([]string, error) {
	rows, err := b.DB.QueryContext(ctx, b.Dialect.SelectColumnsQuery(ref))
	if err != nil {
		return nil, fmt.Errorf("failed to reflect table %s: %w", ref, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", ref, err)
	}
	return columns, nil
}

// applyOptions returns a copy of the schema with keys, index, foreign keys and constraints applied
func applyOptions(schema *models.TableSchema, opts TableOptions) (*models.TableSchema, error) {
	if !opts.IndexKind.Valid() {
		return nil, &models.ConfigurationError{
			Parameter: "index",
			Message:   fmt.Sprintf("unknown index kind %q, must be any of standard|unique|primary", opts.IndexKind),
		}
	}

	final := *schema
	final.Columns = append([]models.ColumnDefinition(nil), schema.Columns...)
	final.Indexes = append([]models.IndexDefinition(nil), schema.Indexes...)
	final.ForeignKeys = append(append([]models.ForeignKeyDefinition(nil), schema.ForeignKeys...), opts.ForeignKeys...)
	final.Constraints = append(append([]models.ConstraintDefinition(nil), schema.Constraints...), opts.Constraints...)

	for _, key := range opts.Keys {
		if _, ok := final.Column(key); !ok {
			return nil, &models.SchemaError{Table: final.Table.String(), Object: key, Message: "key column not found"}
		}
	}

	if len(opts.Keys) == 0 || opts.IndexKind == models.IndexNone {
		return &final, nil
	}

	switch opts.IndexKind {
	case models.IndexPrimary:
		keys := make(map[string]bool, len(opts.Keys))
		for _, k := range opts.Keys {
			keys[k] = true
		}
		for i := range final.Columns {
			if keys[final.Columns[i].Name] {
				final.Columns[i].PrimaryKey = true
				final.Columns[i].Nullable = false
			}
		}
	case models.IndexStandard, models.IndexUnique:
		unique := opts.IndexKind == models.IndexUnique
		suffix := "ik"
		if unique {
			suffix = "uk"
		}
		final.Indexes = append(final.Indexes, models.IndexDefinition{
			Name:    fmt.Sprintf("%s_i001_%s", final.Table.Name, suffix),
			Columns: append([]string(nil), opts.Keys...),
			Unique:  unique,
		})
	}
	return &final, nil
}
