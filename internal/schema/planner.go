package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/vitebski/tablesync/pkg/models"
	"github.com/yourbasic/graph"
)

// TablePlan is a table definition waiting to be created
type TablePlan struct {
	Schema  *models.TableSchema
	Options TableOptions
}

func (p TablePlan) foreignKeys() []models.ForeignKeyDefinition {
	fks := append([]models.ForeignKeyDefinition(nil), p.Schema.ForeignKeys...)
	return append(fks, p.Options.ForeignKeys...)
}

// OrderTables sorts plans so that every referenced table comes before the
// tables whose foreign keys point at it. Self references and references to
// tables outside the plan set are ignored. Circular references are reported
// as a SchemaError naming the tables involved.
func OrderTables(plans []TablePlan) ([]TablePlan, error) {
	indexOf := make(map[string]int, len(plans))
	for i, p := range plans {
		name := p.Schema.Table.String()
		if _, dup := indexOf[name]; dup {
			return nil, &models.SchemaError{Table: name, Message: "table planned twice"}
		}
		indexOf[name] = i
	}

	// Edges run from the referenced table to the dependent table
	dependencies := graph.New(len(plans))
	for i, p := range plans {
		for _, fk := range p.foreignKeys() {
			j, ok := indexOf[fk.ReferencedTable.String()]
			if !ok || j == i {
				continue
			}
			dependencies.Add(j, i)
		}
	}

	order, ok := graph.TopSort(dependencies)
	if !ok {
		return nil, &models.SchemaError{
			Message: "circular foreign key dependencies between " + strings.Join(circularTables(plans, dependencies), ", "),
		}
	}

	ordered := make([]TablePlan, 0, len(plans))
	for _, i := range order {
		ordered = append(ordered, plans[i])
	}
	return ordered, nil
}

// circularTables lists the tables that belong to a dependency cycle
func circularTables(plans []TablePlan, g *graph.Mutable) []string {
	var names []string
	for _, component := range graph.StrongComponents(g) {
		if len(component) < 2 {
			continue
		}
		for _, i := range component {
			names = append(names, plans[i].Schema.Table.String())
		}
	}
	return names
}

// CreateTables creates a set of related tables in foreign key order. It stops
// at the first failure, leaving the tables created so far in place.
func (b *Builder) CreateTables(ctx context.Context, plans []TablePlan) ([]*models.TableSchema, error) {
	ordered, err := OrderTables(plans)
	if err != nil {
		return nil, err
	}

	b.Logger.Infof("Creating %d tables", len(ordered))
	created := make([]*models.TableSchema, 0, len(ordered))
	for _, p := range ordered {
		schema, err := b.CreateTable(ctx, p.Schema, p.Options)
		if err != nil {
			return created, fmt.Errorf("failed to create tables: %w", err)
		}
		created = append(created, schema)
	}
	return created, nil
}
