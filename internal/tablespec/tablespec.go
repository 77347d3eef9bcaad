package tablespec

import (
	"fmt"
	"os"
	"strings"

	"github.com/vitebski/tablesync/internal/dataset"
	"github.com/vitebski/tablesync/internal/schema"
	"github.com/vitebski/tablesync/pkg/models"
	"gopkg.in/yaml.v3"
)

// File is a YAML document describing the tables to create
type File struct {
	Tables []Table `yaml:"tables"`
}

// Table describes one table. Columns may be left out when the table is
// created from a dataset that provides them.
type Table struct {
	Name        string       `yaml:"name"`
	Schema      string       `yaml:"schema,omitempty"`
	Columns     []Column     `yaml:"columns,omitempty"`
	Keys        StringList   `yaml:"keys,omitempty"`
	Index       string       `yaml:"index,omitempty"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys,omitempty"`
	Constraints []Constraint `yaml:"constraints,omitempty"`
}

// Column is a column name with its native type tag, e.g. int64 or object
type Column struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// ForeignKey references columns of another table
type ForeignKey struct {
	Name       string     `yaml:"name"`
	Columns    StringList `yaml:"columns"`
	References Reference  `yaml:"references"`
}

// Reference is the target side of a foreign key
type Reference struct {
	Schema  string     `yaml:"schema,omitempty"`
	Table   string     `yaml:"table"`
	Columns StringList `yaml:"columns"`
}

// Constraint is a unique or check constraint
type Constraint struct {
	Kind      string     `yaml:"kind"`
	Name      string     `yaml:"name"`
	Columns   StringList `yaml:"columns,omitempty"`
	Condition string     `yaml:"condition,omitempty"`
}

// StringList accepts either a single string or a list of strings
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler for StringList.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list", node.Line)
	}
}

// Load reads a table spec file
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table spec: %w", err)
	}
	return Parse(data)
}

// Parse decodes a table spec document and checks that every table is named once
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse table spec: %w", err)
	}

	seen := make(map[string]bool, len(f.Tables))
	for i, t := range f.Tables {
		if t.Name == "" {
			return nil, &models.ConfigurationError{Parameter: "spec", Message: fmt.Sprintf("table %d has no name", i+1)}
		}
		name := t.Ref().String()
		if seen[name] {
			return nil, &models.ConfigurationError{Parameter: "spec", Message: fmt.Sprintf("table %s is described twice", name)}
		}
		seen[name] = true
	}
	return &f, nil
}

// Lookup finds the description of a table
func (f *File) Lookup(ref models.TableRef) (Table, bool) {
	for _, t := range f.Tables {
		if t.Ref() == ref {
			return t, true
		}
	}
	return Table{}, false
}

// Plans builds a creation plan for every table of the file. Tables without
// columns cannot be planned.
func (f *File) Plans(b *schema.Builder) ([]schema.TablePlan, error) {
	plans := make([]schema.TablePlan, 0, len(f.Tables))
	for _, t := range f.Tables {
		if len(t.Columns) == 0 {
			return nil, &models.ConfigurationError{Parameter: "spec", Message: fmt.Sprintf("table %s lists no columns", t.Ref())}
		}
		opts, err := t.Options()
		if err != nil {
			return nil, err
		}
		var primaryKeys []string
		if opts.IndexKind == models.IndexPrimary {
			primaryKeys = opts.Keys
		}
		s, err := b.BuildSchema(t.Ref(), t.DatasetColumns(), primaryKeys)
		if err != nil {
			return nil, err
		}
		plans = append(plans, schema.TablePlan{Schema: s, Options: opts})
	}
	return plans, nil
}

// Ref returns the table reference
func (t Table) Ref() models.TableRef {
	return models.TableRef{Schema: t.Schema, Name: t.Name}
}

// DatasetColumns returns the declared columns as dataset columns
func (t Table) DatasetColumns() []dataset.Column {
	columns := make([]dataset.Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		columns = append(columns, dataset.Column{Name: c.Name, Type: c.Type})
	}
	return columns
}

// Options converts the description into table options
func (t Table) Options() (schema.TableOptions, error) {
	kind, err := models.ParseIndexKind(t.Index)
	if err != nil {
		return schema.TableOptions{}, err
	}
	opts := schema.TableOptions{
		Keys:      []string(t.Keys),
		IndexKind: kind,
	}

	for _, fk := range t.ForeignKeys {
		opts.ForeignKeys = append(opts.ForeignKeys, models.ForeignKeyDefinition{
			Name:              fk.Name,
			Columns:           []string(fk.Columns),
			ReferencedTable:   models.TableRef{Schema: fk.References.Schema, Name: fk.References.Table},
			ReferencedColumns: []string(fk.References.Columns),
		})
	}

	for _, c := range t.Constraints {
		def := models.ConstraintDefinition{
			Kind:      models.ConstraintKind(strings.ToLower(c.Kind)),
			Name:      c.Name,
			Columns:   []string(c.Columns),
			Condition: c.Condition,
		}
		if def.Kind != models.ConstraintUnique && def.Kind != models.ConstraintCheck {
			return schema.TableOptions{}, &models.ConfigurationError{
				Parameter: "constraints",
				Message:   fmt.Sprintf("table %s: unknown constraint kind %q, must be unique or check", t.Ref(), c.Kind),
			}
		}
		opts.Constraints = append(opts.Constraints, def)
	}
	return opts, nil
}
