package typemap

import (
	"strings"

	"github.com/vitebski/tablesync/internal/dataset"
	"github.com/vitebski/tablesync/pkg/models"
)

// DefaultTextLength is the width of text columns unless a Mapper overrides it
const DefaultTextLength = 4000

// DefaultTypeMappings maps native dataset type tags to semantic SQL kinds.
// Tags starting with "datetime64" are handled separately so timezone-qualified
// variants such as "datetime64[ns, UTC]" resolve as well.
var DefaultTypeMappings = map[string]models.SemanticType{
	"int":       models.TypeInteger,
	"int8":      models.TypeInteger,
	"int16":     models.TypeInteger,
	"int32":     models.TypeInteger,
	"int64":     models.TypeInteger,
	"Int64":     models.TypeInteger,
	"uint8":     models.TypeInteger,
	"uint16":    models.TypeInteger,
	"uint32":    models.TypeInteger,
	"uint64":    models.TypeInteger,
	"float":     models.TypeFloat,
	"float32":   models.TypeFloat,
	"float64":   models.TypeFloat,
	"Float64":   models.TypeFloat,
	"bool":      models.TypeBoolean,
	"boolean":   models.TypeBoolean,
	"object":    models.TypeText,
	"string":    models.TypeText,
	"str":       models.TypeText,
	"datetime":  models.TypeDateTime,
	"date":      models.TypeDateTime,
	"timestamp": models.TypeDateTime,
}

// Mapper converts dataset type tags to backend-neutral SQL types
type Mapper struct {
	textLength int
}

// Option configures a Mapper
type Option func(*Mapper)

// WithTextLength overrides the width of text columns
func WithTextLength(n int) Option {
	return func(m *Mapper) {
		if n > 0 {
			m.textLength = n
		}
	}
}

// New creates a Mapper
func New(opts ...Option) Mapper {
	m := Mapper{textLength: DefaultTextLength}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// TextLength returns the width used for text columns
func (m Mapper) TextLength() int {
	if m.textLength <= 0 {
		return DefaultTextLength
	}
	return m.textLength
}

// Map returns the SQL type for a column's native type tag
func (m Mapper) Map(column, tag string) (models.SQLType, error) {
	kind, ok := DefaultTypeMappings[tag]
	if !ok && strings.HasPrefix(tag, "datetime64") {
		kind, ok = models.TypeDateTime, true
	}
	if !ok {
		return models.SQLType{}, &models.TypeMappingError{Column: column, Tag: tag}
	}

	if kind == models.TypeText {
		return models.SQLType{Kind: kind, Length: m.TextLength()}, nil
	}
	return models.SQLType{Kind: kind}, nil
}

// MapColumns maps every column, failing on the first unsupported one
func (m Mapper) MapColumns(columns []dataset.Column) ([]models.SQLType, error) {
	types := make([]models.SQLType, 0, len(columns))
	for _, col := range columns {
		t, err := m.Map(col.Name, col.Type)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// MapType maps a type tag with the default Mapper
func MapType(tag string) (models.SQLType, error) {
	return New().Map("", tag)
}
