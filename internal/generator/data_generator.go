package generator

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/jaswdr/faker"
	"github.com/sirupsen/logrus"
	"github.com/vitebski/tablesync/internal/dataset"
	"github.com/vitebski/tablesync/internal/typemap"
	"github.com/vitebski/tablesync/pkg/models"
)

// SampleColumns is the dataset layout used when no columns are given
var SampleColumns = []dataset.Column{
	{Name: "user_id", Type: "int64"},
	{Name: "username", Type: "object"},
	{Name: "email", Type: "object"},
	{Name: "first_name", Type: "object"},
	{Name: "last_name", Type: "object"},
	{Name: "city", Type: "object"},
	{Name: "score", Type: "float64"},
	{Name: "active", Type: "bool"},
	{Name: "created_at", Type: "datetime64[ns]"},
}

// DataGenerator generates fake datasets based on column names and type tags
type DataGenerator struct {
	Faker faker.Faker
	// NullRatio is the share of non-key values left empty, between 0 and 1.
	NullRatio float64
	Logger    *logrus.Logger
}

// NewDataGenerator creates a new data generator
func NewDataGenerator(logger *logrus.Logger) *DataGenerator {
	return &DataGenerator{
		Faker:  faker.New(),
		Logger: logger,
	}
}

// GenerateFrame generates n rows for the columns. Key columns get unique
// values: integers count up from one, text keys are UUIDs.
func (dg *DataGenerator) GenerateFrame(columns []dataset.Column, n int, keys []string) (*dataset.Frame, error) {
	kinds := make([]models.SemanticType, len(columns))
	for i, col := range columns {
		t, err := typemap.MapType(col.Type)
		if err != nil {
			return nil, &models.TypeMappingError{Column: col.Name, Tag: col.Type}
		}
		kinds[i] = t.Kind
	}

	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}

	rows := make([]dataset.Row, 0, n)
	for i := 0; i < n; i++ {
		row := make(dataset.Row, len(columns))
		for j, col := range columns {
			if isKey[col.Name] {
				row[col.Name] = dg.keyValue(kinds[j], i)
				continue
			}
			row[col.Name] = dg.GenerateData(col.Name, kinds[j])
		}
		rows = append(rows, row)
	}

	dg.Logger.Debugf("Generated %d rows for %d columns", n, len(columns))
	return dataset.NewFrame(columns, rows), nil
}

func (dg *DataGenerator) keyValue(kind models.SemanticType, i int) interface{} {
	switch kind {
	case models.TypeInteger:
		return int64(i + 1)
	case models.TypeFloat:
		return float64(i + 1)
	case models.TypeDateTime:
		return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Second)
	}
	return dg.Faker.UUID().V4()
}

// GenerateData generates a value for a column based on its name and kind
func (dg *DataGenerator) GenerateData(name string, kind models.SemanticType) interface{} {
	if dg.NullRatio > 0 && rand.Float64() < dg.NullRatio {
		return nil
	}

	switch kind {
	case models.TypeInteger:
		return int64(dg.Faker.IntBetween(0, 1000000))
	case models.TypeFloat:
		return dg.Faker.Float64(2, 0, 1000)
	case models.TypeBoolean:
		return dg.Faker.Bool()
	case models.TypeDateTime:
		return dg.generateDateTime()
	}
	return dg.generateString(name)
}

// generateString picks a generator matching the column name
func (dg *DataGenerator) generateString(name string) string {
	columnName := strings.ToLower(name)

	switch {
	case strings.Contains(columnName, "email"):
		return dg.Faker.Internet().Email()
	case strings.Contains(columnName, "first_name"):
		return dg.Faker.Person().FirstName()
	case strings.Contains(columnName, "last_name"):
		return dg.Faker.Person().LastName()
	case strings.Contains(columnName, "username"), strings.Contains(columnName, "login"):
		return dg.Faker.Internet().User()
	case strings.Contains(columnName, "company"):
		return dg.Faker.Company().Name()
	case strings.Contains(columnName, "name"):
		return dg.Faker.Person().Name()
	case strings.Contains(columnName, "phone"):
		return dg.Faker.Phone().Number()
	case strings.Contains(columnName, "address"):
		return dg.Faker.Address().Address()
	case strings.Contains(columnName, "city"):
		return dg.Faker.Address().City()
	case strings.Contains(columnName, "country"):
		return dg.Faker.Address().Country()
	case strings.Contains(columnName, "zip"), strings.Contains(columnName, "postal"):
		return dg.Faker.Address().PostCode()
	case strings.Contains(columnName, "url"), strings.Contains(columnName, "website"):
		return dg.Faker.Internet().URL()
	case strings.Contains(columnName, "ip"):
		return dg.Faker.Internet().Ipv4()
	case strings.Contains(columnName, "color"):
		return dg.Faker.Color().Hex()
	case strings.Contains(columnName, "uuid"), strings.Contains(columnName, "guid"):
		return dg.Faker.UUID().V4()
	case strings.Contains(columnName, "description"), strings.Contains(columnName, "comment"):
		return dg.Faker.Lorem().Sentence(8)
	}
	return dg.Faker.Lorem().Word()
}

// generateDateTime generates a datetime within the last 5 years, truncated to seconds
func (dg *DataGenerator) generateDateTime() time.Time {
	seconds := dg.Faker.IntBetween(0, 5*365*24*60*60)
	return time.Now().UTC().Truncate(time.Second).Add(-time.Duration(seconds) * time.Second)
}

// ParseColumns parses "name:tag" pairs such as "user_id:int64,email:object"
func ParseColumns(spec string) ([]dataset.Column, error) {
	var columns []dataset.Column
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, tag, ok := strings.Cut(part, ":")
		if !ok || name == "" || tag == "" {
			return nil, &models.ConfigurationError{Parameter: "columns", Message: fmt.Sprintf("expected name:type, got %q", part)}
		}
		columns = append(columns, dataset.Column{Name: strings.TrimSpace(name), Type: strings.TrimSpace(tag)})
	}
	if len(columns) == 0 {
		return nil, &models.ConfigurationError{Parameter: "columns", Message: "no columns given"}
	}
	return columns, nil
}
