package generator

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vitebski/tablesync/internal/dataset"
	"github.com/vitebski/tablesync/pkg/models"
)

func testGenerator() *DataGenerator {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests
	return NewDataGenerator(logger)
}

func TestGenerateFrame(t *testing.T) {
	dg := testGenerator()

	frame, err := dg.GenerateFrame(SampleColumns, 25, []string{"user_id"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if frame.Len() != 25 {
		t.Fatalf("Expected 25 rows, got %d", frame.Len())
	}

	for i, row := range frame.Rows() {
		if row["user_id"] != int64(i+1) {
			t.Errorf("Row %d: expected user_id %d, got %v", i, i+1, row["user_id"])
		}
		if email, ok := row["email"].(string); !ok || !strings.Contains(email, "@") {
			t.Errorf("Row %d: expected an email, got %v", i, row["email"])
		}
		if _, ok := row["active"].(bool); !ok {
			t.Errorf("Row %d: expected a bool, got %T", i, row["active"])
		}
		if _, ok := row["created_at"].(time.Time); !ok {
			t.Errorf("Row %d: expected a time, got %T", i, row["created_at"])
		}
		if _, ok := row["score"].(float64); !ok {
			t.Errorf("Row %d: expected a float64, got %T", i, row["score"])
		}
	}
}

func TestGenerateFrameTextKeysAreUnique(t *testing.T) {
	dg := testGenerator()
	columns := []dataset.Column{{Name: "code", Type: "object"}, {Name: "qty", Type: "int64"}}

	frame, err := dg.GenerateFrame(columns, 50, []string{"code"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	seen := map[interface{}]bool{}
	for _, row := range frame.Rows() {
		if seen[row["code"]] {
			t.Errorf("Duplicate key %v", row["code"])
		}
		seen[row["code"]] = true
	}
}

func TestGenerateFrameNulls(t *testing.T) {
	dg := testGenerator()
	dg.NullRatio = 1

	frame, err := dg.GenerateFrame(SampleColumns, 5, []string{"user_id"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, row := range frame.Rows() {
		if row["user_id"] == nil {
			t.Error("Key columns are never null")
		}
		if row["email"] != nil {
			t.Errorf("Expected every non-key value to be null, got %v", row["email"])
		}
	}
}

func TestGenerateFrameUnknownTag(t *testing.T) {
	_, err := testGenerator().GenerateFrame([]dataset.Column{{Name: "payload", Type: "bytes"}}, 1, nil)
	var mapErr *models.TypeMappingError
	if !errors.As(err, &mapErr) {
		t.Fatalf("Expected TypeMappingError, got %v", err)
	}
	if mapErr.Column != "payload" {
		t.Errorf("Expected column 'payload', got '%s'", mapErr.Column)
	}
}

func TestParseColumns(t *testing.T) {
	columns, err := ParseColumns("user_id:int64, email:object,joined:datetime64[ns]")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := []dataset.Column{
		{Name: "user_id", Type: "int64"},
		{Name: "email", Type: "object"},
		{Name: "joined", Type: "datetime64[ns]"},
	}
	if len(columns) != len(expected) {
		t.Fatalf("Expected %d columns, got %d", len(expected), len(columns))
	}
	for i := range expected {
		if columns[i] != expected[i] {
			t.Errorf("Column %d: expected %+v, got %+v", i, expected[i], columns[i])
		}
	}

	for _, bad := range []string{"", "user_id", "user_id:", ":int64"} {
		if _, err := ParseColumns(bad); err == nil {
			t.Errorf("Expected an error for %q", bad)
		}
	}
}
