package utils

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/vitebski/tablesync/internal/connector"
	"github.com/vitebski/tablesync/internal/dialect"
	"github.com/vitebski/tablesync/pkg/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests
	return logger
}

func TestSetupLogging(t *testing.T) {
	t.Setenv("TABLESYNC_LOG_LEVEL", "")

	// Test with default log level
	logger := SetupLogging("")
	if logger.Level != logrus.InfoLevel {
		t.Errorf("Expected log level to default to info, got %s", logger.Level)
	}

	logger = SetupLogging("debug")
	if logger.Level != logrus.DebugLevel {
		t.Errorf("Expected log level to be debug, got %s", logger.Level)
	}

	logger = SetupLogging("warn")
	if logger.Level != logrus.WarnLevel {
		t.Errorf("Expected log level to be warn, got %s", logger.Level)
	}

	// Test with invalid log level (should default to info)
	logger = SetupLogging("invalid")
	if logger.Level != logrus.InfoLevel {
		t.Errorf("Expected log level to be info for invalid input, got %s", logger.Level)
	}

	// Environment variable is used when no level is passed
	t.Setenv("TABLESYNC_LOG_LEVEL", "error")
	logger = SetupLogging("")
	if logger.Level != logrus.ErrorLevel {
		t.Errorf("Expected log level to be error, got %s", logger.Level)
	}
}

func TestLoadEnvironmentVariables(t *testing.T) {
	t.Setenv("TABLESYNC_DSN", "")
	t.Setenv("TABLESYNC_DATABASE", "")
	os.Unsetenv("TABLESYNC_DSN")
	os.Unsetenv("TABLESYNC_DATABASE")

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if LoadEnvironmentVariables(envFile, quietLogger()) {
		t.Error("Expected false without a DSN or database")
	}

	if err := os.WriteFile(envFile, []byte("TABLESYNC_DATABASE=sales\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if !LoadEnvironmentVariables(envFile, quietLogger()) {
		t.Error("Expected true once the .env file provides a database")
	}
	if os.Getenv("TABLESYNC_DATABASE") != "sales" {
		t.Errorf("Expected TABLESYNC_DATABASE to be loaded, got '%s'", os.Getenv("TABLESYNC_DATABASE"))
	}
	os.Unsetenv("TABLESYNC_DATABASE")
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_ENV_INT", "42")
	if value := GetEnvInt("TEST_ENV_INT", 10); value != 42 {
		t.Errorf("Expected value to be 42, got %d", value)
	}

	t.Setenv("TEST_ENV_INT", "")
	if value := GetEnvInt("TEST_ENV_INT", 10); value != 10 {
		t.Errorf("Expected value to be 10 (default), got %d", value)
	}

	t.Setenv("TEST_ENV_INT", "not-an-int")
	if value := GetEnvInt("TEST_ENV_INT", 10); value != 10 {
		t.Errorf("Expected value to be 10 (default) for invalid input, got %d", value)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TEST_ENV_BOOL", "true")
	if !GetEnvBool("TEST_ENV_BOOL", false) {
		t.Error("Expected true")
	}
	t.Setenv("TEST_ENV_BOOL", "nope")
	if !GetEnvBool("TEST_ENV_BOOL", true) {
		t.Error("Expected the default for invalid input")
	}
}

func TestValidateConnectionParams(t *testing.T) {
	logger := quietLogger()
	valid := connector.Config{Backend: dialect.Postgres, Host: "localhost", User: "user", Password: "password", Database: "database", Port: "5432"}

	if !ValidateConnectionParams(valid, logger) {
		t.Error("Expected validation to pass with valid parameters")
	}

	tests := []struct {
		name   string
		mutate func(c *connector.Config)
	}{
		{"missing host", func(c *connector.Config) { c.Host = "" }},
		{"missing user", func(c *connector.Config) { c.User = "" }},
		{"missing database", func(c *connector.Config) { c.Database = "" }},
		{"invalid port", func(c *connector.Config) { c.Port = "not-a-port" }},
	}
	for _, tt := range tests {
		cfg := valid
		tt.mutate(&cfg)
		if ValidateConnectionParams(cfg, logger) {
			t.Errorf("Expected validation to fail with %s", tt.name)
		}
	}

	// Empty password is allowed
	cfg := valid
	cfg.Password = ""
	if !ValidateConnectionParams(cfg, logger) {
		t.Error("Expected validation to pass with empty password")
	}

	// A DSN or an embedded database needs nothing else
	if !ValidateConnectionParams(connector.Config{Backend: dialect.Oracle, DSN: "oracle://u:p@db/XE"}, logger) {
		t.Error("Expected validation to pass with a DSN")
	}
	if !ValidateConnectionParams(connector.Config{Backend: dialect.SQLite}, logger) {
		t.Error("Expected validation to pass for sqlite")
	}
}

func TestPrintOperationResult(t *testing.T) {
	var buf bytes.Buffer
	PrintOperationResult(&buf, &models.OperationResult{
		ID:         "run-1",
		Operation:  models.OperationUpsert,
		Table:      "app.users",
		Insertions: 12345,
		Updates:    2,
		Failures:   []models.RowFailure{{Row: 7, Keys: map[string]interface{}{"user_id": 8}, Error: "duplicate email"}},
	})

	out := buf.String()
	for _, want := range []string{"app.users", "Inserted:   12,345", "Processed:  12,348", "row 7 map[user_id:8]: duplicate email"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q:\n%s", want, out)
		}
	}
}

func TestPrintTableSchema(t *testing.T) {
	var buf bytes.Buffer
	schema := &models.TableSchema{
		Table: models.TableRef{Name: "users"},
		Columns: []models.ColumnDefinition{
			{Name: "user_id", Type: models.SQLType{Kind: models.TypeInteger}, PrimaryKey: true},
		},
		Indexes: []models.IndexDefinition{{Name: "users_i001_uk", Columns: []string{"user_id"}, Unique: true}},
	}
	PrintTableSchema(&buf, schema, []string{`CREATE TABLE "users" ("user_id" INTEGER NOT NULL)`})

	out := buf.String()
	for _, want := range []string{"TABLE users", "primary key", "unique index users_i001_uk (user_id)", `CREATE TABLE "users"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q:\n%s", want, out)
		}
	}
}

func TestVerifyTableRowCount(t *testing.T) {
	ctx := context.Background()
	db := connector.NewDatabaseConnector(connector.Config{Backend: dialect.SQLite, DSN: ":memory:"}, quietLogger())
	if err := db.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	defer db.Disconnect()

	if _, err := db.ExecuteStatement(ctx, `CREATE TABLE "users" ("id" INTEGER)`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecuteStatement(ctx, `INSERT INTO "users" ("id") VALUES (1), (2)`); err != nil {
		t.Fatal(err)
	}

	ref := models.TableRef{Name: "users"}
	if count, ok := VerifyTableRowCount(ctx, db, ref, 2, quietLogger()); !ok || count != 2 {
		t.Errorf("Expected 2 rows to verify, got %d (%t)", count, ok)
	}
	if _, ok := VerifyTableRowCount(ctx, db, ref, 3, quietLogger()); ok {
		t.Error("Expected verification to fail below the minimum")
	}
	if _, ok := VerifyTableRowCount(ctx, db, models.TableRef{Name: "missing"}, 1, quietLogger()); ok {
		t.Error("Expected verification to fail for a missing table")
	}
}
