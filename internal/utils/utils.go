package utils

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/vitebski/tablesync/internal/connector"
	"github.com/vitebski/tablesync/internal/dialect"
	"github.com/vitebski/tablesync/pkg/models"
)

// SetupLogging configures the logging system
func SetupLogging(logLevel string) *logrus.Logger {
	logger := logrus.New()

	// Get log level from environment variable or parameter
	levelStr := logLevel
	if levelStr == "" {
		levelStr = os.Getenv("TABLESYNC_LOG_LEVEL")
		if levelStr == "" {
			levelStr = "info"
		}
	}

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stdout)

	logger.Debugf("Logging configured with level: %s", level)
	return logger
}

// LoadEnvironmentVariables loads environment variables from .env file. It
// reports whether a DSN or a database name is available afterwards.
func LoadEnvironmentVariables(envFile string, logger *logrus.Logger) bool {
	// Check if a sample .env file exists but not the actual .env file
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		sampleEnvFile := envFile + ".sample"
		if _, err := os.Stat(sampleEnvFile); err == nil {
			logger.Infof("No %s file found, but %s exists. Consider copying %s to %s and updating it.",
				envFile, sampleEnvFile, sampleEnvFile, envFile)
		}
	}

	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			logger.Warningf("Error loading %s file: %v", envFile, err)
		} else {
			logger.Infof("Loaded environment variables from %s", envFile)
		}
	} else {
		logger.Debugf("No %s file found, using existing environment variables", envFile)
	}

	// Log all available TABLESYNC_* environment variables (for debugging)
	if logger.Level == logrus.DebugLevel {
		for _, env := range os.Environ() {
			if !strings.HasPrefix(env, "TABLESYNC_") {
				continue
			}
			parts := strings.SplitN(env, "=", 2)
			if len(parts) != 2 {
				continue
			}
			switch parts[0] {
			case "TABLESYNC_PASSWORD", "TABLESYNC_DSN":
				logger.Debugf("%s=********", parts[0])
			default:
				logger.Debugf("%s=%s", parts[0], parts[1])
			}
		}
	}

	if os.Getenv("TABLESYNC_DSN") == "" && os.Getenv("TABLESYNC_DATABASE") == "" {
		logger.Debug("Neither TABLESYNC_DSN nor TABLESYNC_DATABASE is set")
		return false
	}
	return true
}

// GetEnvInt gets an integer value from environment variable
func GetEnvInt(varName string, defaultValue int) int {
	value := os.Getenv(varName)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// GetEnvBool gets a boolean value from environment variable
func GetEnvBool(varName string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(varName))
	if err != nil {
		return defaultValue
	}
	return value
}

// ValidateConnectionParams validates database connection parameters
func ValidateConnectionParams(cfg connector.Config, logger *logrus.Logger) bool {
	if cfg.Backend == dialect.SQLite || cfg.DSN != "" {
		return true
	}

	if cfg.Host == "" {
		logger.Error("Database host is required")
		return false
	}

	if cfg.User == "" {
		logger.Error("Database user is required")
		return false
	}

	if cfg.Password == "" { // Empty password is allowed
		logger.Warning("Database password is empty")
	}

	if cfg.Database == "" {
		logger.Error("Database name is required")
		return false
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		logger.Errorf("Invalid port number: %s", cfg.Port)
		return false
	}
	return true
}

// PrintOperationResult prints a summary of a synchronization run
func PrintOperationResult(w io.Writer, result *models.OperationResult) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 50))
	fmt.Fprintln(w, "SYNCHRONIZATION SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "Run:        %s\n", result.ID)
	fmt.Fprintf(w, "Operation:  %s\n", result.Operation)
	fmt.Fprintf(w, "Table:      %s\n", result.Table)
	fmt.Fprintf(w, "Processed:  %s\n", humanize.Comma(int64(result.Processed())))
	fmt.Fprintf(w, "Inserted:   %s\n", humanize.Comma(int64(result.Insertions)))
	fmt.Fprintf(w, "Updated:    %s\n", humanize.Comma(int64(result.Updates)))
	fmt.Fprintf(w, "Skipped:    %s\n", humanize.Comma(int64(result.Skips)))
	fmt.Fprintf(w, "Failed:     %s\n", humanize.Comma(int64(len(result.Failures))))

	if len(result.Failures) > 0 {
		fmt.Fprintln(w, "\nFailed rows:")
		for _, f := range result.Failures {
			if len(f.Keys) > 0 {
				fmt.Fprintf(w, "  - row %d %v: %s\n", f.Row, f.Keys, f.Error)
			} else {
				fmt.Fprintf(w, "  - row %d: %s\n", f.Row, f.Error)
			}
		}
	}

	fmt.Fprintln(w, strings.Repeat("=", 50))
}

// PrintTableSchema prints a table definition and the DDL rendered for it
func PrintTableSchema(w io.Writer, schema *models.TableSchema, statements []string) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 80))
	fmt.Fprintf(w, "TABLE %s\n", schema.Table)
	fmt.Fprintln(w, strings.Repeat("=", 80))

	fmt.Fprintln(w, "\nColumns:")
	for _, col := range schema.Columns {
		flags := ""
		if col.PrimaryKey {
			flags = " primary key"
		} else if !col.Nullable {
			flags = " not null"
		}
		fmt.Fprintf(w, "   %-30s %s%s\n", col.Name, col.Type, flags)
	}

	if len(schema.Indexes) > 0 {
		fmt.Fprintln(w, "\nIndexes:")
		for _, idx := range schema.Indexes {
			kind := "index"
			if idx.Unique {
				kind = "unique index"
			}
			fmt.Fprintf(w, "   %s %s (%s)\n", kind, idx.Name, strings.Join(idx.Columns, ", "))
		}
	}

	if len(schema.ForeignKeys) > 0 {
		fmt.Fprintln(w, "\nForeign keys:")
		for _, fk := range schema.ForeignKeys {
			fmt.Fprintf(w, "   (%s) -> %s (%s)\n", strings.Join(fk.Columns, ", "), fk.ReferencedTable, strings.Join(fk.ReferencedColumns, ", "))
		}
	}

	if len(statements) > 0 {
		fmt.Fprintln(w, "\nDDL:")
		for _, stmt := range statements {
			fmt.Fprintf(w, "   %s;\n", stmt)
		}
	}

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 80))
}

// VerifyTableRowCount checks that a table holds at least minRecords rows
func VerifyTableRowCount(ctx context.Context, db *connector.DatabaseConnector, ref models.TableRef, minRecords int, logger *logrus.Logger) (int64, bool) {
	query := fmt.Sprintf("SELECT COUNT(*) AS row_count FROM %s", db.Dialect.QualifiedName(ref))
	result, err := db.ExecuteQuery(ctx, query)
	if err != nil {
		logger.Warningf("Could not verify record count for table %s: %v", ref, err)
		return 0, false
	}
	if len(result) == 0 {
		logger.Warningf("No result returned for count query on table: %s", ref)
		return 0, false
	}

	var value interface{}
	for _, v := range result[0] {
		value = v
	}
	count, ok := value.(int64)
	if !ok {
		// Drivers return NUMBER and BIGINT counts as different Go types
		countInt, err := strconv.ParseInt(fmt.Sprintf("%v", value), 10, 64)
		if err != nil {
			logger.Warningf("Could not parse count for table %s: %v", ref, err)
			return 0, false
		}
		count = countInt
	}

	if count < int64(minRecords) {
		logger.Warningf("Table %s has only %s/%s expected records", ref, humanize.Comma(count), humanize.Comma(int64(minRecords)))
		return count, false
	}
	logger.Infof("Table %s holds %s records", ref, humanize.Comma(count))
	return count, true
}
