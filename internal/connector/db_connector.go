package connector

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/nakagami/firebirdsql"
	go_ora "github.com/sijms/go-ora/v2"
	"github.com/sirupsen/logrus"
	"github.com/vitebski/tablesync/internal/dialect"
	"github.com/vitebski/tablesync/pkg/models"
	_ "modernc.org/sqlite"
)

// Config holds the connection settings of one backend
type Config struct {
	Backend  dialect.Name
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	Database string
	// SQLiteForeignKeys turns on foreign key enforcement for SQLite connections.
	SQLiteForeignKeys bool
}

var defaultPorts = map[dialect.Name]string{
	dialect.Postgres: "5432",
	dialect.Oracle:   "1521",
	dialect.Firebird: "3050",
	dialect.MySQL:    "3306",
}

// ConfigFromEnv reads the connection settings from TABLESYNC_* environment variables
func ConfigFromEnv() Config {
	return Config{}.withDefaults()
}

// withDefaults fills every unset field from the environment, then from built-in defaults
func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = dialect.Name(strings.ToLower(getEnvOrDefault("TABLESYNC_BACKEND", "")))
	}
	if c.DSN == "" {
		c.DSN = getEnvOrDefault("TABLESYNC_DSN", "")
	}
	if c.Backend == "" {
		c.Backend = dialect.SQLite
		if c.DSN != "" {
			if p, err := dialect.Resolve(c.DSN, dialect.Options{}); err == nil {
				c.Backend = p.Name()
			}
		}
	}
	if c.Host == "" {
		c.Host = getEnvOrDefault("TABLESYNC_HOST", "localhost")
	}
	if c.Port == "" {
		c.Port = getEnvOrDefault("TABLESYNC_PORT", defaultPorts[c.Backend])
	}
	if c.User == "" {
		c.User = getEnvOrDefault("TABLESYNC_USER", "")
	}
	if c.Password == "" {
		c.Password = getEnvOrDefault("TABLESYNC_PASSWORD", "")
	}
	if c.Database == "" {
		c.Database = getEnvOrDefault("TABLESYNC_DATABASE", "")
	}
	if !c.SQLiteForeignKeys {
		c.SQLiteForeignKeys = getEnvBool("TABLESYNC_SQLITE_FOREIGN_KEYS_ON")
	}
	return c
}

// DatabaseConnector opens a backend connection and resolves its dialect profile
type DatabaseConnector struct {
	Config
	DB      *sql.DB
	Dialect dialect.Profile
	Logger  *logrus.Logger
}

// NewDatabaseConnector creates a new database connector. Unset fields fall back
// to the environment, then to defaults.
func NewDatabaseConnector(cfg Config, logger *logrus.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg.withDefaults(),
		Logger: logger,
	}
}

// Connect opens the connection, checks it and resolves the dialect profile
// from the driver behind it
func (dc *DatabaseConnector) Connect(ctx context.Context) error {
	driverName, dsn, err := dc.DataSource()
	if err != nil {
		return err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		dc.Logger.Errorf("Error connecting to %s database: %v", dc.Backend, err)
		return err
	}
	if dc.Backend == dialect.SQLite && isMemory(dsn) {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		dc.Logger.Errorf("Error pinging %s database: %v", dc.Backend, err)
		db.Close()
		return err
	}

	profile, err := dialect.Resolve(BackendIdentity(db), dialect.Options{ForeignKeys: dc.SQLiteForeignKeys})
	if err != nil {
		db.Close()
		return err
	}
	if stmt := profile.EnableForeignKeysStatement(); stmt != "" {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			dc.Logger.Errorf("Error enabling foreign keys: %v", err)
			db.Close()
			return err
		}
	}

	dc.DB = db
	dc.Dialect = profile
	dc.Logger.Infof("Connected to %s database %s", profile.Name(), dc.describe())
	return nil
}

// DataSource returns the driver name and data source name for the configured backend
func (dc *DatabaseConnector) DataSource() (string, string, error) {
	switch dc.Backend {
	case dialect.SQLite:
		path := strings.TrimPrefix(dc.DSN, "sqlite://")
		if path == "" {
			path = dc.Database
		}
		if path == "" {
			path = ":memory:"
		}
		if dc.SQLiteForeignKeys {
			sep := "?"
			if strings.Contains(path, "?") {
				sep = "&"
			}
			path += sep + "_pragma=foreign_keys(1)"
		}
		return "sqlite", path, nil

	case dialect.Postgres:
		if dc.DSN != "" {
			return "pgx", dc.DSN, nil
		}
		if err := dc.requireDatabase(); err != nil {
			return "", "", err
		}
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(dc.User, dc.Password),
			Host:   net.JoinHostPort(dc.Host, dc.Port),
			Path:   "/" + dc.Database,
		}
		return "pgx", u.String(), nil

	case dialect.Oracle:
		if dc.DSN != "" {
			return "oracle", dc.DSN, nil
		}
		if err := dc.requireDatabase(); err != nil {
			return "", "", err
		}
		port, err := strconv.Atoi(dc.Port)
		if err != nil {
			return "", "", &models.ConfigurationError{Parameter: "port", Message: fmt.Sprintf("invalid port %q", dc.Port)}
		}
		return "oracle", go_ora.BuildUrl(dc.Host, port, dc.Database, dc.User, dc.Password, nil), nil

	case dialect.Firebird:
		if dc.DSN != "" {
			return "firebirdsql", strings.TrimPrefix(dc.DSN, "firebird://"), nil
		}
		if err := dc.requireDatabase(); err != nil {
			return "", "", err
		}
		credentials := url.UserPassword(dc.User, dc.Password).String()
		return "firebirdsql", fmt.Sprintf("%s@%s/%s", credentials, net.JoinHostPort(dc.Host, dc.Port), dc.Database), nil

	case dialect.MySQL:
		if dc.DSN != "" {
			return "mysql", dc.DSN, nil
		}
		if err := dc.requireDatabase(); err != nil {
			return "", "", err
		}
		cfg := mysql.NewConfig()
		cfg.User = dc.User
		cfg.Passwd = dc.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(dc.Host, dc.Port)
		cfg.DBName = dc.Database
		cfg.ParseTime = true
		return "mysql", cfg.FormatDSN(), nil
	}

	return "", "", &models.ConfigurationError{
		Parameter: "backend",
		Message:   fmt.Sprintf("unsupported database dialect %q", dc.Backend),
	}
}

func (dc *DatabaseConnector) requireDatabase() error {
	if dc.Database == "" {
		return &models.ConfigurationError{
			Parameter: "database",
			Message:   "database name must be provided either as a DSN or as TABLESYNC_DATABASE environment variable",
		}
	}
	return nil
}

func (dc *DatabaseConnector) describe() string {
	if dc.Database != "" {
		return dc.Database
	}
	if dc.Backend == dialect.SQLite {
		return ":memory:"
	}
	return "(from DSN)"
}

// Disconnect closes the database connection
func (dc *DatabaseConnector) Disconnect() {
	if dc.DB != nil {
		err := dc.DB.Close()
		if err != nil {
			dc.Logger.Errorf("Error closing database connection: %v", err)
		} else {
			dc.Logger.Infof("%s connection closed", dc.Backend)
		}
		dc.DB = nil
	}
}

// ExecuteQuery executes a SQL query and returns the results
func (dc *DatabaseConnector) ExecuteQuery(ctx context.Context, query string, params ...interface{}) ([]map[string]interface{}, error) {
	if dc.DB == nil {
		if err := dc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	rows, err := dc.DB.QueryContext(ctx, query, params...)
	if err != nil {
		dc.Logger.Errorf("Error executing query: %v", err)
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		dc.Logger.Errorf("Error getting columns: %v", err)
		return nil, err
	}

	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range columns {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			dc.Logger.Errorf("Error scanning row: %v", err)
			return nil, err
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			// Convert []byte to string for text fields
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		dc.Logger.Errorf("Error iterating rows: %v", err)
		return nil, err
	}
	return results, nil
}

// ExecuteStatement executes a SQL statement and returns the number of affected rows
func (dc *DatabaseConnector) ExecuteStatement(ctx context.Context, query string, params ...interface{}) (int64, error) {
	if dc.DB == nil {
		if err := dc.Connect(ctx); err != nil {
			return 0, err
		}
	}

	result, err := dc.DB.ExecContext(ctx, query, params...)
	if err != nil {
		dc.Logger.Errorf("Error executing statement: %v", err)
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		dc.Logger.Errorf("Error getting affected rows: %v", err)
		return 0, err
	}
	return affected, nil
}

// BackendIdentity returns the package path of the driver behind db, such as
// "github.com/jackc/pgx/v5/stdlib", for dialect resolution
func BackendIdentity(db *sql.DB) string {
	t := reflect.TypeOf(db.Driver())
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.PkgPath()
}

func isMemory(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// getEnvOrDefault gets an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvBool(key string) bool {
	value, err := strconv.ParseBool(getEnvOrDefault(key, "false"))
	return err == nil && value
}
