package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vitebski/tablesync/internal/connector"
	"github.com/vitebski/tablesync/internal/dialect"
	"github.com/vitebski/tablesync/internal/schema"
	"github.com/vitebski/tablesync/internal/synchronizer"
	"github.com/vitebski/tablesync/internal/typemap"
	"github.com/vitebski/tablesync/internal/utils"
	"github.com/vitebski/tablesync/pkg/models"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// app holds the connection flags shared by every command
type app struct {
	backend    string
	dsn        string
	host       string
	user       string
	password   string
	database   string
	port       string
	namespace  string
	envFile    string
	logLevel   string
	textLength int

	logger *logrus.Logger
	db     *connector.DatabaseConnector
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "tablesync",
		Short: "Create tables from datasets and keep them in sync",
		Long: `tablesync

Creates tables, indexes and constraints from tabular datasets and synchronizes
rows into them with append, upsert or replace semantics on SQLite, PostgreSQL,
Oracle, Firebird and MySQL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.logger = utils.SetupLogging(a.logLevel)
			utils.LoadEnvironmentVariables(a.envFile, a.logger)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.backend, "backend", "b", "", "Backend: sqlite, postgres, oracle, firebird or mysql (default: from DSN, else sqlite)")
	flags.StringVar(&a.dsn, "dsn", "", "Connection URL, overrides the individual connection flags")
	flags.StringVarP(&a.host, "host", "H", "", "Database host (default: localhost)")
	flags.StringVarP(&a.user, "user", "u", "", "Database user")
	flags.StringVarP(&a.password, "password", "p", "", "Database password")
	flags.StringVarP(&a.database, "database", "d", "", "Database name, or the file path for sqlite and firebird")
	flags.StringVarP(&a.port, "port", "P", "", "Database port (default: the backend's standard port)")
	flags.StringVarP(&a.namespace, "schema", "s", "", "Schema the tables live in")
	flags.StringVarP(&a.envFile, "env-file", "e", ".env", "Path to .env file")
	flags.StringVarP(&a.logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	flags.IntVar(&a.textLength, "text-length", typemap.DefaultTextLength, "Width of text columns")

	rootCmd.AddCommand(
		newCreateCmd(a),
		newSyncCmd(a),
		newIndexCmd(a),
		newSampleCmd(a),
	)
	return rootCmd
}

// connect opens the configured backend and returns a schema builder on it
func (a *app) connect(cmd *cobra.Command) (*schema.Builder, error) {
	cfg := connector.Config{
		Backend:  dialect.Name(strings.ToLower(a.backend)),
		DSN:      a.dsn,
		Host:     a.host,
		User:     a.user,
		Password: a.password,
		Database: a.database,
		Port:     a.port,
	}
	db := connector.NewDatabaseConnector(cfg, a.logger)
	if !utils.ValidateConnectionParams(db.Config, a.logger) {
		return nil, &models.ConfigurationError{Parameter: "connection", Message: "incomplete connection parameters"}
	}
	if err := db.Connect(cmd.Context()); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db

	return schema.NewBuilder(db.DB, db.Dialect, typemap.New(typemap.WithTextLength(a.textLength)), a.logger), nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Disconnect()
		a.db = nil
	}
}

// tableRef resolves the table flag, defaulting to the base name of the dataset file
func (a *app) tableRef(table, datasetPath string) (models.TableRef, error) {
	if table == "" && datasetPath != "" {
		table = strings.TrimSuffix(filepath.Base(datasetPath), filepath.Ext(datasetPath))
	}
	if table == "" {
		return models.TableRef{}, &models.ConfigurationError{Parameter: "table", Message: "table name is required"}
	}
	ref := models.ParseTableRef(table)
	if a.namespace != "" {
		ref.Schema = a.namespace
	}
	return ref, nil
}

// splitList parses a comma separated flag value
func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// report prints the result of a run and turns row failures into an error
func report(cmd *cobra.Command, result *models.OperationResult, err error) error {
	if result != nil {
		utils.PrintOperationResult(cmd.OutOrStdout(), result)
	}
	if err != nil {
		return err
	}
	if n := len(result.Failures); n > 0 {
		return fmt.Errorf("%d rows could not be synchronized", n)
	}
	return nil
}

// syncOptions builds synchronizer options from the shared sync flags
func syncOptions(keys, index string, batchSize, workers int) (synchronizer.Options, error) {
	kind, err := models.ParseIndexKind(index)
	if err != nil {
		return synchronizer.Options{}, err
	}
	return synchronizer.Options{
		Keys:           splitList(keys),
		IndexIfMissing: kind,
		BatchSize:      batchSize,
		Workers:        workers,
	}, nil
}
