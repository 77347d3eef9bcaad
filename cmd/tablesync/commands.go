package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vitebski/tablesync/internal/dataset"
	"github.com/vitebski/tablesync/internal/generator"
	"github.com/vitebski/tablesync/internal/schema"
	"github.com/vitebski/tablesync/internal/synchronizer"
	"github.com/vitebski/tablesync/internal/tablespec"
	"github.com/vitebski/tablesync/internal/utils"
	"github.com/vitebski/tablesync/pkg/models"
)

func newCreateCmd(a *app) *cobra.Command {
	var (
		table    string
		keys     string
		index    string
		specFile string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "create [dataset.csv]",
		Short: "Create a table from a CSV file, or every table of a table spec",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && specFile == "" {
				return &models.ConfigurationError{Parameter: "spec", Message: "a dataset file or --spec is required"}
			}

			var spec *tablespec.File
			if specFile != "" {
				var err error
				if spec, err = tablespec.Load(specFile); err != nil {
					return err
				}
			}

			builder, err := a.connect(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if len(args) == 0 {
				return createFromSpec(cmd, builder, spec, dryRun)
			}

			frame, err := dataset.ReadCSVFile(args[0])
			if err != nil {
				return err
			}
			ref, err := a.tableRef(table, args[0])
			if err != nil {
				return err
			}

			var opts schema.TableOptions
			if spec != nil {
				if t, ok := spec.Lookup(ref); ok {
					if opts, err = t.Options(); err != nil {
						return err
					}
				}
			}
			// Flags win over the table spec
			if cmd.Flags().Changed("keys") {
				opts.Keys = splitList(keys)
			}
			if cmd.Flags().Changed("index") || spec == nil {
				if opts.IndexKind, err = models.ParseIndexKind(index); err != nil {
					return err
				}
			}

			var primaryKeys []string
			if opts.IndexKind == models.IndexPrimary {
				primaryKeys = opts.Keys
			}
			built, err := builder.BuildSchema(ref, frame.Columns(), primaryKeys)
			if err != nil {
				return err
			}
			return createOne(cmd, builder, schema.TablePlan{Schema: built, Options: opts}, dryRun)
		},
	}

	cmd.Flags().StringVarP(&table, "table", "t", "", "Table name (default: the dataset file name)")
	cmd.Flags().StringVarP(&keys, "keys", "k", "", "Comma separated key columns")
	cmd.Flags().StringVarP(&index, "index", "i", "", "Index over the keys: standard, unique or primary")
	cmd.Flags().StringVar(&specFile, "spec", "", "YAML table spec with keys, foreign keys and constraints")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the DDL without executing it")
	return cmd
}

func createFromSpec(cmd *cobra.Command, builder *schema.Builder, spec *tablespec.File, dryRun bool) error {
	plans, err := spec.Plans(builder)
	if err != nil {
		return err
	}
	ordered, err := schema.OrderTables(plans)
	if err != nil {
		return err
	}
	for _, plan := range ordered {
		if err := createOne(cmd, builder, plan, dryRun); err != nil {
			return err
		}
	}
	return nil
}

func createOne(cmd *cobra.Command, builder *schema.Builder, plan schema.TablePlan, dryRun bool) error {
	final, statements, err := builder.Preview(plan.Schema, plan.Options)
	if err != nil {
		return err
	}
	if !dryRun {
		if final, err = builder.CreateTable(cmd.Context(), plan.Schema, plan.Options); err != nil {
			return err
		}
	}
	utils.PrintTableSchema(cmd.OutOrStdout(), final, statements)
	return nil
}

func newSyncCmd(a *app) *cobra.Command {
	var (
		table      string
		operation  string
		keys       string
		index      string
		batchSize  int
		workers    int
		verify     bool
		minRecords int
	)

	cmd := &cobra.Command{
		Use:   "sync <dataset.csv>",
		Short: "Append, upsert or replace the rows of a CSV file into a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseOperationKind(operation)
			if err != nil {
				return err
			}
			opts, err := syncOptions(keys, index, batchSize, workers)
			if err != nil {
				return err
			}
			ref, err := a.tableRef(table, args[0])
			if err != nil {
				return err
			}
			frame, err := dataset.ReadCSVFile(args[0])
			if err != nil {
				return err
			}

			builder, err := a.connect(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := synchronizer.New(builder, a.logger).TableOperation(cmd.Context(), kind, frame, ref, opts)
			if err := report(cmd, result, err); err != nil {
				return err
			}
			return a.verify(cmd, ref, verify, minRecords)
		},
	}

	cmd.Flags().StringVarP(&table, "table", "t", "", "Table name (default: the dataset file name)")
	cmd.Flags().StringVarP(&operation, "operation", "o", string(models.OperationAppend), "Operation: append, upsert or replace")
	cmd.Flags().StringVarP(&keys, "keys", "k", "", "Comma separated key columns")
	cmd.Flags().StringVarP(&index, "index", "i", "", "Index created over the keys if the table is missing")
	cmd.Flags().IntVar(&batchSize, "batch-size", synchronizer.DefaultBatchSize, "Rows per transaction")
	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "Parallel workers, rows are partitioned by key")
	cmd.Flags().BoolVarP(&verify, "verify", "v", false, "Verify the row count of the table afterwards")
	cmd.Flags().IntVarP(&minRecords, "min-records", "n", 1, "Minimum number of rows expected by --verify")
	return cmd
}

func newIndexCmd(a *app) *cobra.Command {
	var (
		name    string
		table   string
		columns string
		unique  bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Create an index on an existing table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := a.tableRef(table, "")
			if err != nil {
				return err
			}

			builder, err := a.connect(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			handle, err := builder.CreateIndex(cmd.Context(), name, ref, splitList(columns), unique)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s;\n", handle.Statement)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Index name")
	cmd.Flags().StringVarP(&table, "table", "t", "", "Table name")
	cmd.Flags().StringVarP(&columns, "columns", "c", "", "Comma separated indexed columns")
	cmd.Flags().BoolVar(&unique, "unique", false, "Create a unique index")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("columns")
	return cmd
}

func newSampleCmd(a *app) *cobra.Command {
	var (
		table     string
		rows      int
		columns   string
		keys      string
		operation string
		index     string
		nullRatio float64
		batchSize int
		workers   int
		verify    bool
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Synchronize generated fake rows into a table to smoke-test a backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseOperationKind(operation)
			if err != nil {
				return err
			}
			cols := generator.SampleColumns
			if columns != "" {
				if cols, err = generator.ParseColumns(columns); err != nil {
					return err
				}
			} else if keys == "" {
				keys = "user_id"
			}
			opts, err := syncOptions(keys, index, batchSize, workers)
			if err != nil {
				return err
			}
			ref, err := a.tableRef(table, "")
			if err != nil {
				return err
			}

			gen := generator.NewDataGenerator(a.logger)
			gen.NullRatio = nullRatio
			frame, err := gen.GenerateFrame(cols, rows, opts.Keys)
			if err != nil {
				return err
			}

			builder, err := a.connect(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := synchronizer.New(builder, a.logger).TableOperation(cmd.Context(), kind, frame, ref, opts)
			if err := report(cmd, result, err); err != nil {
				return err
			}
			return a.verify(cmd, ref, verify, rows)
		},
	}

	cmd.Flags().StringVarP(&table, "table", "t", "sample_users", "Table name")
	cmd.Flags().IntVarP(&rows, "rows", "r", 100, "Number of rows to generate")
	cmd.Flags().StringVarP(&columns, "columns", "c", "", "Columns as name:type pairs, e.g. id:int64,email:object (default: a users layout)")
	cmd.Flags().StringVarP(&keys, "keys", "k", "", "Comma separated key columns (default: user_id for the users layout)")
	cmd.Flags().StringVarP(&operation, "operation", "o", string(models.OperationUpsert), "Operation: append, upsert or replace")
	cmd.Flags().StringVarP(&index, "index", "i", string(models.IndexPrimary), "Index created over the keys if the table is missing")
	cmd.Flags().Float64Var(&nullRatio, "null-ratio", 0, "Share of non-key values left empty")
	cmd.Flags().IntVar(&batchSize, "batch-size", synchronizer.DefaultBatchSize, "Rows per transaction")
	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "Parallel workers, rows are partitioned by key")
	cmd.Flags().BoolVarP(&verify, "verify", "v", false, "Verify the row count of the table afterwards")
	return cmd
}

// verify checks the row count of the table when requested
func (a *app) verify(cmd *cobra.Command, ref models.TableRef, enabled bool, minRecords int) error {
	if !enabled {
		return nil
	}
	if _, ok := utils.VerifyTableRowCount(cmd.Context(), a.db, ref, minRecords, a.logger); !ok {
		return fmt.Errorf("verification of table %s failed", ref)
	}
	return nil
}
